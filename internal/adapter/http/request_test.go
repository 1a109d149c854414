package http

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/pipeline"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  pipeline.Request
	}{
		{
			name:  "empty",
			query: "",
			want:  pipeline.Request{},
		},
		{
			name:  "repeated selections",
			query: "entity=2501153&entity=+&entity=2502300&indicator=IN200",
			want: pipeline.Request{
				Entities:   []string{"2501153", "2502300"},
				Indicators: []string{"IN200"},
			},
		},
		{
			name:  "single year",
			query: "year=2023",
			want:  pipeline.Request{Years: domain.YearRange{From: "2023", To: "2023"}},
		},
		{
			name:  "year range and months",
			query: "year=2023&year_to=2024&month_from=Mar%C3%A7o&month_to=Junho&annual=1",
			want: pipeline.Request{
				Years:  domain.YearRange{From: "2023", To: "2024"},
				Months: domain.MonthRange{From: "Março", To: "Junho"},
				Annual: true,
			},
		},
		{
			name:  "open lower year",
			query: "year_to=2024",
			want:  pipeline.Request{Years: domain.YearRange{To: "2024"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)
			got, err := parseRequest(q)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseRequest_Invalid(t *testing.T) {
	for _, query := range []string{"year=abc", "year=2023&year_to=x", "annual=sometimes"} {
		t.Run(query, func(t *testing.T) {
			q, err := url.ParseQuery(query)
			require.NoError(t, err)
			_, err = parseRequest(q)
			var reqErr *requestError
			require.ErrorAs(t, err, &reqErr)
			assert.Equal(t, 400, statusFor(err))
		})
	}
}
