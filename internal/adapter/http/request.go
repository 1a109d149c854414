package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/couchcryptid/sire-dashboard/internal/pipeline"
)

// Query parameters of the view routes.
const (
	paramEntity    = "entity"
	paramIndicator = "indicator"
	paramYear      = "year"
	paramYearTo    = "year_to"
	paramMonthFrom = "month_from"
	paramMonthTo   = "month_to"
	paramAnnual    = "annual"
)

// requestError is a malformed query parameter.
type requestError struct {
	param string
	err   error
}

func (e *requestError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.param, e.err)
}

func (e *requestError) Unwrap() error { return e.err }

// parseRequest reads a selection from query parameters. entity and indicator
// repeat; year alone selects a single year and year_to extends it to a range.
func parseRequest(q url.Values) (pipeline.Request, error) {
	req := pipeline.Request{
		Entities:   nonEmpty(q[paramEntity]),
		Indicators: nonEmpty(q[paramIndicator]),
		Months: domain.MonthRange{
			From: q.Get(paramMonthFrom),
			To:   q.Get(paramMonthTo),
		},
	}

	from, to := strings.TrimSpace(q.Get(paramYear)), strings.TrimSpace(q.Get(paramYearTo))
	if to == "" {
		to = from
	}
	for _, p := range [...]struct{ name, value string }{{paramYear, from}, {paramYearTo, to}} {
		if p.value == "" {
			continue
		}
		if _, ok := domain.YearNumber(p.value); !ok {
			return pipeline.Request{}, &requestError{param: p.name, err: fmt.Errorf("%w: %q", domain.ErrInvalidYear, p.value)}
		}
	}
	req.Years = domain.YearRange{From: from, To: to}

	if v := q.Get(paramAnnual); v != "" {
		annual, err := strconv.ParseBool(v)
		if err != nil {
			return pipeline.Request{}, &requestError{param: paramAnnual, err: err}
		}
		req.Annual = annual
	}
	return req, nil
}

// withIndicator replaces the indicator selection of r's query.
func withIndicator(r *http.Request, indicator string) string {
	q := r.URL.Query()
	q.Set(paramIndicator, indicator)
	return q.Encode()
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
