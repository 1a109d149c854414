package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(ibge, sigla, year, month string, value float64) IndicatorRecord {
	return IndicatorRecord{IBGECode: ibge, CityName: testCity, IndicatorCode: sigla, Year: year, Month: month, Value: value}
}

func allOf(records []IndicatorRecord) Criteria {
	return Criteria{
		Indicators: IndicatorCodes(records),
		Entities:   MunicipalityCodes(Municipalities(records)),
	}
}

func TestFilter_MonthRange(t *testing.T) {
	records := []IndicatorRecord{
		rec(testPatos, testInd, testYear, "Fevereiro", 1),
		rec(testPatos, testInd, testYear, "Março", 2),
		rec(testPatos, testInd, testYear, "Junho", 3),
		rec(testPatos, testInd, testYear, "Julho", 4),
		rec(testPatos, testInd, testYear, MonthUndefined, 5),
	}
	c := allOf(records)
	c.Months = MonthRange{From: "Março", To: "Junho"}

	out, err := Filter(records, c)
	require.NoError(t, err)

	months := make([]string, len(out))
	for i, r := range out {
		months[i] = r.Month
	}
	assert.Equal(t, []string{"Março", "Junho"}, months)
}

func TestFilter_MonthRangeIsOrdinalNotLexical(t *testing.T) {
	// Lexically "Abril" < "Janeiro" < "Maio"; by ordinal April is inside Jan..May
	// and "Setembro" is outside.
	records := []IndicatorRecord{
		rec(testPatos, testInd, testYear, "Abril", 1),
		rec(testPatos, testInd, testYear, "Setembro", 2),
	}
	c := allOf(records)
	c.Months = MonthRange{From: testJaneiro, To: "Maio"}

	out, err := Filter(records, c)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Abril", out[0].Month)
}

func TestFilter_UnknownMonthBound(t *testing.T) {
	records := []IndicatorRecord{rec(testPatos, testInd, testYear, testJaneiro, 1)}
	c := allOf(records)
	c.Months = MonthRange{From: "Jan", To: "Junho"}

	_, err := Filter(records, c)
	require.ErrorIs(t, err, ErrUnknownMonth)
}

func TestFilter_YearRange(t *testing.T) {
	records := []IndicatorRecord{
		rec(testPatos, testInd, "2022", testJaneiro, 1),
		rec(testPatos, testInd, "2023", testJaneiro, 2),
		rec(testPatos, testInd, "2024", testJaneiro, 3),
		rec(testPatos, testInd, "Sem ano", testJaneiro, 4),
	}

	tests := []struct {
		name     string
		years    YearRange
		expected []float64
	}{
		{"single year", YearRange{From: "2023", To: "2023"}, []float64{2}},
		{"inclusive bounds", YearRange{From: "2023", To: "2024"}, []float64{2, 3}},
		{"open upper", YearRange{From: "2023"}, []float64{2, 3}},
		{"unbounded keeps non-numeric", YearRange{}, []float64{1, 2, 3, 4}},
		{"dotted bound", YearRange{From: "2.024"}, []float64{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := allOf(records)
			c.Years = tt.years
			out, err := Filter(records, c)
			require.NoError(t, err)

			values := make([]float64, len(out))
			for i, r := range out {
				values[i] = r.Value
			}
			assert.Equal(t, tt.expected, values)
		})
	}
}

func TestFilter_InvalidYearBound(t *testing.T) {
	c := Criteria{Indicators: []string{testInd}, AllEntities: true, Years: YearRange{From: "dois mil"}}
	_, err := Filter(nil, c)
	require.ErrorIs(t, err, ErrInvalidYear)
}

func TestFilter_Sets(t *testing.T) {
	records := []IndicatorRecord{
		rec(testPatos, testInd, testYear, testJaneiro, 1),
		rec("2501153", testInd, testYear, testJaneiro, 2),
		rec(testPatos, "IN201", testYear, testJaneiro, 3),
	}

	t.Run("empty indicator set yields nothing", func(t *testing.T) {
		out, err := Filter(records, Criteria{AllEntities: true})
		require.NoError(t, err)
		assert.NotNil(t, out)
		assert.Empty(t, out)
	})

	t.Run("empty entity set yields nothing", func(t *testing.T) {
		out, err := Filter(records, Criteria{Indicators: []string{testInd}})
		require.NoError(t, err)
		assert.Empty(t, out)
	})

	t.Run("entity and indicator", func(t *testing.T) {
		out, err := Filter(records, Criteria{Indicators: []string{testInd}, Entities: []string{"2501153"}})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, 2.0, out[0].Value)
	})

	t.Run("all entities", func(t *testing.T) {
		out, err := Filter(records, Criteria{Indicators: []string{testInd}, AllEntities: true})
		require.NoError(t, err)
		assert.Len(t, out, 2)
	})

	t.Run("preserves order and input", func(t *testing.T) {
		snapshot := append([]IndicatorRecord(nil), records...)
		out, err := Filter(records, Criteria{Indicators: []string{testInd, "IN201"}, AllEntities: true})
		require.NoError(t, err)
		assert.Equal(t, records, out)
		assert.Equal(t, snapshot, records)
	})
}

func TestFilterRegions(t *testing.T) {
	records := []AggregatedRecord{
		{MicroRegion: "LITORAL", IndicatorCode: testInd},
		{MicroRegion: "BORBOREMA", IndicatorCode: testInd},
	}
	out := FilterRegions(records, []string{"BORBOREMA"})
	require.Len(t, out, 1)
	assert.Equal(t, "BORBOREMA", out[0].MicroRegion)
	assert.Empty(t, FilterRegions(records, nil))
}
