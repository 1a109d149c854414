package csvsource

import (
	"testing"

	"github.com/couchcryptid/sire-dashboard/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIndicators(t *testing.T) {
	data := "\xEF\xBB\xBFIBGE,Cidade,Sigla,Ano,Mês,Valor\n" +
		"2501153,Cajazeiras,IN200,2023,1,95.5\n" +
		"2502300,\"Catolé do Rocha\",IN200,2.023,,97\n" +
		"2504009,Campina Grande,IN201,2024\n"

	rows, err := ParseIndicators([]byte(data))
	require.NoError(t, err)

	want := []domain.RawRow{
		{IBGE: "2501153", Cidade: "Cajazeiras", Sigla: "IN200", Ano: "2023", Mes: "1", Valor: "95.5"},
		{IBGE: "2502300", Cidade: "Catolé do Rocha", Sigla: "IN200", Ano: "2.023", Mes: "", Valor: "97"},
		{IBGE: "2504009", Cidade: "Campina Grande", Sigla: "IN201", Ano: "2024"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestParseIndicators_ColumnOrderAndOptionalMonth(t *testing.T) {
	data := "Valor,Sigla,Ano,Cidade,IBGE\n12.5,IN205,2023,Patos,2510808\n"

	rows, err := ParseIndicators([]byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "2510808", rows[0].IBGE)
	assert.Equal(t, "12.5", rows[0].Valor)
	assert.Empty(t, rows[0].Mes)
}

func TestParseIndicators_DecomposedHeader(t *testing.T) {
	data := "IBGE,Cidade,Sigla,Ano, Me\u0302s ,Valor\n2501153,Cajazeiras,IN200,2023,3,1\n"

	rows, err := ParseIndicators([]byte(data))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0].Mes)
}

func TestParseIndicators_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "empty file"},
		{"missing value column", "IBGE,Cidade,Sigla,Ano\n", `missing required column "Valor"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIndicators([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ParseIndicators([]byte("IBGE,Cidade\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseGlossary(t *testing.T) {
	data := "Sigla,Título,Unidade,Descrição\n" +
		"IN200, Índice de atendimento ,%,x\n" +
		",sem código,%,x\n" +
		"IN201,Consumo médio\n"

	entries, err := ParseGlossary([]byte(data))
	require.NoError(t, err)

	want := []domain.GlossaryEntry{
		{Code: "IN200", Title: "Índice de atendimento", Unit: "%"},
		{Code: "IN201", Title: "Consumo médio"},
	}
	if diff := cmp.Diff(want, entries); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestParseGlossary_MissingTitle(t *testing.T) {
	_, err := ParseGlossary([]byte("Sigla,Unidade\nIN200,%\n"))
	require.ErrorIs(t, err, ErrMissingColumn)
}
