package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", TSQL},
		{"  ", TSQL},
		{"mssql", TSQL},
		{"SQLServer", TSQL},
		{"sql_server", TSQL},
		{"sql-server", TSQL},
		{"T-SQL", TSQL},
		{"postgresql", Postgres},
		{"big_query", BigQuery},
		{"generic", ANSI},
		{"Snowflake", Snowflake},
		{"somethingelse", "somethingelse"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestBuiltinsRegistered(t *testing.T) {
	assert.Equal(t, []string{"ansi", "bigquery", "mysql", "oracle", "postgres", "snowflake", "tsql"}, List())

	d, ok := Get("mssql")
	require.True(t, ok)
	assert.Equal(t, TSQL, d.Name)
	assert.True(t, d.SupportsTop())
	assert.True(t, d.SupportsApply())
	assert.True(t, d.AllowsHashIdentifiers())

	closing, ok := d.QuoteFor('[')
	require.True(t, ok)
	assert.Equal(t, byte(']'), closing)

	_, ok = d.QuoteFor('`')
	assert.False(t, ok)
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("cobol")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownDialect)
	assert.Contains(t, err.Error(), "tsql")
}

func TestRetryOrder(t *testing.T) {
	var names []string
	for _, d := range RetryOrder() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"ansi", "tsql", "postgres", "mysql", "snowflake", "oracle", "bigquery"}, names)
}

func TestBuilderDefaults(t *testing.T) {
	d := NewDialect("Custom").Build()
	assert.Equal(t, "custom", d.Name)
	assert.Equal(t, []Quote{{Open: '"', Close: '"'}}, d.Quotes())
	assert.False(t, d.SupportsQualify())

	d = NewDialect("x").Identifiers("`", "`").Qualify().DoubleColonCast().Minus().Build()
	assert.True(t, d.SupportsQualify())
	assert.True(t, d.SupportsDoubleColonCast())
	assert.True(t, d.SupportsMinus())
	_, ok := d.QuoteFor('"')
	assert.False(t, ok)
}
