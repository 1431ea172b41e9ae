package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/colresolve/pkg/dialect"
	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

func qualified(cols []resolve.ResolvedColumn) []string {
	var out []string
	for _, c := range cols {
		out = append(out, c.Qualified())
	}
	return out
}

func TestExtract(t *testing.T) {
	tsql, _ := dialect.Get(dialect.TSQL)

	tests := []struct {
		name string
		sql  string
		want []string
	}{
		{
			name: "aliases from joins",
			sql:  "SELECT c.Name, o.Total FROM dbo.Customers c JOIN Orders AS o ON o.CustId = c.Id WHERE",
			want: []string{"dbo.Customers.Name", "Orders.Total", "Orders.CustId", "dbo.Customers.Id"},
		},
		{
			name: "table name as qualifier",
			sql:  "SELECT Customers.Name FROM dbo.Customers",
			want: []string{"dbo.Customers.Name"},
		},
		{
			name: "multipart qualifier",
			sql:  "SELECT sales.dbo.t.x FROM z",
			want: []string{"sales.dbo.t.x"},
		},
		{
			name: "wildcards and calls skipped",
			sql:  "SELECT t.*, dbo.fn(t.a), COUNT(*) FROM t",
			want: []string{"t.a"},
		},
		{
			name: "from inside a call",
			sql:  "SELECT EXTRACT(YEAR FROM o.d) FROM orders o",
			want: []string{"orders.d"},
		},
		{
			name: "bracketed identifiers",
			sql:  "SELECT [c].[First Name] FROM [dbo].[Customers] [c]",
			want: []string{"dbo.Customers.First Name"},
		},
		{
			name: "keyword as column",
			sql:  "SELECT t.first FROM t",
			want: []string{"t.first"},
		},
		{
			name: "comma joins",
			sql:  "SELECT a.x, b.y FROM t1 a, t2 b",
			want: []string{"t1.x", "t2.y"},
		},
		{
			name: "unknown qualifier kept",
			sql:  "SELECT q.x FROM (SELECT 1) d",
			want: []string{"q.x"},
		},
		{
			name: "literals and unqualified ignored",
			sql:  "SELECT 'a.b', x FROM t",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, qualified(Extract(tt.sql, tsql)))
		})
	}
}

func TestExtractConfidence(t *testing.T) {
	cols := Extract("SELECT t.a FROM t", nil)
	if assert.Len(t, cols, 1) {
		assert.Equal(t, resolve.FallbackDefault, cols[0].Confidence)
		assert.False(t, cols[0].Ambiguous)
	}
}
