package core

// ---------- Table Reference Types ----------

// TableName represents a physical table (or CTE) name in FROM.
// Parts are raw identifiers with delimiters kept.
type TableName struct {
	NodeInfo
	Catalog string
	Schema  string
	Name    string
	Alias   string
}

func (*TableName) tableRefNode() {}

// DerivedTable is a subquery in FROM. Lateral is set for LATERAL (...)
// and for the right side of CROSS/OUTER APPLY.
type DerivedTable struct {
	NodeInfo
	Select  *SelectStmt
	Alias   string
	Lateral bool
}

func (*DerivedTable) tableRefNode() {}

// FuncTable is a table-valued function in FROM, e.g. UNNEST(x) u.
type FuncTable struct {
	NodeInfo
	Func    *FuncCall
	Alias   string
	Lateral bool
}

func (*FuncTable) tableRefNode() {}
