package dialect

// Built-in dialect names.
const (
	ANSI      = "ansi"
	TSQL      = "tsql"
	Postgres  = "postgres"
	MySQL     = "mysql"
	Snowflake = "snowflake"
	Oracle    = "oracle"
	BigQuery  = "bigquery"
)

// Default is the dialect assumed when none is configured.
const Default = TSQL

func init() {
	Register(NewDialect(ANSI).
		Identifiers(`"`, `"`).
		Build())

	Register(NewDialect(TSQL).
		Identifiers("[", "]").
		Identifiers(`"`, `"`).
		Top().
		Apply().
		HashIdentifiers().
		AssignmentAlias().
		TableHints().
		Build())

	Register(NewDialect(Postgres).
		Identifiers(`"`, `"`).
		DoubleColonCast().
		Build())

	Register(NewDialect(MySQL).
		Identifiers("`", "`").
		Identifiers(`"`, `"`).
		Build())

	Register(NewDialect(Snowflake).
		Identifiers(`"`, `"`).
		Qualify().
		DoubleColonCast().
		Minus().
		Build())

	Register(NewDialect(Oracle).
		Identifiers(`"`, `"`).
		Minus().
		Build())

	Register(NewDialect(BigQuery).
		Identifiers("`", "`").
		Qualify().
		Build())
}
