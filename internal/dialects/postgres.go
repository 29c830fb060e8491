package dialects

// Postgres is the PostgreSQL dialect: full keyword list, numbered placeholders and RETURNING.
var Postgres = newBackend("postgres", postgresKeywords, '"', Dollar, true)

func init() {
	Register("postgres", Postgres)
	Register("postgresql", Postgres)
	Register("pgx", Postgres)
	Register("pgx/v5", Postgres)
}
