package dialects

// SQLite is the SQLite dialect. RETURNING needs SQLite 3.35 or newer, which both
// supported drivers bundle.
var SQLite = newBackend("sqlite", genericKeywords, '"', Question, true)

func init() {
	Register("sqlite", SQLite)
	Register("sqlite3", SQLite)
}
