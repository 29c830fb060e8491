package dialects

// MySQL is the MySQL dialect. It quotes with backticks and has no RETURNING clause, so
// generated keys come from the driver's LastInsertId.
var MySQL = newBackend("mysql", genericKeywords, '`', Question, false)

func init() {
	Register("mysql", MySQL)
}
