package sqlite

const (
	queryCreateTable = "CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY AUTOINCREMENT)"
	queryTableInfo   = "PRAGMA table_info(%s)"
	queryAddColumn   = "ALTER TABLE %s ADD COLUMN %s %s"
	querySelect      = "SELECT * FROM %s"
	querySelectLimit = "SELECT * FROM %s LIMIT %d"
)

// declFor maps the engine's column types onto SQLite declarations.
var declFor = map[string]string{
	"Text":     "TEXT",
	"Int":      "INTEGER",
	"Numeric":  "REAL",
	"Bool":     "INTEGER",
	"Date":     "TEXT",
	"DateTime": "TEXT",
}
