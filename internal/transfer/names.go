package transfer

import (
	"path/filepath"
	"strings"
	"time"
)

// backupTimeLayout is ISO-8601 in UTC with millisecond precision. ':' and
// '.' are replaced by '-' before the stamp goes into a file name.
const backupTimeLayout = "2006-01-02T15:04:05.000Z"

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

var databaseExtensions = []string{".sqlite", ".sqlite3", ".db"}

// DatabaseFileName returns the download name for a database image.
func DatabaseFileName(db string) string {
	ext := strings.ToLower(filepath.Ext(db))
	for _, e := range databaseExtensions {
		if ext == e {
			return db
		}
	}
	return db + ".sqlite"
}

// BackupFileName returns the name of the image exported before a table
// is dropped.
func BackupFileName(db string, t time.Time) string {
	return db + ".backup." + stampReplacer.Replace(t.UTC().Format(backupTimeLayout)) + ".sqlite"
}

// CSVFileName returns the download name for a table export.
func CSVFileName(db, table string) string {
	if db == "" {
		return table + ".csv"
	}
	return db + "-" + table + ".csv"
}

// ScriptFileName returns the download name for the SQL script buffer.
func ScriptFileName(db string) string {
	if db == "" {
		return "script.sql"
	}
	return db + ".sql"
}
