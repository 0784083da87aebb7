// Package database provides the database registry commands of the console:
// create, select, open from an uploaded image and export.
package database

// newDatabaseSignals is posted by the "New" button.
type newDatabaseSignals struct {
	DBName string `json:"dbName"`
}
