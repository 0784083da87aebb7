// Package resources serves the console's static assets: embedded in the
// binary by default, read from disk when built with the dev tag.
package resources

// StaticDirectoryPath is the path to static assets from the project root.
const StaticDirectoryPath = "internal/ui/resources/static"

// StylesheetPath is the URL of the console stylesheet.
func StylesheetPath() string {
	return StaticPath("app.css")
}
