// Package common provides the session plumbing, error mapping and view
// assembly shared by the UI features.
package common

// SessionName is the cookie name of the gorilla session.
const SessionName = "dbbrowser"

// sessionIDKey stores the console session id in the cookie session.
const sessionIDKey = "console_session"

// Flash kinds stored in the cookie session.
const (
	flashError = "error"
	flashInfo  = "info"
)
