package core

// Logger is any leveled logger.
// args may carry errors, maps of extra data, LogContext records or the user.User the log line relates to.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogContext is implemented by records whose identifiers are attached to log reports.
type LogContext interface {
	LogFields() map[string]interface{}
}
