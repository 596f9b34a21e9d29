package logging

// LogEntry is a single structured log record.
type LogEntry struct {
	Time     int64 // Unix nanoseconds
	Severity Severity
	Message  string
	File     string
	Line     int

	// General structured data
	Fields map[string]interface{}
}
