package logger

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// New returns a console logger configured with the provided level.
// Unknown levels fall back to debug.
func New(level string) *Logger {
	return newZapLogger(level)
}

// Nop returns a logger that discards everything. Useful in tests.
func Nop() *Logger {
	return newNopLogger()
}
