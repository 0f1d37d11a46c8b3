package hosting

import "github.com/kbukum/consolehost/config"

// Context is handed to every builder callback.
type Context struct {
	Environment Environment

	// Configuration is the host configuration while app configuration
	// callbacks run, and the app configuration in every later phase.
	Configuration *config.Configuration

	// Properties carries values between callbacks of one build.
	Properties map[string]any
}
