package logging

import (
	stdlog "log"
	"os"

	"github.com/charmbracelet/log"
)

// Setup configures the process-wide logger. Call it before building components.
func Setup(level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetOutput(os.Stderr)
	log.SetLevel(lvl)
	log.SetReportTimestamp(true)
	return nil
}

// Named returns a logger whose lines carry the component prefix.
func Named(component string) *log.Logger {
	return log.Default().WithPrefix(component)
}

// Standard adapts the component logger for libraries that expect a *log.Logger.
func Standard(component string) *stdlog.Logger {
	return Named(component).StandardLog()
}
