package safepoint

import (
	"os"

	"github.com/rs/zerolog"
)

// pkgLogger is the package-default logger, swappable with SetLogger
// before calling New so that the constructed Runtime picks it up.
var pkgLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
	With().Timestamp().Logger().
	Level(zerolog.InfoLevel)

// SetLogger replaces the package-default logger used by Runtimes created
// afterwards. It does not affect Runtimes already constructed; use
// Runtime.SetLogger for that.
func SetLogger(l zerolog.Logger) {
	pkgLogger = l
}

// SetLogger replaces this Runtime's logger.
func (rt *Runtime) SetLogger(l zerolog.Logger) {
	rt.logger = l
}
