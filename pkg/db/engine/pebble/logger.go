package pebble

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eigerco/ldb/pkg/log"
)

// logger routes pebble's internal messages to log.Engine. The logger is looked
// up on every message so that a later log.Init applies to open stores.
type logger struct{}

func (logger) engine() *zerolog.Logger {
	l := log.Engine.With().Str("engine", Name).Logger()
	return &l
}

func (l logger) Infof(format string, args ...interface{}) {
	l.engine().Debug().Msg(fmt.Sprintf(format, args...))
}

func (l logger) Errorf(format string, args ...interface{}) {
	l.engine().Error().Msg(fmt.Sprintf(format, args...))
}

func (l logger) Fatalf(format string, args ...interface{}) {
	l.engine().Fatal().Msg(fmt.Sprintf(format, args...))
}
