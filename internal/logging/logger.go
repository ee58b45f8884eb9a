// Package logging wraps logrus behind the types.Logger seam.
package logging

import (
	"fmt"

	"github.com/sanity-io/litter"
	"github.com/sirupsen/logrus"

	"github.com/microsoft/trident/internal/types"
)

// Logrus adapts *logrus.Logger to types.Logger.
type Logrus struct {
	log *logrus.Logger
}

var _ types.Logger = (*Logrus)(nil)

// New builds a logger writing structured text to stderr, the verbosity
// named by level ("trace"|"debug"|"info"|"warn"|"error").
func New(level string) *Logrus {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	lg := &Logrus{log: l}
	_ = lg.SetLevel(level)
	return lg
}

func (l *Logrus) SetLevel(level string) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.log.SetLevel(lv)
	return nil
}

func (l *Logrus) Tracef(format string, args ...interface{}) { l.log.Tracef(format, args...) }
func (l *Logrus) Debugf(format string, args ...interface{}) { l.log.Debugf(format, args...) }
func (l *Logrus) Infof(format string, args ...interface{})  { l.log.Infof(format, args...) }
func (l *Logrus) Warnf(format string, args ...interface{})  { l.log.Warnf(format, args...) }
func (l *Logrus) Errorf(format string, args ...interface{}) { l.log.Errorf(format, args...) }

// DumpTrace emits a deep, field-aligned dump of v at trace level using
// sanity-io/litter — used for Host Configuration/Host Status dumps that
// would otherwise be unreadable as a single %+v line.
func (l *Logrus) DumpTrace(label string, v interface{}) {
	if !l.log.IsLevelEnabled(logrus.TraceLevel) {
		return
	}
	l.log.Tracef("%s:\n%s", label, litter.Sdump(v))
}
