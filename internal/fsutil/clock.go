package fsutil

import (
	"time"

	"github.com/microsoft/trident/internal/types"
)

// RealClock backs types.Clock with the actual wall clock.
type RealClock struct{}

var _ types.Clock = RealClock{}

func (RealClock) Now() time.Time      { return time.Now() }
func (RealClock) Sleep(d time.Duration) { time.Sleep(d) }
