package clock

import (
	"time"

	clockport "github.com/pactsquad/pact-api/internal/ports/out/clock"
)

// SystemClock reads the host clock. Timestamps are normalized to UTC before they reach a store.
type SystemClock struct{}

var _ clockport.Clock = SystemClock{}

func NewSystemClock() SystemClock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now().UTC() }
