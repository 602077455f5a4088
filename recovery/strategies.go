package recovery

import (
	"fmt"
	"sync"

	"github.com/NityaNandPandey/AndroidPDF/observability"
)

// StrictStrategy fails on the first problem.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy records every problem, logs it and asks the caller to repair
// what it can.
type LenientStrategy struct {
	Logger observability.Logger

	mu     sync.Mutex
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

// NewLoggingStrategy returns a lenient strategy reporting to l.
func NewLoggingStrategy(l observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: l}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	s.mu.Lock()
	s.Errors = append(s.Errors, fmt.Errorf("[%s] %w", location, err))
	s.mu.Unlock()
	observability.OrNop(s.Logger).Warn("recovering from damaged input",
		observability.String("component", location.Component),
		observability.Int64("offset", location.ByteOffset),
		observability.Int("object", location.ObjectNum),
		observability.Err(err))
	return ActionFix
}

// Problems returns a copy of the recorded errors.
func (s *LenientStrategy) Problems() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.Errors...)
}

// Default is the strategy used when none is configured.
func Default() Strategy { return NewLenientStrategy() }
