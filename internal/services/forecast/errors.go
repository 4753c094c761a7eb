package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData means the series is too short for the requested window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelTraining means training diverged or produced non-finite output.
	ErrModelTraining = errors.New("model training failed")
	// ErrInvalidParams means the forecast parameters are out of range.
	ErrInvalidParams = errors.New("invalid forecast parameters")
)

// ErrorKind classifies a ForecastError for the boundary layer.
type ErrorKind string

const (
	KindInsufficientData ErrorKind = "insufficient_data"
	KindTraining         ErrorKind = "training"
	KindInvalidParams    ErrorKind = "invalid_params"
)

// ForecastError is the typed "no result" returned by the engine.
type ForecastError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *ForecastError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *ForecastError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind.
func (e *ForecastError) Is(target error) bool {
	switch e.Kind {
	case KindInsufficientData:
		return target == ErrInsufficientData
	case KindTraining:
		return target == ErrModelTraining
	case KindInvalidParams:
		return target == ErrInvalidParams
	}
	return false
}

func insufficient(op string, have, need int) error {
	return &ForecastError{Kind: KindInsufficientData, Op: op, Err: fmt.Errorf("have %d points, need %d", have, need)}
}

func trainingFailed(op string, err error) error {
	return &ForecastError{Kind: KindTraining, Op: op, Err: err}
}

func invalidParams(op, format string, a ...any) error {
	return &ForecastError{Kind: KindInvalidParams, Op: op, Err: fmt.Errorf(format, a...)}
}

// ParseError describes a raw record dropped during preparation.
type ParseError struct {
	Index int
	Field string
	Raw   string
}

func (e ParseError) Error() string {
	return fmt.Sprintf("record %d: unparseable %s %q", e.Index, e.Field, e.Raw)
}
