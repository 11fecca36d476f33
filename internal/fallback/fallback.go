// Package fallback runs an ordered list of providers and returns the first
// success. Failures of earlier providers are kept on the outcome so callers
// can log or report them.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrExhausted is returned when every step failed.
var ErrExhausted = errors.New("all fallback steps failed")

// Step is one provider in a chain.
type Step[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, error)
}

// Failure records a step that did not succeed.
type Failure struct {
	Step string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Step, f.Err)
}

func (f Failure) Unwrap() error { return f.Err }

// Outcome is the result of running a chain.
type Outcome[T any] struct {
	Value    T
	Step     string // name of the step that succeeded
	Failures []Failure
}

// First tries steps in order and stops at the first one that returns a nil
// error. Steps with a nil Try are skipped. If every step fails, the returned
// error wraps ErrExhausted and each step's failure.
func First[T any](ctx context.Context, steps ...Step[T]) (Outcome[T], error) {
	var out Outcome[T]
	for _, s := range steps {
		if s.Try == nil {
			continue
		}
		v, err := s.Try(ctx)
		if err == nil {
			out.Value = v
			out.Step = s.Name
			return out, nil
		}
		out.Failures = append(out.Failures, Failure{Step: s.Name, Err: err})
	}

	errs := make([]error, 0, len(out.Failures)+1)
	errs = append(errs, ErrExhausted)
	for _, f := range out.Failures {
		errs = append(errs, f)
	}
	return out, errors.Join(errs...)
}

// Validate wraps a step so that a successful result rejected by ok is
// treated as a failure with err.
func Validate[T any](s Step[T], ok func(T) bool, err error) Step[T] {
	if s.Try == nil {
		return s
	}
	try := s.Try
	s.Try = func(ctx context.Context) (T, error) {
		v, e := try(ctx)
		if e != nil {
			return v, e
		}
		if !ok(v) {
			var zero T
			return zero, err
		}
		return v, nil
	}
	return s
}
