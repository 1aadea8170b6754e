// Copyright (c) Elliot Nunn
// Licensed under the MIT license

// Package errs holds the error kinds shared by every decoder,
// and the panic-based unwinding used inside a single decode.
package errs

import (
	"errors"
	"fmt"
)

// ErrUnsqueeze is matched by every error this module produces.
var ErrUnsqueeze = errors.New("unsqueeze")

type kind string

func (k kind) Error() string { return string(k) }

func (k kind) Is(target error) bool { return target == ErrUnsqueeze }

var (
	ErrInvalidFormat    error = kind("invalid format")
	ErrDecompression    error = kind("decompression error")
	ErrVerification     error = kind("verification failed")
	ErrOutOfBounds      error = kind("out of bounds")
	ErrInvalidOperation error = kind("invalid operation")
)

type thrown struct{ err error }

// Throw unwinds the current decode with err.
// It must only be called below a deferred Recover.
func Throw(err error) {
	panic(thrown{err})
}

// Throwf unwinds with an error of the given kind and a formatted message.
func Throwf(k error, format string, args ...any) {
	panic(thrown{fmt.Errorf("%w: "+format, append([]any{k}, args...)...)})
}

// Recover stops the unwinding started by Throw and stores the error in *err.
// A Buffer-level error (out of bounds or invalid operation) is reported as
// the phase kind instead, so callers only ever see format-level kinds.
// Any other panic becomes a decompression error.
func Recover(err *error, phase error) {
	r := recover()
	if r == nil {
		return
	}
	t, ok := r.(thrown)
	if !ok {
		*err = fmt.Errorf("%w: internal panic: %v", ErrDecompression, r)
		return
	}
	*err = Promote(t.err, phase)
}

// Promote rewrites a Buffer-level error as the phase kind.
func Promote(err error, phase error) error {
	if err == nil || phase == nil {
		return err
	}
	if errors.Is(err, ErrOutOfBounds) || errors.Is(err, ErrInvalidOperation) {
		return fmt.Errorf("%w: %w", phase, err)
	}
	return err
}

// Catch runs fn, returning whatever it threw.
// Buffer-level errors are left as they are.
func Catch(fn func()) (err error) {
	defer Recover(&err, nil)
	fn()
	return nil
}
