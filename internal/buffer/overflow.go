package buffer

import "github.com/elliotnunn/unsqueeze/internal/errs"

type integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Sum adds sizes or offsets derived from untrusted input.
// A negative operand or a wraparound unwinds with errs.ErrOutOfBounds.
func Sum[T integer](a T, rest ...T) T {
	if a < 0 {
		errs.Throwf(errs.ErrOutOfBounds, "negative size %d", a)
	}
	for _, x := range rest {
		if x < 0 {
			errs.Throwf(errs.ErrOutOfBounds, "negative size %d", x)
		}
		s := a + x
		if s < a {
			errs.Throwf(errs.ErrOutOfBounds, "size overflow")
		}
		a = s
	}
	return a
}
