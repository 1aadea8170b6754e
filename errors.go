// Copyright (c) Elliot Nunn
// Licensed under the MIT license

package unsqueeze

import "github.com/elliotnunn/unsqueeze/internal/errs"

// Every error returned by this package matches ErrUnsqueeze,
// and also one of the more specific kinds below.
var (
	ErrUnsqueeze = errs.ErrUnsqueeze

	// ErrInvalidFormat means the header was not recognised or is inconsistent.
	ErrInvalidFormat = errs.ErrInvalidFormat
	// ErrDecompression means the stream is corrupt or does not fit the output.
	ErrDecompression = errs.ErrDecompression
	// ErrVerification means a checksum did not match.
	ErrVerification = errs.ErrVerification
)
