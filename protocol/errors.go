package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing field")

	// ErrNullResult is returned when a response shape is decoded from
	// null.
	ErrNullResult = errors.New("result is null")

	// ErrHashLength is returned when a hash is not 64 hex characters.
	ErrHashLength = errors.New("hash must be 64 hex characters")

	// ErrVersionHexMismatch is returned when versionHex does not encode
	// version.
	ErrVersionHexMismatch = errors.New("versionHex does not match version")

	// ErrTargetMismatch is returned when target does not match bits.
	ErrTargetMismatch = errors.New("target does not match bits")

	// ErrTxCountMismatch is returned when nTx disagrees with the number
	// of listed transactions.
	ErrTxCountMismatch = errors.New("nTx does not match tx list")

	// ErrOutOfRange is returned when a number does not fit its field.
	ErrOutOfRange = errors.New("value out of range")
)

// fieldError records which raw field failed to convert.
type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.field, e.err)
}

func (e *fieldError) Unwrap() error {
	return e.err
}

// splitFieldError returns the field name and cause of a conversion error.
func splitFieldError(err error) (string, error) {
	var fe *fieldError
	if errors.As(err, &fe) {
		return fe.field, fe.err
	}

	return "", err
}

// BlockHeaderVerboseError is returned when a verbose header cannot be
// converted.
type BlockHeaderVerboseError struct {
	// Field is the raw field that failed.
	Field string

	// Err is the reason.
	Err error
}

// Error returns a human readable description of the failure.
func (e *BlockHeaderVerboseError) Error() string {
	return fmt.Sprintf("block header verbose: %s: %v", e.Field, e.Err)
}

// Unwrap returns the reason.
func (e *BlockHeaderVerboseError) Unwrap() error {
	return e.Err
}

func newBlockHeaderVerboseError(err error) error {
	field, cause := splitFieldError(err)
	return &BlockHeaderVerboseError{Field: field, Err: cause}
}

// BlockVerboseOneError is returned when a verbose block cannot be converted.
type BlockVerboseOneError struct {
	// Field is the raw field that failed.
	Field string

	// Err is the reason.
	Err error
}

// Error returns a human readable description of the failure.
func (e *BlockVerboseOneError) Error() string {
	return fmt.Sprintf("block verbose one: %s: %v", e.Field, e.Err)
}

// Unwrap returns the reason.
func (e *BlockVerboseOneError) Unwrap() error {
	return e.Err
}

func newBlockVerboseOneError(err error) error {
	field, cause := splitFieldError(err)
	return &BlockVerboseOneError{Field: field, Err: cause}
}

// BlockFilterError is returned when a block filter cannot be converted.
type BlockFilterError struct {
	// Field is the raw field that failed.
	Field string

	// Err is the reason.
	Err error
}

// Error returns a human readable description of the failure.
func (e *BlockFilterError) Error() string {
	return fmt.Sprintf("block filter: %s: %v", e.Field, e.Err)
}

// Unwrap returns the reason.
func (e *BlockFilterError) Unwrap() error {
	return e.Err
}

func newBlockFilterError(err error) error {
	field, cause := splitFieldError(err)
	return &BlockFilterError{Field: field, Err: cause}
}
