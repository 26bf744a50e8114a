package pe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHeader means the DOS or NT headers are missing or corrupt.
	ErrInvalidHeader = errors.New("invalid PE header")
	// ErrParse is wrapped by every ParseError.
	ErrParse = errors.New("malformed resource directory")
	// ErrResourceNotFound means a lookup by key or type missed.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrNotSupported is returned for resource creation and deletion.
	ErrNotSupported = errors.New("operation not supported")
	// ErrRebuild means the resource section could not be re-serialized.
	ErrRebuild = errors.New("unable to rebuild resource section")
	// ErrSectionOverflow means a grown section would overlap the next section.
	ErrSectionOverflow = errors.New("section overflows into the next section")
	// ErrInvalidAlignment means an alignment is not a power of two.
	ErrInvalidAlignment = errors.New("alignment must be a power of two")
	// ErrNoSignature means the image carries no certificate table.
	ErrNoSignature = errors.New("no IMAGE_DIRECTORY_ENTRY_SECURITY defined")
	// ErrOutOfBounds means a read fell outside the backing data.
	ErrOutOfBounds = errors.New("read out of bounds")
)

// ParseError describes a structure that could not be decoded while
// building the resource tree.
type ParseError struct {
	Offset int64
	Reason string
	Err    error
}

func (self *ParseError) Error() string {
	if self.Err != nil {
		return fmt.Sprintf("%v at offset %#x: %s: %v",
			ErrParse, self.Offset, self.Reason, self.Err)
	}
	return fmt.Sprintf("%v at offset %#x: %s", ErrParse, self.Offset, self.Reason)
}

func (self *ParseError) Unwrap() []error {
	if self.Err != nil {
		return []error{ErrParse, self.Err}
	}
	return []error{ErrParse}
}

func newParseError(offset int64, err error, format string, args ...interface{}) error {
	return &ParseError{
		Offset: offset,
		Reason: fmt.Sprintf(format, args...),
		Err:    err,
	}
}
