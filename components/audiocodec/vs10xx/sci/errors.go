package sci

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrDREQTimeout is wrapped by the BusTransferError returned when DREQ stays low past the
// configured timeout.
var ErrDREQTimeout = errors.New("timed out waiting for DREQ")

// A BusTransferError is a failed exchange with the chip: the SPI transport failed, a control
// line could not be driven, or DREQ never came up.
type BusTransferError struct {
	Op  string
	Err error
}

func (e *BusTransferError) Error() string {
	return fmt.Sprintf("vs10xx bus transfer failed during %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *BusTransferError) Unwrap() error {
	return e.Err
}

func transferError(op string, err error) error {
	if err == nil {
		return nil
	}
	var bte *BusTransferError
	if errors.As(err, &bte) {
		return err
	}
	return &BusTransferError{Op: op, Err: err}
}
