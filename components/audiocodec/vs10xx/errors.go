package vs10xx

import (
	"fmt"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx/engine"
	"go.viam.com/vs10xx/components/audiocodec/vs10xx/sci"
)

// Errors returned by Device operations. Bus failures surface as *sci.BusTransferError.
var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidState         = errors.New("invalid state")
	ErrWrongState           = errors.New("wrong state")
	ErrNoInterruptAvailable = errors.New("no interrupt available")
	ErrOutOfMemory          = errors.New("out of memory")
	ErrInvalidPlugin        = errors.New("invalid plugin file")
	ErrNotPlaying           = errors.New("not currently playing")
	ErrNotReady             = errors.New("codec not ready")
	ErrClosed               = errors.New("codec closed")
)

// UnsupportedVersionError is returned when the chip does not report the expected SS_VER.
type UnsupportedVersionError struct {
	Version int
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("unsupported chip version %d (expected %d)", e.Version, sci.ExpectedVersion)
}

// InvalidProfileError is returned for an unknown recording profile.
type InvalidProfileError struct {
	Profile string
}

func (e *InvalidProfileError) Error() string {
	return fmt.Sprintf("invalid recording profile %q", e.Profile)
}

// Unwrap makes an InvalidProfileError match ErrInvalidArgument.
func (e *InvalidProfileError) Unwrap() error {
	return ErrInvalidArgument
}

// notReadyError matches ErrNotReady and unwraps to why initialization failed.
type notReadyError struct {
	cause error
}

func (e *notReadyError) Error() string {
	return fmt.Sprintf("%v: %v", ErrNotReady, e.cause)
}

func (e *notReadyError) Is(target error) bool {
	return target == ErrNotReady
}

func (e *notReadyError) Unwrap() error {
	return e.cause
}

func streamError(id engine.StreamID) error {
	switch id {
	case engine.InvalidState:
		return ErrInvalidState
	case engine.NoInterrupt:
		return ErrNoInterruptAvailable
	case engine.OutOfMemory:
		return ErrOutOfMemory
	default:
		return errors.Wrapf(ErrInvalidState, "engine returned %d", id)
	}
}

func recordingError(code int) error {
	switch code {
	case engine.RecordOutOfMemory:
		return ErrOutOfMemory
	case engine.RecordInvalidPlugin:
		return ErrInvalidPlugin
	case engine.RecordWrongState:
		return ErrWrongState
	default:
		return errors.Wrapf(ErrWrongState, "engine returned %d", code)
	}
}
