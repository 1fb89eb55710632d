//go:build !linux

package genericlinux

import (
	"context"

	"github.com/pkg/errors"

	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/logging"
)

// NewBoard fails off Linux; there are no spidev buses or GPIO character devices to open.
func NewBoard(ctx context.Context, conf Config, logger logging.Logger) (board.Board, error) {
	return nil, errors.New("genericlinux boards are only supported on linux")
}
