package cli

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/vs10xx/components/audiocodec/vs10xx"
	"go.viam.com/vs10xx/components/board"
	"go.viam.com/vs10xx/components/board/genericlinux"
	"go.viam.com/vs10xx/config"
	"go.viam.com/vs10xx/logging"
)

// openBoard opens the board a config describes. Tests replace it.
var openBoard = func(ctx context.Context, cfg *config.Config, logger logging.Logger) (board.Board, error) {
	b, err := genericlinux.NewBoard(ctx, cfg.Board, logger)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// codecClient is an initialized codec and the board it sits on.
type codecClient struct {
	c      *cli.Context
	cfg    *config.Config
	logger logging.Logger
	board  board.Board
	device *vs10xx.Device
}

func newLogger(c *cli.Context) logging.Logger {
	if c.Bool(flagDebug) {
		return logging.NewDebugLogger("vs10xx")
	}
	return logging.NewLogger("vs10xx")
}

func newCodecClient(c *cli.Context) (*codecClient, error) {
	cfg, err := config.Read(c.String(flagConfig))
	if err != nil {
		return nil, err
	}
	logger := newLogger(c)
	if cfg.Debug {
		logger.SetLevel(logging.DEBUG)
	}
	b, err := openBoard(c.Context, cfg, logger)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open board")
	}
	device, err := vs10xx.Connect(c.Context, b, cfg.Codec, logger.Sublogger("codec"))
	if err != nil {
		return nil, multierr.Combine(err, b.Close(c.Context))
	}
	return &codecClient{c: c, cfg: cfg, logger: logger, board: b, device: device}, nil
}

func (cc *codecClient) close() error {
	ctx := context.Background()
	return multierr.Combine(cc.device.Close(ctx), cc.board.Close(ctx))
}

// withCodec runs fn against a connected codec and always disconnects afterwards.
func withCodec(c *cli.Context, fn func(cc *codecClient) error) (err error) {
	cc, err := newCodecClient(c)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, cc.close())
	}()
	return fn(cc)
}

func printf(c *cli.Context, format string, a ...interface{}) {
	fmt.Fprintf(c.App.Writer, format+"\n", a...)
}
