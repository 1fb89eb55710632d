// Package cli implements the vs10xx command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	flagConfig   = "config"
	flagDebug    = "debug"
	flagProfile  = "profile"
	flagDuration = "duration"
	flagOut      = "out"
)

var app = &cli.App{
	Name:            "vs10xx",
	Usage:           "play and record audio through a VS10xx codec",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     flagConfig,
			Aliases:  []string{"c"},
			Usage:    "load configuration from `FILE`",
			EnvVars:  []string{"VS10XX_CONFIG"},
			Required: true,
		},
		&cli.BoolFlag{
			Name:    flagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "play",
			Usage:     "queue audio files and wait until they finish",
			ArgsUsage: "FILE...",
			Action:    PlayAction,
		},
		{
			Name:      "stream",
			Usage:     "stream a file through the codec in pieces",
			ArgsUsage: "FILE",
			Action:    StreamAction,
		},
		{
			Name:  "record",
			Usage: "record to a file",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  flagProfile,
					Usage: "recording profile, see `vs10xx profiles`",
				},
				&cli.DurationFlag{
					Name:  flagDuration,
					Usage: "stop after this long; record until interrupted when unset",
				},
				&cli.StringFlag{
					Name:     flagOut,
					Aliases:  []string{"o"},
					Usage:    "write the Ogg stream to `FILE`",
					Required: true,
				},
			},
			Action: RecordAction,
		},
		{
			Name:      "volume",
			Usage:     "set the volume of both channels, or of left and right",
			ArgsUsage: "LEFT [RIGHT]",
			Action:    VolumeAction,
		},
		{
			Name:      "input",
			Usage:     "route the input to microphone or line-in",
			ArgsUsage: "KIND",
			Action:    InputAction,
		},
		{
			Name:      "output",
			Usage:     "route the output to headphones or line-out",
			ArgsUsage: "KIND",
			Action:    OutputAction,
		},
		{
			Name:   "profiles",
			Usage:  "list recording profiles",
			Action: ProfilesAction,
		},
		{
			Name:   "run",
			Usage:  "keep the codec up and apply config file changes until interrupted",
			Action: RunAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
