// Package main is the vs10xx command itself.
package main

import (
	"log"
	"os"

	"go.viam.com/vs10xx/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
