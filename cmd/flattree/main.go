package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(-1)
	}
}

var treeFlags = []cli.Flag{
	&cli.StringFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "JSON-lines file of {Key, ParentKey, Value} records, or - for stdin",
		Required: true,
		EnvVars:  []string{"FLATTREE_INPUT"},
	},
	&cli.StringFlag{
		Name:    "root",
		Usage:   "key of the root node",
		Value:   "root",
		EnvVars: []string{"FLATTREE_ROOT"},
	},
}

func run(args []string) error {
	return newApp(os.Stdout).Run(args)
}

func newApp(out io.Writer) *cli.App {
	app := cli.App{
		Name:    "flattree",
		Usage:   "build, reshape and persist hierarchies from flat parent-link records",
		Version: versioninfo.Short(),
		Writer:  out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log verbosity level (eg: warn, info, debug)",
				Value:   "warn",
				EnvVars: []string{"FLATTREE_LOG_LEVEL", "LOG_LEVEL"},
			},
		},
		Before: func(cctx *cli.Context) error {
			configLogger(cctx, os.Stderr)
			return nil
		},
	}
	app.Commands = []*cli.Command{
		cmdBuild,
		cmdMove,
		cmdRemove,
		cmdSnapshot,
		cmdRestore,
	}
	return &app
}
