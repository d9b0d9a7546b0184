package main

import (
	"fmt"

	"github.com/jrhy/flattree"
	"github.com/urfave/cli/v2"
)

var cmdBuild = &cli.Command{
	Name:  "build",
	Usage: "assemble records into a tree and print it",
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "fail if any record is left without a parent",
		},
	}, treeFlags...),
	Action: runBuild,
}

var cmdMove = &cli.Command{
	Name:  "move",
	Usage: "re-parent a node and write the resulting records",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "key",
			Usage:    "node to move, along with its subtree",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "parent",
			Usage:    "new parent key",
			Required: true,
		},
	}, treeFlags...),
	Action: runMove,
}

var cmdRemove = &cli.Command{
	Name:  "remove",
	Usage: "drop a node and its subtree and write the remaining records",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "key",
			Usage:    "node to remove",
			Required: true,
		},
	}, treeFlags...),
	Action: runRemove,
}

func runBuild(cctx *cli.Context) error {
	b, err := loadInput(cctx)
	if err != nil {
		return err
	}
	out := cctx.App.Writer
	fmt.Fprint(out, b.Tree())
	fmt.Fprintf(out, "%d nodes, %d orphaned\n", b.Tree().Size(), b.PendingCount())
	if cctx.Bool("strict") && !b.IsEmpty() {
		return fmt.Errorf("%w: %d", flattree.ErrOrphanedRecords, b.PendingCount())
	}
	return nil
}

func runMove(cctx *cli.Context) error {
	b, err := loadInput(cctx)
	if err != nil {
		return err
	}
	key, parent := cctx.String("key"), cctx.String("parent")
	if !b.Tree().TryMove(key, parent) {
		return fmt.Errorf("cannot move %q under %q", key, parent)
	}
	return writeRecords(cctx, b.Tree())
}

func runRemove(cctx *cli.Context) error {
	b, err := loadInput(cctx)
	if err != nil {
		return err
	}
	key := cctx.String("key")
	if !b.Tree().TryRemove(key) {
		return fmt.Errorf("cannot remove %q", key)
	}
	return writeRecords(cctx, b.Tree())
}

func writeRecords(cctx *cli.Context, t *rawTree) error {
	return flattree.WriteJSONLines(cctx.App.Writer, t.ToFlat())
}
