package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/jrhy/flattree"
	"github.com/jrhy/flattree/persist/file"
	s3persist "github.com/jrhy/flattree/persist/s3"
	"github.com/urfave/cli/v2"
)

var persistFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "dir",
		Usage:   "directory to keep snapshot chunks in",
		EnvVars: []string{"FLATTREE_DIR"},
	},
	&cli.StringFlag{
		Name:    "s3-bucket",
		Usage:   "S3 bucket to keep snapshot chunks in, instead of --dir",
		EnvVars: []string{"FLATTREE_S3_BUCKET"},
	},
	&cli.StringFlag{
		Name:    "s3-prefix",
		Usage:   "key prefix for objects in --s3-bucket",
		EnvVars: []string{"FLATTREE_S3_PREFIX"},
	},
	&cli.StringFlag{
		Name:    "s3-endpoint",
		Usage:   "S3-compatible endpoint URL, for services other than AWS",
		EnvVars: []string{"FLATTREE_S3_ENDPOINT"},
	},
	&cli.StringFlag{
		Name:    "region",
		Value:   "us-east-1",
		EnvVars: []string{"AWS_REGION"},
	},
	&cli.IntFlag{
		Name:    "concurrency",
		Usage:   "maximum parallel chunk stores and loads",
		Value:   flattree.DefaultStoreConcurrency,
		EnvVars: []string{"FLATTREE_CONCURRENCY"},
	},
}

var cmdSnapshot = &cli.Command{
	Name:  "snapshot",
	Usage: "save a tree as content-addressed chunks and print its root link",
	Flags: append(append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "binary",
			Usage: "write chunks in the binary record format instead of JSON lines",
		},
		&cli.IntFlag{
			Name:  "chunk-size",
			Usage: "records per chunk",
			Value: flattree.DefaultChunkSize,
		},
	}, treeFlags...), persistFlags...),
	Action: runSnapshot,
}

var cmdRestore = &cli.Command{
	Name:  "restore",
	Usage: "load a saved tree by its root link",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:     "link",
			Usage:    "root link printed by snapshot",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "size",
			Usage:    "node count printed by snapshot",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "binary",
			Usage: "chunks were written in the binary record format",
		},
		&cli.BoolFlag{
			Name:  "records",
			Usage: "write JSON-lines records instead of the indented tree",
		},
	}, persistFlags...),
	Action: runRestore,
}

func openPersist(cctx *cli.Context) (flattree.Persist, error) {
	dir, bucket := cctx.String("dir"), cctx.String("s3-bucket")
	switch {
	case dir != "" && bucket != "":
		return nil, errors.New("--dir and --s3-bucket are mutually exclusive")
	case dir != "":
		return file.NewPersistForPath(dir), nil
	case bucket != "":
		config := aws.Config{Region: aws.String(cctx.String("region"))}
		if endpoint := cctx.String("s3-endpoint"); endpoint != "" {
			config.Endpoint = aws.String(endpoint)
			config.S3ForcePathStyle = aws.Bool(true)
		}
		sess, err := session.NewSession(&config)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		return s3persist.NewPersist(s3.New(sess), bucket, cctx.String("s3-prefix")), nil
	}
	return nil, errors.New("one of --dir or --s3-bucket is required")
}

func remoteConfig(cctx *cli.Context) (*flattree.RemoteConfig, error) {
	p, err := openPersist(cctx)
	if err != nil {
		return nil, err
	}
	cfg := &flattree.RemoteConfig{
		StoreImmutablePartsWith: p,
		StoreConcurrency:        cctx.Int("concurrency"),
		Logger:                  slog.Default(),
	}
	if cctx.Bool("binary") {
		cfg.Format = flattree.Binary
	}
	return cfg, nil
}

func runSnapshot(cctx *cli.Context) error {
	ctx := context.Background()
	cfg, err := remoteConfig(cctx)
	if err != nil {
		return err
	}
	cfg.ChunkSize = cctx.Int("chunk-size")
	b, err := loadInput(cctx)
	if err != nil {
		return err
	}
	if !b.IsEmpty() {
		return fmt.Errorf("%w: %d", flattree.ErrOrphanedRecords, b.PendingCount())
	}
	root, err := b.Tree().MakeRoot(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(cctx.App.Writer, "%s %d %s\n", root.Link, root.Size, root.Format)
	return nil
}

func runRestore(cctx *cli.Context) error {
	ctx := context.Background()
	cfg, err := remoteConfig(cctx)
	if err != nil {
		return err
	}
	root := &flattree.Root{
		Link:   cctx.String("link"),
		Size:   cctx.Uint64("size"),
		Format: cfg.Format,
	}
	t, err := flattree.LoadTree[string, json.RawMessage](ctx, root, cfg, nil)
	if err != nil {
		return err
	}
	if cctx.Bool("records") {
		return writeRecords(cctx, t)
	}
	fmt.Fprint(cctx.App.Writer, t)
	return nil
}
