package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/jrhy/flattree"
	"github.com/urfave/cli/v2"
)

type (
	rawTree    = flattree.Tree[string, json.RawMessage]
	rawBuilder = flattree.Builder[string, json.RawMessage]
	rawRecord  = flattree.FlatRecord[string, json.RawMessage]
)

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func readRecords(path string) ([]rawRecord, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	records, err := flattree.ReadJSONLines[string, json.RawMessage](r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, nil
}

// loadInput builds a tree from the --input records under the --root key.
// Records that never find their parent are logged and left in the builder.
func loadInput(cctx *cli.Context) (*rawBuilder, error) {
	records, err := readRecords(cctx.String("input"))
	if err != nil {
		return nil, err
	}
	b := flattree.NewBuilder(flattree.New[string, json.RawMessage](cctx.String("root"), nil, nil))
	placed := b.IngestAll(slices.Values(records))
	for _, rec := range b.Pending() {
		slog.Warn("record not placed", "key", rec.Key, "parent", rec.ParentKey)
	}
	slog.Info("built tree", "records", len(records), "placed", placed, "pending", b.PendingCount())
	return b, nil
}
