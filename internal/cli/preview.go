package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"kpi/internal/domain/kpi"
)

// Preview evaluates each matched CSV file as its own batch. Without a roster
// every row is reported as unmatched.
func Preview(ctx context.Context, opts Options, patterns []string) ([]FilePreview, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := LoadConfiguration(opts.Config)
	if err != nil {
		return nil, err
	}
	var entries []kpi.DirectoryEntry
	if opts.Roster != "" {
		entries, err = LoadRoster(opts.Roster)
		if err != nil {
			return nil, err
		}
	}
	resolver := kpi.NewRosterResolver(entries)

	files, err := ExpandInputs(patterns)
	if err != nil {
		return nil, err
	}
	previews := make([]FilePreview, 0, len(files))
	for _, file := range files {
		rows, err := ReadRowsFile(file)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		result, err := kpi.EvaluateBatch(ctx, cfg, resolver, kpi.BatchRequest{
			Period:   opts.Period,
			FileName: filepath.Base(file),
			Rows:     rows,
		}, opts.Concurrency)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		previews = append(previews, FilePreview{File: file, Result: result})
	}
	return previews, nil
}
