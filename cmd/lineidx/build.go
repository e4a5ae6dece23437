package main

import (
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"lineidx/internal/batch"
	"lineidx/internal/index"
)

func newBuildCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the index of one data file, or of every file matching --glob",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			policy := index.RejectExisting
			if force {
				policy = index.Overwrite
			}

			globs, _ := cmd.Flags().GetStringSlice("glob")
			dataPath, _ := cmd.Flags().GetString("data")
			switch {
			case len(globs) > 0 && dataPath != "":
				return errors.New("--data and --glob are mutually exclusive")
			case len(globs) > 0:
				return a.buildBatch(cmd, globs, policy)
			case dataPath == "":
				return errors.New("one of --data or --glob is required")
			}

			keepOpen, _ := cmd.Flags().GetBool("keep-open")
			r, err := a.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			entries, err := r.BuildIndex(policy, keepOpen)
			if err != nil {
				return err
			}
			indexPath, _ := r.IndexPath()
			newPrinter(a.stdout, outputFormat(cmd)).result(batch.Result{
				DataPath:  r.DataPath(),
				IndexPath: indexPath,
				Entries:   entries,
			})
			return nil
		},
	}
	cmd.Flags().String("data", "", "data file")
	cmd.Flags().StringSlice("glob", nil, "build every file matching these doublestar patterns")
	cmd.Flags().Int("jobs", 0, "parallel builds for --glob (default: GOMAXPROCS)")
	cmd.Flags().Bool("force", false, "overwrite an existing index")
	cmd.Flags().Bool("keep-open", false, "keep the data file mapped after the build")
	cmd.Flags().StringP("output", "o", "table", "output format: table or json")
	return cmd
}

func (a *app) buildBatch(cmd *cobra.Command, globs []string, policy index.OverwritePolicy) error {
	dir, err := a.indexDir(cmd)
	if err != nil {
		return err
	}
	paths, err := batch.Discover(globs)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		a.logger.Warn("no files matched", "patterns", globs)
		return nil
	}

	jobs, _ := cmd.Flags().GetInt("jobs")
	b := &batch.Builder{
		IndexDir:    dir,
		Policy:      policy,
		Concurrency: jobs,
		Logger:      a.logger,
	}
	results, buildErr := b.Build(cmd.Context(), paths)

	p := newPrinter(a.stdout, outputFormat(cmd))
	if p.format == "json" {
		type row struct {
			batch.Result
			Error string `json:"error,omitempty"`
		}
		out := make([]row, len(results))
		for i, r := range results {
			out[i].Result = r
			if r.Err != nil {
				out[i].Error = r.Err.Error()
			}
		}
		if err := p.json(out); err != nil {
			return err
		}
		return buildErr
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		if r.Err != nil {
			status = r.Err.Error()
		}
		rows = append(rows, []string{r.DataPath, r.IndexPath, strconv.Itoa(r.Entries), status})
	}
	p.table([]string{"DATA", "INDEX", "ENTRIES", "STATUS"}, rows)
	return buildErr
}
