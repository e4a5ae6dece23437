package main

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"lineidx/internal/lines"
)

func newCountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Print the entry and line counts of an index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			p := newPrinter(a.stdout, outputFormat(cmd))
			if err := r.OpenIndex(false); err != nil {
				a.logger.Warn("index unavailable", "error", err)
				if p.format == "json" {
					return p.json(map[string]any{"entries": nil, "lines": nil})
				}
				p.kv([][2]string{{"entries", "unknown"}, {"lines", "unknown"}})
				return nil
			}
			entries, _ := r.Entries()
			n, _ := r.LineCount()
			if p.format == "json" {
				return p.json(map[string]int{"entries": entries, "lines": n})
			}
			p.kv([][2]string{
				{"entries", strconv.Itoa(entries)},
				{"lines", strconv.Itoa(n)},
			})
			return nil
		},
	}
	addDataFlag(cmd)
	cmd.Flags().StringP("output", "o", "table", "output format: table or json")
	return cmd
}

func newLineCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "line N",
		Short: "Print line N (zero-based), building the index if missing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseLineArgs(args)
			if err != nil {
				return err
			}
			r, err := a.openReader(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = r.Close() }()

			if err := r.OpenIndex(true); err != nil {
				return err
			}
			line, err := r.LineAt(nums[0])
			if err != nil {
				return err
			}
			return writeLine(a.stdout, line)
		},
	}
	addDataFlag(cmd)
	return cmd
}

func newRangeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range START END",
		Short: "Print lines START through END inclusive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseLineArgs(args)
			if err != nil {
				return err
			}
			return a.printCursor(cmd, func(r *lines.Reader) *lines.Cursor {
				return r.Lines(nums[0], nums[1])
			})
		},
	}
	addDataFlag(cmd)
	return cmd
}

func newHeadCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "head START COUNT",
		Short: "Print up to COUNT lines beginning at START",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			nums, err := parseLineArgs(args)
			if err != nil {
				return err
			}
			return a.printCursor(cmd, func(r *lines.Reader) *lines.Cursor {
				return r.LinesFrom(nums[0], nums[1])
			})
		},
	}
	addDataFlag(cmd)
	return cmd
}

// printCursor streams a cursor to stdout. Lines printed before a failure
// stay printed.
func (a *app) printCursor(cmd *cobra.Command, open func(*lines.Reader) *lines.Cursor) error {
	r, err := a.openReader(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	if err := r.OpenIndex(true); err != nil {
		return err
	}
	for line, err := range open(r).All() {
		if err != nil {
			return err
		}
		if err := writeLine(a.stdout, line); err != nil {
			return err
		}
	}
	return nil
}

// writeLine writes line followed by a newline unless it already ends in one.
func writeLine(w io.Writer, line []byte) error {
	if _, err := w.Write(line); err != nil {
		return err
	}
	if !bytes.HasSuffix(line, []byte("\n")) {
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
