// Command lineidx builds line-offset indexes and reads lines through them.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"lineidx/internal/config"
	"lineidx/internal/home"
	"lineidx/internal/lines"
	"lineidx/internal/logging"
)

var version = "dev"

const envIndexDir = "LINEIDX_INDEX_DIR"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr, os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the root flags are resolved.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	logger   *slog.Logger
	home     home.Dir
	store    *config.Store
	settings config.Settings
}

func newRootCmd(stdout, stderr io.Writer, getenv func(string) string) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, getenv: getenv, logger: logging.Discard()}

	rootCmd := &cobra.Command{
		Use:           "lineidx",
		Short:         "Random access to lines of large text files",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	rootCmd.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	rootCmd.PersistentFlags().String("index-dir", "", "directory holding index files (or "+envIndexDir+" env)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level, optionally per component (e.g. warn,lines=debug)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintln(a.stdout, version)
		},
	}

	rootCmd.AddCommand(
		newBuildCmd(a),
		newCountCmd(a),
		newLineCmd(a),
		newRangeCmd(a),
		newHeadCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newConfigCmd(a),
		versionCmd,
	)
	return rootCmd
}

// init resolves the home directory, loads settings and builds the logger.
// Flags override settings.
func (a *app) init(cmd *cobra.Command) error {
	homeFlag, _ := cmd.Flags().GetString("home")
	hd, err := resolveHome(homeFlag)
	if err != nil {
		return fmt.Errorf("resolve home directory: %w", err)
	}
	a.home = hd
	a.store = config.NewStore(hd.ConfigPath())
	if a.settings, err = a.store.Load(); err != nil {
		return err
	}

	levelSpec, _ := cmd.Flags().GetString("log-level")
	if !cmd.Flags().Changed("log-level") && a.settings.LogLevel != "" {
		levelSpec = a.settings.LogLevel
	}
	format, _ := cmd.Flags().GetString("log-format")
	if !cmd.Flags().Changed("log-format") && a.settings.LogFormat != "" {
		format = a.settings.LogFormat
	}

	def, overrides, err := logging.ParseLevels(levelSpec)
	if err != nil {
		return err
	}
	base, err := logging.NewHandler(a.stderr, format)
	if err != nil {
		return err
	}
	filter := logging.NewComponentFilterHandler(base, def)
	for component, level := range overrides {
		filter.SetLevel(component, level)
	}
	a.logger = slog.New(filter)
	return nil
}

func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

// indexDir resolves the index directory: flag, then environment, then
// settings, then <home>/indexes (created on demand).
func (a *app) indexDir(cmd *cobra.Command) (string, error) {
	if dir, _ := cmd.Flags().GetString("index-dir"); dir != "" {
		return dir, nil
	}
	if dir := a.getenv(envIndexDir); dir != "" {
		return dir, nil
	}
	if a.settings.IndexDir != "" {
		return a.settings.IndexDir, nil
	}
	return a.home.EnsureIndexDir()
}

// openReader returns a Reader configured for the --data flag of cmd.
func (a *app) openReader(cmd *cobra.Command, opts ...lines.Option) (*lines.Reader, error) {
	dataPath, _ := cmd.Flags().GetString("data")
	dir, err := a.indexDir(cmd)
	if err != nil {
		return nil, err
	}
	r := lines.New(lines.Config{}, append([]lines.Option{lines.WithLogger(a.logger)}, opts...)...)
	if err := r.SetDataPath(dataPath); err != nil {
		return nil, err
	}
	if err := r.SetIndexDir(dir); err != nil {
		return nil, err
	}
	return r, nil
}

func parseLineArgs(args []string) ([]int, error) {
	out := make([]int, len(args))
	for i, s := range args {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("argument %q is not a line number", s)
		}
		out[i] = n
	}
	return out, nil
}

func addDataFlag(cmd *cobra.Command) {
	cmd.Flags().String("data", "", "data file")
	_ = cmd.MarkFlagRequired("data")
}
