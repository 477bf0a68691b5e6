package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/simonhull/firebird-suite/weaver"
	"github.com/simonhull/firebird-suite/weaver/internal/fileop"
	"github.com/simonhull/firebird-suite/weaver/internal/output"
	"github.com/simonhull/firebird-suite/weaver/internal/progress"
	"github.com/simonhull/firebird-suite/weaver/pkg/analyzer"
	"github.com/simonhull/firebird-suite/weaver/pkg/config"
	"github.com/simonhull/firebird-suite/weaver/pkg/format"
	"github.com/simonhull/firebird-suite/weaver/pkg/graph"
	"github.com/simonhull/firebird-suite/weaver/pkg/logger"
	"github.com/simonhull/firebird-suite/weaver/pkg/metrics"
	"github.com/simonhull/firebird-suite/weaver/pkg/parser"
	"github.com/simonhull/firebird-suite/weaver/pkg/walker"
)

const usageTemplate = `Usage:
  {{.UseLine}}

Options:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}
`

// flags that only steer the command itself and never reach the config
type rootOptions struct {
	configFile string
	dumpConfig bool
	dryRun     bool
}

// RootCmd creates and returns the weaver command
func RootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "weaver [flags] ROOT...",
		Short: "Build the include graph of a C/C++ source tree",
		Long: `Weaver scans C and C++ sources below each ROOT, resolves their #include
directives against the including file's directory and the -I search path,
and prints the resulting dependency graph as Graphviz DOT or GraphML.

Headers that cannot be found stay in the graph under their literal name.`,
		Version:       weaver.Version,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRoot(cmd, args, opts)
		},
	}

	// A root directory named "completion" must not turn into a subcommand.
	cmd.CompletionOptions.DisableDefaultCmd = true

	config.RegisterFlags(cmd.Flags())
	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "read settings from YAML `FILE` (default ./weaver.yaml if present)")
	cmd.Flags().BoolVar(&opts.dumpConfig, "dump-config", false, "print the effective configuration as YAML and exit")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "build the graph and report what would be written without writing anything")

	cmd.SetVersionTemplate("Weaver Version {{.Version}}\n")
	cmd.SetUsageTemplate(usageTemplate)
	cmd.SetFlagErrorFunc(flagError)

	return cmd
}

// Execute runs the weaver command with the process arguments.
func Execute() error {
	return RootCmd().Execute()
}

// flagError rewrites unknown option errors to the form scripts match on.
func flagError(_ *cobra.Command, err error) error {
	var notExist *pflag.NotExistError
	if !errors.As(err, &notExist) {
		return err
	}
	if notExist.GetSpecifiedShortnames() != "" {
		return fmt.Errorf("unrecognised option '-%s'", notExist.GetSpecifiedName())
	}
	return fmt.Errorf("unrecognised option '--%s'", notExist.GetSpecifiedName())
}

func runRoot(cmd *cobra.Command, args []string, opts *rootOptions) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	output.SetWriter(stderr)

	cfg, err := config.Load(cmd.Flags(), opts.configFile)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		cfg.Roots = args
	}
	if opts.dumpConfig {
		return config.Dump(cmd.OutOrStdout(), cfg)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		level = logger.LevelDebug
	}
	log := logger.NewLogger(level, stderr)
	logger.SetDefault(log)
	output.SetVerbose(cfg.Verbose)

	// Format and output target are checked before any traversal.
	outFormat, err := format.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	if len(cfg.Roots) == 0 {
		return fmt.Errorf("%w: no ROOT given", walker.ErrNoValidRoot)
	}
	if cfg.Out != "" {
		probe := &fileop.WriteFileOp{Path: cfg.Out, Content: []byte{}}
		if err := probe.Validate(ctx, cfg.Force); err != nil {
			return err
		}
	}

	extractor, err := parser.New(parser.Kind(cfg.Parser), parser.Options{KeepComments: cfg.KeepComments})
	if err != nil {
		return err
	}
	if c, ok := extractor.(interface{ Close() }); ok {
		defer c.Close()
	}

	walkOpts := walker.DefaultOptions()
	walkOpts.Extensions = cfg.Ext
	walkOpts.Exclude = cfg.Exclude
	walkOpts.IncludeHidden = cfg.Hidden
	walkOpts.FollowSymlinks = !cfg.NoFollowSymlinks

	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.New()
	}

	output.Verbose(fmt.Sprintf("Roots: %s", strings.Join(cfg.Roots, ", ")))
	output.Verbose(fmt.Sprintf("Search path: %s", strings.Join(cfg.Include, ", ")))
	output.Verbose(fmt.Sprintf("Parser: %s, format: %s", cfg.Parser, outFormat))

	analyzerOpts := []analyzer.Option{
		analyzer.WithLogger(log),
		analyzer.WithWorkers(cfg.Jobs),
		analyzer.WithExtractor(extractor),
		analyzer.WithWalkOptions(walkOpts),
		analyzer.WithMetrics(rec),
	}

	var (
		spin  *progress.Spinner
		files int
	)
	if showSpinner(stderr, level) {
		spin = progress.Start(stderr, "Scanning")
		analyzerOpts = append(analyzerOpts, analyzer.WithProgress(func(p analyzer.Progress) {
			files = p.Files
			spin.Update(p.Files, p.Path)
		}))
	}

	g, err := analyzer.NewAnalyzer(analyzerOpts...).BuildGraph(ctx, cfg.Roots, cfg.Include)
	if spin != nil {
		spin.Stop(files, err)
	}
	if err != nil {
		return err
	}

	data, err := format.Serialize(g, outFormat)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return reportDryRun(ctx, stderr, cfg, g, data)
	}

	if cfg.Out == "" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return fmt.Errorf("writing graph: %w", err)
		}
	} else {
		ops := []fileop.Operation{&fileop.WriteFileOp{Path: cfg.Out, Content: data, Mode: 0644}}
		if err := fileop.Execute(ctx, ops, fileop.ExecuteOptions{Force: cfg.Force}); err != nil {
			return err
		}
		output.Success(fmt.Sprintf("Wrote %d nodes and %d edges to %s", g.NodeCount(), g.EdgeCount(), cfg.Out))
	}

	return rec.WriteTextfile(cfg.MetricsFile)
}

// reportDryRun describes the writes a real run would perform.
func reportDryRun(ctx context.Context, w io.Writer, cfg *config.Config, g *graph.Graph, data []byte) error {
	unresolved := 0
	for _, n := range g.Nodes() {
		if !n.Resolved {
			unresolved++
		}
	}
	output.Info(fmt.Sprintf("Dry run: %d nodes (%d unresolved), %d edges", g.NodeCount(), unresolved, g.EdgeCount()))

	if cfg.Out == "" {
		output.Step(fmt.Sprintf("stdout: %d bytes of %s", len(data), cfg.Format))
	} else {
		ops := []fileop.Operation{&fileop.WriteFileOp{Path: cfg.Out, Content: data, Mode: 0644}}
		if err := fileop.Execute(ctx, ops, fileop.ExecuteOptions{DryRun: true, Force: cfg.Force, Writer: w}); err != nil {
			return err
		}
	}
	if cfg.MetricsFile != "" {
		output.Step("metrics: " + cfg.MetricsFile)
	}
	return nil
}

// showSpinner reports whether w is an interactive terminal that is not
// already busy with log lines.
func showSpinner(w io.Writer, level logger.Level) bool {
	if level < logger.LevelWarn {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
