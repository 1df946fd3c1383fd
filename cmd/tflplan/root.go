package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/tflplan"
	"github.com/hupe1980/tflplan/blobstore"
	"github.com/hupe1980/tflplan/config"
)

type cli struct {
	stdout io.Writer
	stderr io.Writer

	logLevel  string
	logFormat string

	configPath  string
	arenas      int
	alignment   int64
	capacities  []string
	affinities  []string
	sizes       []string
	subgraphs   []int
	parallelism int

	// started is set once a command body runs; errors before that are usage
	// errors reported by cobra.
	started bool

	open func(ctx context.Context, loc string) (*target, error)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{stdout: stdout, stderr: stderr, open: openTarget}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return tflplan.ExitOK
	}
	fmt.Fprintf(stderr, "tflplan: %v\n", err)
	if !c.started {
		fmt.Fprintln(stderr, "Run 'tflplan --help' for usage.")
		return tflplan.ExitUsage
	}
	return exitCode(err)
}

// exitCode extends tflplan.ExitCode with storage errors caused by the input
// itself.
func exitCode(err error) int {
	if errors.Is(err, blobstore.ErrCorrupt) {
		return tflplan.ExitBadInput
	}
	return tflplan.ExitCode(err)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "tflplan",
		Short:         "Plan tensor arena memory for TFLite models",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	pf.StringVar(&c.logFormat, "log-format", "text", "log format (text, json)")
	pf.StringVar(&c.configPath, "config", "", "YAML file with planning parameters")
	pf.IntVar(&c.arenas, "arenas", 1, "number of arenas")
	pf.Int64Var(&c.alignment, "alignment", tflplan.DefaultAlignment, "offset alignment in bytes")
	pf.StringArrayVar(&c.capacities, "capacity", nil, "arena capacity as ARENA=BYTES (repeatable)")
	pf.StringArrayVar(&c.affinities, "affinity", nil, "allowed arenas as SUBGRAPH:TENSOR=A1,A2 (repeatable)")
	pf.StringArrayVar(&c.sizes, "size", nil, "tensor size override as SUBGRAPH:TENSOR=BYTES (repeatable)")
	pf.IntSliceVar(&c.subgraphs, "subgraph", nil, "subgraph indices to process (default all)")
	pf.IntVar(&c.parallelism, "parallelism", 0, "subgraphs planned concurrently (default GOMAXPROCS)")

	root.AddCommand(c.planCmd(), c.verifyCmd())
	return root
}

func (c *cli) planCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "plan INPUT -o OUTPUT",
		Short: "Plan every subgraph and write the model with embedded plans",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.started = true
			return c.plan(cmd, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output location")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify INPUT",
		Short: "Check the plans embedded in a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.started = true
			return c.verify(cmd, args[0])
		},
	}
}

func (c *cli) plan(cmd *cobra.Command, input, output string) error {
	ctx := cmd.Context()
	p, err := c.planner(cmd)
	if err != nil {
		return err
	}

	data, err := c.read(ctx, input)
	if err != nil {
		return err
	}
	res, err := p.Plan(ctx, data)
	if err != nil {
		return err
	}

	dst, err := c.open(ctx, output)
	if err != nil {
		return err
	}
	if err := dst.store.Put(ctx, dst.name, res.Output); err != nil {
		return fmt.Errorf("write %s: %w", output, err)
	}

	for _, sr := range res.Subgraphs {
		total := sr.Plan.Total()
		fmt.Fprintf(c.stdout, "subgraph %d: %d tensors, arenas %v, %d bytes (naive %d, saved %d)\n",
			sr.Index, len(sr.Plan.Records), sr.Plan.Sizes, total, sr.NaiveBytes, sr.NaiveBytes-total)
	}
	return nil
}

func (c *cli) verify(cmd *cobra.Command, input string) error {
	ctx := cmd.Context()
	p, err := c.planner(cmd)
	if err != nil {
		return err
	}

	data, err := c.read(ctx, input)
	if err != nil {
		return err
	}
	results, err := p.Verify(ctx, data)
	if err != nil {
		return err
	}
	for _, sr := range results {
		fmt.Fprintf(c.stdout, "subgraph %d: ok, %d tensors, %d bytes\n",
			sr.Index, len(sr.Plan.Records), sr.Plan.Total())
	}
	return nil
}

func (c *cli) read(ctx context.Context, loc string) ([]byte, error) {
	src, err := c.open(ctx, loc)
	if err != nil {
		return nil, err
	}
	data, err := src.read(ctx)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", loc, err)
	}
	return data, nil
}

// planner builds a Planner from the config file and the flags. Flags set on
// the command line take precedence over the file.
func (c *cli) planner(cmd *cobra.Command) (*tflplan.Planner, error) {
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	opts := []tflplan.Option{tflplan.WithLogger(logger)}

	if c.configPath != "" {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			if !errors.Is(err, tflplan.ErrInvalidArgument) {
				err = fmt.Errorf("%w: %w", tflplan.ErrInvalidArgument, err)
			}
			return nil, err
		}
		opts = append(opts, cfg.Options()...)
	}

	flags := cmd.Flags()
	if flags.Changed("arenas") {
		opts = append(opts, tflplan.WithArenaCount(c.arenas))
	}
	if flags.Changed("alignment") {
		opts = append(opts, tflplan.WithAlignment(c.alignment))
	}
	if flags.Changed("parallelism") {
		opts = append(opts, tflplan.WithParallelism(c.parallelism))
	}
	if len(c.subgraphs) > 0 {
		opts = append(opts, tflplan.WithSubgraphs(c.subgraphs...))
	}
	for _, s := range c.capacities {
		arena, limit, err := parseCapacity(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tflplan.WithArenaCapacity(arena, limit))
	}
	for _, s := range c.affinities {
		sg, t, arenas, err := parseAffinity(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tflplan.WithAffinity(sg, t, arenas...))
	}
	for _, s := range c.sizes {
		sg, t, size, err := parseSize(s)
		if err != nil {
			return nil, err
		}
		opts = append(opts, tflplan.WithSizeOverride(sg, t, size))
	}
	return tflplan.New(opts...), nil
}

func (c *cli) logger() (*tflplan.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("%w: --log-level %q", tflplan.ErrInvalidArgument, c.logLevel)
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.logFormat) {
	case "text":
		return tflplan.NewLogger(slog.NewTextHandler(c.stderr, hopts)), nil
	case "json":
		return tflplan.NewLogger(slog.NewJSONHandler(c.stderr, hopts)), nil
	default:
		return nil, fmt.Errorf("%w: --log-format %q", tflplan.ErrInvalidArgument, c.logFormat)
	}
}
