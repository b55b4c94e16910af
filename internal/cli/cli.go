// Package cli implements the hrmerge subcommands.
package cli

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/briangreenhill/hrmerge/internal/activity"
	"github.com/briangreenhill/hrmerge/internal/config"
	"github.com/briangreenhill/hrmerge/internal/format"
	"github.com/briangreenhill/hrmerge/internal/fusion"
	"github.com/briangreenhill/hrmerge/internal/store"
)

var ErrUsage = errors.New("invalid usage")

type CLI struct {
	writer       io.Writer
	logger       *slog.Logger
	cfg          config.Config
	mergeService *store.Service
}

func NewCLI(w io.Writer, logger *slog.Logger, cfg config.Config, mergeService *store.Service) *CLI {
	return &CLI{
		writer:       w,
		logger:       logger,
		cfg:          cfg,
		mergeService: mergeService,
	}
}

func (c *CLI) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		c.Usage()
		return nil
	}

	switch args[0] {
	case "merge":
		return c.Merge(ctx, args[1:])
	case "shift":
		return c.Shift(args[1:])
	case "convert":
		return c.Convert(args[1:])
	case "info":
		return c.Info(args[1:])
	case "history":
		return c.History(ctx)
	case "api":
		return c.RunAPI(ctx)
	case "help", "-h", "--help":
		c.Usage()
		return nil
	default:
		c.Usage()
		return fmt.Errorf("%w: unknown command %q", ErrUsage, args[0])
	}
}

func (c *CLI) Usage() {
	fmt.Fprintf(c.writer, "Usage: hrmerge [command] [flags]\n--help show this message\n\n"+
		"\tmerge --primary FILE --secondary FILE --out FILE\n"+
		"\tshift --in FILE --time OFFSET [--out FILE]\n"+
		"\tconvert --in FILE --out FILE\n"+
		"\tinfo --in FILE\n"+
		"\thistory\n"+
		"\tapi\n\n"+
		"readable formats: %s\nwritable formats: %s\n",
		strings.Join(format.Readable(), ", "), strings.Join(format.Writable(), ", "))
}

func (c *CLI) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("hrmerge "+name, flag.ContinueOnError)
	fs.SetOutput(c.writer)
	fs.Usage = c.Usage
	return fs
}

// parseError treats -h as a successful request for usage.
func parseError(err error) error {
	if errors.Is(err, flag.ErrHelp) {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrUsage, err)
}

func required(fs *flag.FlagSet, names ...string) error {
	var missing []string
	for _, name := range names {
		if f := fs.Lookup(name); f != nil && f.Value.String() == "" {
			missing = append(missing, "--"+name)
		}
	}
	if len(missing) > 0 {
		fs.Usage()
		return fmt.Errorf("%w: %s requires %s", ErrUsage, fs.Name(), strings.Join(missing, ", "))
	}
	return nil
}

// Merge copies heart rate from the secondary recording into the primary one
// and writes the result.
func (c *CLI) Merge(ctx context.Context, args []string) error {
	fs := c.flagSet("merge")
	var primaryPath, secondaryPath, outPath string
	fs.StringVar(&primaryPath, "primary", "", "recording with position, altitude and distance")
	fs.StringVar(&secondaryPath, "secondary", "", "recording with heart rate")
	fs.StringVar(&outPath, "out", "", "output file; the extension selects the format")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if err := required(fs, "primary", "secondary", "out"); err != nil {
		return err
	}

	dumper, err := format.DumperFor(outPath)
	if err != nil {
		return err
	}

	primary, err := format.ParseFile(primaryPath)
	if err != nil {
		return fmt.Errorf("primary recording: %w", err)
	}
	secondary, err := format.ParseFile(secondaryPath)
	if err != nil {
		return fmt.Errorf("secondary recording: %w", err)
	}

	res, err := fusion.Merge(primary, secondary)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := dumper.Dump(&buf, primary); err != nil {
		return fmt.Errorf("dump %s: %w", outPath, err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return err
	}

	c.logger.Info("Merged recordings",
		slog.String("primary", primaryPath),
		slog.String("secondary", secondaryPath),
		slog.String("out", outPath),
		slog.Int("samples", res.Samples),
		slog.Int("updated", res.Updated),
		slog.Int("unknown", res.Unknown),
	)

	if c.mergeService != nil {
		m := &store.Merge{
			PrimaryPath:   primaryPath,
			SecondaryPath: secondaryPath,
			OutputPath:    outPath,
			Format:        format.Key(outPath),
			Output:        buf.Bytes(),
			Trackpoints:   res.Visited,
			Updated:       res.Updated,
			Unknown:       res.Unknown,
			StartedAt:     res.Start,
			CompletedAt:   res.End,
			Splits:        activity.Splits(primary, float64(c.cfg.SplitMeters)),
		}
		if err := c.mergeService.Add(ctx, m); err != nil {
			return fmt.Errorf("record merge: %w", err)
		}
		c.logger.Debug("Recorded merge", slog.String("id", m.ID))
	}

	fmt.Fprintf(c.writer, "Merged %d trackpoints into %s (%d with heart rate, %d unknown)\n",
		res.Visited, outPath, res.Updated, res.Unknown)
	return nil
}

// Shift moves every timestamp of a recording by a fixed offset.
func (c *CLI) Shift(args []string) error {
	fs := c.flagSet("shift")
	var inPath, outPath, offset string
	fs.StringVar(&inPath, "in", "", "recording to shift")
	fs.StringVar(&offset, "time", "", "offset such as +1hour, -30m or -1h30m")
	fs.StringVar(&outPath, "out", "", "output file (defaults to --in)")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if err := required(fs, "in", "time"); err != nil {
		return err
	}
	if outPath == "" {
		outPath = inPath
	}

	d, err := activity.ParseOffset(offset)
	if err != nil {
		return err
	}
	a, err := format.ParseFile(inPath)
	if err != nil {
		return err
	}
	activity.Shift(a, d)
	if err := format.DumpFile(outPath, a); err != nil {
		return err
	}

	c.logger.Info("Shifted recording", slog.String("in", inPath), slog.String("out", outPath), slog.Duration("offset", d))
	fmt.Fprintf(c.writer, "Shifted %s by %s into %s\n", inPath, d, outPath)
	return nil
}

// Convert rewrites a recording in another format.
func (c *CLI) Convert(args []string) error {
	fs := c.flagSet("convert")
	var inPath, outPath string
	fs.StringVar(&inPath, "in", "", "recording to convert")
	fs.StringVar(&outPath, "out", "", "output file; the extension selects the format")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if err := required(fs, "in", "out"); err != nil {
		return err
	}

	if _, err := format.DumperFor(outPath); err != nil {
		return err
	}
	a, err := format.ParseFile(inPath)
	if err != nil {
		return err
	}
	if err := format.DumpFile(outPath, a); err != nil {
		return err
	}

	fmt.Fprintf(c.writer, "Converted %s into %s\n", inPath, outPath)
	return nil
}

// Info prints a summary of a recording.
func (c *CLI) Info(args []string) error {
	fs := c.flagSet("info")
	var inPath string
	fs.StringVar(&inPath, "in", "", "recording to describe")
	if err := fs.Parse(args); err != nil {
		return parseError(err)
	}
	if err := required(fs, "in"); err != nil {
		return err
	}

	a, err := format.ParseFile(inPath)
	if err != nil {
		return err
	}
	started, err := a.StartedAt()
	if err != nil {
		return err
	}
	completed, err := a.CompletedAt()
	if err != nil {
		return err
	}

	fmt.Fprintln(c.writer, a)
	fmt.Fprintf(c.writer, "started:     %s\n", activity.FormatTimestamp(started))
	fmt.Fprintf(c.writer, "completed:   %s\n", activity.FormatTimestamp(completed))
	fmt.Fprintf(c.writer, "distance:    %.0f m\n", a.Distance())
	fmt.Fprintf(c.writer, "total time:  %.0f s\n", a.TotalTime())
	fmt.Fprintf(c.writer, "calories:    %d\n", a.Calories())
	fmt.Fprintf(c.writer, "trackpoints: %d\n", a.TrackpointCount())
	for _, lap := range a.Laps {
		fmt.Fprintf(c.writer, "  %s\n", lap)
	}

	splits := activity.Splits(a, float64(c.cfg.SplitMeters))
	if len(splits) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(c.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "split\tdistance\ttime\televation\theart rate")
	for i, s := range splits {
		fmt.Fprintf(tw, "%d\t%.0f m\t%s\t%.0f m\t%.0f\n", i+1, s.Distance,
			time.Duration(s.SplitTime*float64(time.Second)).String(), s.Elevation, s.HeartRate)
	}
	return tw.Flush()
}

// History lists the recorded merges.
func (c *CLI) History(ctx context.Context) error {
	if c.mergeService == nil {
		return errors.New("history is not available without a database")
	}
	merges, err := c.mergeService.List(ctx)
	if err != nil {
		return err
	}
	if len(merges) == 0 {
		fmt.Fprintln(c.writer, "No merges recorded")
		return nil
	}

	tw := tabwriter.NewWriter(c.writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "id\tcreated\tprimary\tsecondary\toutput\tupdated\tunknown")
	for _, m := range merges {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n", m.ID, m.Created.Format(time.RFC3339),
			m.PrimaryPath, m.SecondaryPath, m.OutputPath, m.Updated, m.Unknown)
	}
	return tw.Flush()
}

func (c *CLI) RunAPI(ctx context.Context) error {
	if c.mergeService == nil {
		return errors.New("api is not available without a database")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	server := &http.Server{
		Addr:              c.cfg.Addr,
		Handler:           NewAPI(c.logger, c.mergeService),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		c.logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			c.logger.Error("Error shutting down server", slog.Any("error", err))
		}
	}()

	c.logger.Info("Starting server", slog.String("addr", c.cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		c.logger.Error("Error starting server", slog.Any("error", err))
		cancel()
		return err
	}

	return nil
}
