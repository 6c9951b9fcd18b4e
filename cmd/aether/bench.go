package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/monitor"
	"github.com/synnaxlabs/synnax-sub025/pkg/perf"
	"github.com/synnaxlabs/synnax-sub025/pkg/pprof"
	"github.com/synnaxlabs/synnax-sub025/pkg/presentation"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/vis"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

type benchOptions struct {
	plots, lines, points int
	duration             time.Duration
	tui                  bool
	profile              pprof.Options
}

func newBenchCmd(a *app) *cobra.Command {
	var opts benchOptions
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Render synthetic plots in process and report quality levels",
		Long: `Bench runs a worker and a presentation client in one process. The client
creates plots with lines and replaces the line data on every frame; the worker
renders them onto in-memory canvases. At the end the tracker entries are
printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			defer opts.profile.Start(cmd.ErrOrStderr())()
			entries, err := a.bench(cmd.Context(), opts)
			if err != nil {
				return err
			}
			printEntries(cmd.OutOrStdout(), entries)
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.plots, "plots", 4, "number of plots")
	cmd.Flags().IntVar(&opts.lines, "lines", 4, "number of lines per plot")
	cmd.Flags().IntVar(&opts.points, "points", 2000, "number of points per line")
	cmd.Flags().DurationVar(&opts.duration, "duration", 5*time.Second, "how long to run")
	cmd.Flags().BoolVar(&opts.tui, "tui", false, "show the levels live while running")
	opts.profile.RegisterFlags(cmd.Flags())
	return cmd
}

func (a *app) bench(ctx context.Context, opts benchOptions) ([]perf.Entry, error) {
	const width, height = 800, 600
	pres, work := comms.Pipe()
	canvases := make([]render.Canvas, len(render.Variants))
	for i, v := range render.Variants {
		canvases[i] = render.NewRaster(v, width, height)
	}
	cfg := a.cfg.WorkerConfig()
	cfg.Session = "bench"
	cfg.Conn = work
	cfg.Registry = aether.Default
	cfg.Canvases = canvases
	cfg.Instrumentation = a.instrumentation("worker")
	w, err := worker.New(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, opts.duration)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	client := presentation.New(presentation.Config{Conn: pres})
	defer client.Close()
	if err := createPlots(ctx, client, opts, width, height); err != nil {
		return nil, err
	}

	if opts.tui {
		go func() {
			monitor.Run(monitor.TrackerSource{Tracker: w.Tracker()}, "bench", 250*time.Millisecond)
			cancel()
		}()
	}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.FrameRate))
	defer ticker.Stop()
	for frame := 0; ; frame++ {
		select {
		case <-ticker.C:
			if err := updateLines(ctx, client, opts, frame); err != nil && ctx.Err() == nil {
				return nil, err
			}
		case <-ctx.Done():
			<-done
			return w.Tracker().Entries(), nil
		}
	}
}

// Lays the plots out in a grid.
func createPlots(ctx context.Context, c *presentation.Client, opts benchOptions, width, height float64) error {
	cols := int(math.Ceil(math.Sqrt(float64(opts.plots))))
	rows := (opts.plots + cols - 1) / max(cols, 1)
	cw, ch := width/float64(max(cols, 1)), height/float64(max(rows, 1))
	for i := 0; i < opts.plots; i++ {
		p := aether.Path{"plot" + strconv.Itoa(i)}
		err := c.SetState(ctx, p, vis.TypePlot, map[string]any{
			"x": float64(i%cols) * cw, "y": float64(i/cols) * ch, "w": cw - 1, "h": ch - 1,
		})
		if err != nil {
			return err
		}
		for j := 0; j < opts.lines; j++ {
			if err := c.SetState(ctx, p.Append("line"+strconv.Itoa(j)), vis.TypeLine, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func updateLines(ctx context.Context, c *presentation.Client, opts benchOptions, frame int) error {
	xs := make([]float64, opts.points)
	for k := range xs {
		xs[k] = float64(k)
	}
	for i := 0; i < opts.plots; i++ {
		for j := 0; j < opts.lines; j++ {
			ys := make([]float64, opts.points)
			phase := float64(frame)/10 + float64(j)
			for k := range ys {
				ys[k] = math.Sin(float64(k)/50 + phase)
			}
			p := aether.Path{"plot" + strconv.Itoa(i), "line" + strconv.Itoa(j)}
			if err := c.SetState(ctx, p, "", map[string]any{"xs": xs, "ys": ys}); err != nil {
				return err
			}
		}
	}
	return nil
}

var (
	levelOK   = color.New(color.FgGreen)
	levelHigh = color.New(color.FgYellow)
)

func printEntries(w io.Writer, entries []perf.Entry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, headerColor.Sprint("KEY")+"\t"+headerColor.Sprint("LEVEL")+"\t"+headerColor.Sprint("TARGET"))
	for _, e := range entries {
		level := levelOK
		if e.Level > 0 {
			level = levelHigh
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\n", e.Key, level.Sprint(e.Level), e.Target)
	}
	tw.Flush()
}
