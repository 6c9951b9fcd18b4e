package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/rpcconn"
	"github.com/synnaxlabs/synnax-sub025/pkg/render"
	"github.com/synnaxlabs/synnax-sub025/pkg/worker"
)

func newStdioCmd(a *app) *cobra.Command {
	var (
		width, height int
		dump          string
	)
	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Run one worker session over standard input and output",
		Long: `Stdio runs a worker that reads updates from standard input and writes
updates to standard output, as JSON-RPC notifications with Content-Length
headers. It exits when standard input is closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rasters := make([]*render.Raster, len(render.Variants))
			canvases := make([]render.Canvas, len(render.Variants))
			for i, v := range render.Variants {
				rasters[i] = render.NewRaster(v, width, height)
				canvases[i] = rasters[i]
			}
			if err := a.runStdio(cmd.Context(), canvases); err != nil {
				return err
			}
			if dump != "" {
				return dumpRasters(dump, rasters)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 800, "canvas width")
	cmd.Flags().IntVar(&height, "height", 600, "canvas height")
	cmd.Flags().StringVar(&dump, "dump", "", "directory to write the canvases to as PNG on exit")
	return cmd
}

func (a *app) runStdio(ctx context.Context, canvases []render.Canvas) error {
	st, closer, err := a.openStore()
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	conn := rpcconn.New(ctx, rpcconn.Stdio(os.Stdin, os.Stdout))
	defer conn.Close()

	cfg := a.cfg.WorkerConfig()
	cfg.Session = uuid.NewString()
	cfg.Conn = conn
	cfg.Registry = aether.Default
	cfg.Canvases = canvases
	cfg.Store = st
	cfg.Instrumentation = a.instrumentation("worker")
	w, err := worker.New(cfg)
	if err != nil {
		return err
	}

	sigCh := notifySignals()
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func dumpRasters(dir string, rasters []*render.Raster) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, r := range rasters {
		name := filepath.Join(dir, string(r.Variant())+".png")
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		err = r.WritePNG(f)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
	}
	return nil
}
