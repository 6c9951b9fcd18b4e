package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/config"
	"github.com/synnaxlabs/synnax-sub025/pkg/logutil"
	"github.com/synnaxlabs/synnax-sub025/pkg/server"
)

var logger = logutil.GetLogger("[aether] ")

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve worker sessions over websockets",
		Long: `Serve starts a worker session for every websocket connection to /sync, and
serves the state of the sessions under /sessions and metrics under /metrics.

Tracker thresholds are reloaded when the configuration file changes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			return a.serve(cmd)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "address to listen on (overrides server.addr)")
	return cmd
}

func (a *app) serve(cmd *cobra.Command) error {
	st, closer, err := a.openStore()
	if err != nil {
		return err
	}
	defer closer.Close()

	wcfg := a.cfg.WorkerConfig()
	wcfg.Instrumentation = a.instrumentation("worker")
	srv := server.New(server.Config{
		Registry: aether.Default,
		Worker:   wcfg,
		Store:    st,
	})
	defer srv.Close()

	if a.configPath != "" {
		stop, err := config.Watch(a.configPath, func(cfg *config.Config) {
			logger.Printf("reloaded tracker thresholds %v, %v", cfg.Tracker.Lower, cfg.Tracker.Upper)
			srv.SetThresholds(cfg.Tracker.Lower, cfg.Tracker.Upper)
		})
		if err != nil {
			return err
		}
		defer stop()
	}

	httpServer := &http.Server{Addr: a.cfg.Server.Addr, Handler: srv.Handler()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	fmt.Fprintf(cmd.OutOrStdout(), "listening on %s\n", a.cfg.Server.Addr)

	sigCh := notifySignals()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		logger.Println("signal caught:", sig)
	}
	return shutdown(httpServer)
}

func shutdown(s *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown:", err)
		return s.Close()
	}
	return nil
}
