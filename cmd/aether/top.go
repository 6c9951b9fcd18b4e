package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/synnaxlabs/synnax-sub025/pkg/monitor"
	"github.com/synnaxlabs/synnax-sub025/pkg/server"
)

func newTopCmd(a *app) *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "top [session]",
		Short: "Show the quality levels of a running session",
		Long: `Top polls a server for the tracker entries of a session and shows them in
a table. Without a session ID, the most recently started session is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = "http://" + a.cfg.Server.Addr
			}
			var session string
			if len(args) > 0 {
				session = args[0]
			} else {
				var err error
				if session, err = latestSession(cmd.Context(), url); err != nil {
					return err
				}
			}
			src := monitor.HTTPSource{BaseURL: url, Session: session}
			return monitor.Run(src, "session "+session, interval)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "base URL of the server (default http://<server.addr>)")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "polling interval")
	return cmd
}

func latestSession(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url+"/sessions", nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("listing sessions: %s", resp.Status)
	}
	var infos []server.SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", errors.New("no running sessions")
	}
	return infos[len(infos)-1].ID, nil
}
