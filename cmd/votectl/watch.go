package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"voting-token-client/internal/idhash"
	"voting-token-client/internal/log"
	"voting-token-client/internal/observability"
)

// watcher refreshes the mirror on an interval and reports changes.
type watcher struct {
	a        *app
	interval time.Duration

	mu          sync.Mutex
	digest      string
	refreshes   int
	failures    int
	lastRefresh time.Time
	lastError   string
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Digest        string    `json:"digest"`
	MirrorVersion uint64    `json:"mirror_version"`
	Refreshes     int       `json:"refreshes"`
	Failures      int       `json:"failures"`
	LastRefresh   time.Time `json:"last_refresh,omitempty"`
	LastError     string    `json:"last_error,omitempty"`
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Refresh the mirror periodically and serve /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval <= 0 {
				return errors.New("interval must be positive")
			}
			if metricsAddr == "" {
				metricsAddr = c.cfg.Metrics.Addr
			}
			return c.withApp(cmd, func(ctx context.Context, a *app) error {
				w := &watcher{a: a, interval: interval}
				if metricsAddr != "" {
					srv := &http.Server{Addr: metricsAddr, Handler: w.mux()}
					go func() {
						log.L(ctx).Infof("Serving metrics on %s", metricsAddr)
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							log.L(ctx).WithError(err).Error("HTTP server error")
						}
					}()
					defer srv.Close()
				}
				if _, err := a.load(ctx); err != nil {
					return err
				}
				w.observe(ctx, nil)
				return w.run(ctx)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 15*time.Second, "refresh interval")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address for /metrics, /health and /status (default from config)")
	return cmd
}

// run refreshes until ctx is cancelled.
func (w *watcher) run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := w.a.reload(ctx)
			if ctx.Err() != nil {
				return nil
			}
			w.observe(ctx, err)
		}
	}
}

// observe records one refresh and prints a line when the state changed.
func (w *watcher) observe(ctx context.Context, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refreshes++
	w.lastRefresh = time.Now().UTC()
	if err != nil {
		w.failures++
		w.lastError = err.Error()
		log.L(ctx).WithError(err).Warn("Refresh failed, keeping previous mirror")
		return
	}
	w.lastError = ""

	snap := w.a.reader.Store().Snapshot()
	digest, err := idhash.SnapshotDigest(snap)
	if err != nil {
		log.L(ctx).WithError(err).Warn("Digest failed")
		return
	}
	if digest == w.digest {
		return
	}
	w.digest = digest
	fmt.Fprintf(w.a.out, "%s state %s\n", w.lastRefresh.Format(time.RFC3339), digest[:12])
	printSnapshot(w.a.out, snap, w.a.sessions.Session())
	fmt.Fprintln(w.a.out)
}

func (w *watcher) status() StatusResponse {
	w.mu.Lock()
	defer w.mu.Unlock()
	return StatusResponse{
		Digest:        w.digest,
		MirrorVersion: w.a.reader.Store().Version(),
		Refreshes:     w.refreshes,
		Failures:      w.failures,
		LastRefresh:   w.lastRefresh,
		LastError:     w.lastError,
	}
}

func (w *watcher) mux() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	mux.HandleFunc("/status", func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(w.status())
	})
	return mux
}
