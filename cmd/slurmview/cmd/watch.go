package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/slurmview/slurmview/pkg/api"
	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/metrics"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/poller"
	"github.com/slurmview/slurmview/pkg/shutdown"
	"github.com/slurmview/slurmview/pkg/store"
	"github.com/slurmview/slurmview/pkg/tracker"
)

var (
	watchInterval time.Duration
	watchListen   string
	watchHistory  string
	watchNoHTTP   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously mirror cluster state",
	Long: `Connects to the cluster and keeps polling it in the background. Every
cycle publishes a full snapshot; job status transitions between cycles are
detected, printed, recorded to the history database and re-published as
events. The current state is served over HTTP (JSON plus Prometheus
metrics) until interrupted.

Example:
  slurmview watch
  slurmview watch --interval 10s --listen :9090
  slurmview watch --no-http --history /tmp/history.db`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "poll interval (default from config, 5s)")
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "HTTP listen address (default from config, :8484)")
	watchCmd.Flags().StringVar(&watchHistory, "history", "", "history database path (default $HOME/.slurmview/history.db)")
	watchCmd.Flags().BoolVar(&watchNoHTTP, "no-http", false, "disable the HTTP status server")
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return err
	}

	interval := watchInterval
	if interval <= 0 {
		interval = viper.GetDuration("poll_interval")
	}
	listen := watchListen
	if listen == "" {
		listen = viper.GetString("listen")
	}

	historyPath := watchHistory
	if historyPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		dir := filepath.Join(home, ".slurmview")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
		historyPath = filepath.Join(dir, "history.db")
	}

	history, err := store.NewSQLiteStore(historyPath)
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}

	sd := shutdown.New(15*time.Second, e.log)
	sd.Register(shutdown.CloseResource(history, "history store"))

	collector := metrics.New(prometheus.DefaultRegisterer)

	trk := tracker.New(e.bus, history, collector, e.log)
	trk.Start()
	sd.Register(func(ctx context.Context) error {
		trk.Stop()
		return nil
	})

	// Console feed: transitions and errors as they happen.
	e.bus.Subscribe(events.JobStatusChanged, "console", func(ev events.Event) {
		fmt.Printf("[%s] job %v (%v): %v -> %v\n",
			ev.Timestamp.Format("15:04:05"),
			ev.Payload["job_id"], ev.Payload["job_name"],
			ev.Payload["old_status"], ev.Payload["new_status"])
	})
	e.bus.Subscribe(events.ErrorOccurred, "console", func(ev events.Event) {
		fmt.Fprintf(os.Stderr, "[%s] error: %v\n",
			ev.Timestamp.Format("15:04:05"), ev.Payload["error"])
	})

	if err := e.connect(cmd.Context()); err != nil {
		return err
	}
	sd.Register(func(ctx context.Context) error {
		e.session.Disconnect()
		return nil
	})

	// A session lost mid-watch gets re-dialed with the same retry budget
	// as the initial connect. Cancel runs before Disconnect on shutdown,
	// so the supervisor never races a deliberate teardown.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	sd.Register(func(ctx context.Context) error {
		cancelWatch()
		return nil
	})
	superviseReconnect(watchCtx, e.bus, e.connect, e.client.InvalidateCaches, e.log)

	p := poller.New(e.session, e.client, e.bus, e.log, collector, interval)
	p.Start()
	sd.Register(func(ctx context.Context) error {
		p.Stop()
		return nil
	})

	if !watchNoHTTP {
		router := mux.NewRouter()
		handler := api.NewHandler(trk, history, e.bus, e.session, e.log)
		handler.RegisterRoutes(router)

		srv := &http.Server{
			Addr:         listen,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			e.log.Info("status server listening", map[string]interface{}{"addr": listen})
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.log.Error("status server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
		sd.Register(shutdown.StopHTTPServer(srv, "status"))
	}

	fmt.Printf("Watching %s every %s (Ctrl-C to stop)\n", e.session.Config().Host, interval)
	sd.Wait()
	return nil
}

// superviseReconnect re-dials whenever the session drops. At most one
// attempt chain runs at a time; transitions published while it is dialing
// are ignored, and a cancelled ctx stops it for good. After a successful
// re-dial the enumeration caches are invalidated through onReconnect.
func superviseReconnect(ctx context.Context, bus *events.Bus, connect func(context.Context) error, onReconnect func(), log *logging.Logger) {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	var inFlight sync.Mutex
	bus.Subscribe(events.ConnectionStateChanged, "reconnect", func(ev events.Event) {
		state, _ := ev.Payload["new_state"].(models.ConnectionState)
		if state != models.StateDisconnected || ctx.Err() != nil {
			return
		}
		if !inFlight.TryLock() {
			return
		}
		go func() {
			defer inFlight.Unlock()
			log.Warn("session lost, reconnecting")
			if err := connect(ctx); err != nil {
				log.Error("reconnect failed", map[string]interface{}{"error": err.Error()})
				return
			}
			if onReconnect != nil {
				onReconnect()
			}
			log.Info("reconnected")
		}()
	})
}
