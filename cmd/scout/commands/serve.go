package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/54b3r/scout-go/internal/config"
	"github.com/54b3r/scout-go/internal/engine"
	"github.com/54b3r/scout-go/internal/logging"
	"github.com/54b3r/scout-go/internal/rag"
	"github.com/54b3r/scout-go/internal/server"
	"github.com/54b3r/scout-go/internal/tracing"
)

// NewServeCmd constructs the `scout serve` command, which starts the HTTP
// API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the scout HTTP API",
		Long: `Start the scout HTTP API.

Endpoints:
  POST /api/ingest     run an ingestion job (one at a time)
  POST /api/retrieve   retrieve passages for a query
  POST /api/answer     answer a question
  GET  /api/files      list the files indexed in the corpus
  GET  /api/status     corpus and tracking state
  GET  /api/health     liveness
  GET  /api/ready      readiness of the bucket and the corpus service
  GET  /metrics        Prometheus metrics

Set SCOUT_API_KEY to require a bearer token on /api/* routes.

Examples:
  scout serve
  scout serve --port 9090
  CORPUS_BACKEND=qdrant scout serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := slog.Default()
			ctx = logging.WithLogger(ctx, log)

			// Langfuse tracing is opt-in and a no-op when keys are absent.
			tcfg := tracing.ConfigFromEnv()
			if _, flush := tracing.Setup(tcfg); tcfg.Enabled() {
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)

			cmd.SetContext(ctx)
			eng, s, err := openEngine(cmd, reg)
			if err != nil {
				return err
			}
			defer closeEngine(eng)

			srv, err := server.New(eng, &server.Config{
				Host:            envOr("SCOUT_HOST", host),
				Port:            envIntOr("SCOUT_PORT", port),
				Logger:          log,
				Pingers:         buildPingers(eng, s),
				APIKey:          os.Getenv("SCOUT_API_KEY"),
				MetricsRegistry: reg,
				MetricsGatherer: reg,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: SCOUT_HOST or 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: SCOUT_PORT or 8080)")

	return cmd
}

// buildPingers returns the readiness probes for the configured backends.
func buildPingers(eng *engine.Built, s config.Settings) []server.Pinger {
	pingers := []server.Pinger{server.NewObjectStorePinger(eng.Objects(), s.CloudTrackingPath)}
	if q, ok := eng.Service.(*rag.QdrantCorpusService); ok {
		return append(pingers, server.NewQdrantPinger(q.Client()))
	}
	return append(pingers, server.NewCorpusPinger(eng.Service, "vertex-rag"))
}

// envOr returns flag when set, else the environment value for key. Empty
// results are filled in by server defaults.
func envOr(key, flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(key)
}

func envIntOr(key string, flag int) int {
	if flag != 0 {
		return flag
	}
	n, _ := strconv.Atoi(os.Getenv(key))
	return n
}
