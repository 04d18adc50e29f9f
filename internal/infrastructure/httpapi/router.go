package httpapi

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"trafficlens/internal/analyzer"
	"trafficlens/internal/infrastructure/config"
	obs "trafficlens/internal/infrastructure/observability"
	"trafficlens/internal/replay"
	"trafficlens/internal/usecase"
)

type Deps struct {
	Cfg      config.Config
	Logger   *zerolog.Logger
	Metrics  *obs.Metrics
	Svc      *usecase.TrafficService
	Analyzer *analyzer.Analyzer
	Replayer *replay.Engine
}

// NewRouter wires the ingest/read API the capture engine and local tooling
// talk to. Replay is the only route with outbound network effects and runs
// on the request goroutine, never on the store's write path.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"name":    "trafficlens",
			"version": "1.0.0",
			"time":    time.Now().UTC(),
		})
	})

	ingest := newIngestHandler(d)
	mux.HandleFunc("/api/stream", ingest.handleStream)

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			ingest.handleAppend(w, r)
		case http.MethodGet:
			handleList(d, w, r)
		case http.MethodDelete:
			handleClear(d, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "", "method not allowed", nil)
		}
	})
	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		handleTransactionSubtree(d, w, r)
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		handleStats(d, w, r)
	})
	mux.HandleFunc("/api/summary", func(w http.ResponseWriter, r *http.Request) {
		handleSessionReport(d, w, r)
	})

	return mux
}
