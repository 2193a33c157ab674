package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/transitmatters/gobble/foundation/servicedate"
)

// statusHandler reports the daemon's liveness and current service date.
type statusHandler struct {
	log     *log.Logger
	clock   *servicedate.Clock
	started time.Time
}

// statusResponse is the /status payload.
type statusResponse struct {
	Status        string `json:"status"`
	ServiceDate   string `json:"service_date"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ServeHTTP implements statusHandler's http.Handler interface
func (h *statusHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	response := statusResponse{
		Status:        "OK",
		ServiceDate:   h.clock.Current().String(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	jsonData, err := json.Marshal(response)
	if err != nil {
		h.log.Printf("error marshaling status response: %v", err)
		http.Error(w, "Error serving request", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(jsonData); err != nil {
		h.log.Printf("error writing status response: %v", err)
	}
}

// createOpsServer builds the http.Server exposing /status and /metrics.
func createOpsServer(log *log.Logger, clock *servicedate.Clock, httpPort int) *http.Server {
	r := mux.NewRouter()
	r.Handle("/status", &statusHandler{log: log, clock: clock, started: time.Now()})
	r.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         "0.0.0.0:" + strconv.Itoa(httpPort),
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      r,
	}
}

// RunOpsServer serves the ops endpoints until ctx is done. A port of zero
// disables the server.
func RunOpsServer(ctx context.Context, log *log.Logger, clock *servicedate.Clock, httpPort int) {
	if httpPort == 0 {
		return
	}
	srv := createOpsServer(log, clock, httpPort)
	log.Printf("starting ops server on port %d", httpPort)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ops server ended: %v", err)
		}
	}()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("error shutting down ops server: %v", err)
	}
}
