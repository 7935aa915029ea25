// Package api exposes a small read-only HTTP mirror of the synchronized
// cluster state. It is a bus consumer like any other; all presentation
// beyond JSON stays out of the core.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slurmview/slurmview/pkg/events"
	"github.com/slurmview/slurmview/pkg/logging"
	"github.com/slurmview/slurmview/pkg/models"
	"github.com/slurmview/slurmview/pkg/store"
	"github.com/slurmview/slurmview/pkg/tracker"
)

// StateSource is what the handler reads current state from.
type StateSource interface {
	LatestNodes() []models.NodeRecord
	LatestJobs() []models.JobRecord
	UpdatedAt() time.Time
}

// Handler serves the status API.
type Handler struct {
	state   StateSource
	history store.Store // may be nil
	bus     *events.Bus
	session interface {
		State() models.ConnectionState
	}
	log *logging.Logger
}

// NewHandler creates the status API handler. history may be nil.
func NewHandler(state StateSource, history store.Store, bus *events.Bus, session interface {
	State() models.ConnectionState
}, log *logging.Logger) *Handler {
	if log == nil {
		log = logging.NewLogger(logging.INFO, false)
	}
	return &Handler{
		state:   state,
		history: history,
		bus:     bus,
		session: session,
		log:     log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/api/nodes", h.ListNodes).Methods("GET")
	r.HandleFunc("/api/jobs", h.ListJobs).Methods("GET")
	r.HandleFunc("/api/jobs/{id}", h.GetJob).Methods("GET")
	r.HandleFunc("/api/transitions", h.ListTransitions).Methods("GET")
	r.HandleFunc("/api/events", h.ListEvents).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Health reports connection state and snapshot freshness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":     "ok",
		"connection": h.session.State(),
		"updated_at": h.state.UpdatedAt(),
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListNodes returns the latest node snapshot.
func (h *Handler) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes := h.state.LatestNodes()
	if nodes == nil {
		nodes = []models.NodeRecord{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// ListJobs returns the latest queue snapshot, optionally filtered by user
// or canonical status.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	status := r.URL.Query().Get("status")

	jobs := h.state.LatestJobs()
	out := make([]models.JobRecord, 0, len(jobs))
	for _, j := range jobs {
		if user != "" && j.User != user {
			continue
		}
		if status != "" && string(j.Status) != status {
			continue
		}
		out = append(out, j)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetJob returns one job from the latest snapshot.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	for _, j := range h.state.LatestJobs() {
		if j.ID == id {
			writeJSON(w, http.StatusOK, j)
			return
		}
	}
	http.Error(w, "job not found", http.StatusNotFound)
}

// ListTransitions returns recorded status transitions, newest first.
func (h *Handler) ListTransitions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "history store not configured", http.StatusNotFound)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	transitions, err := h.history.ListTransitions(r.URL.Query().Get("job_id"), limit)
	if err != nil {
		h.log.Error("failed to list transitions", map[string]interface{}{"error": err.Error()})
		http.Error(w, "failed to list transitions", http.StatusInternalServerError)
		return
	}
	if transitions == nil {
		transitions = []store.Transition{}
	}
	writeJSON(w, http.StatusOK, transitions)
}

// ListEvents returns the bus history, optionally filtered by type.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	evs := h.bus.History(events.Type(r.URL.Query().Get("type")), limit)
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are gone at this point; nothing useful left to do.
		return
	}
}

var _ StateSource = (*tracker.Tracker)(nil)
