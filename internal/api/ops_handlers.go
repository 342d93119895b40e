package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/technosupport/ts-nms/internal/data"
)

// Handler is the thin ops surface of eventd: liveness, metrics and an
// open-alarm lookup for operator debugging. Event submission stays on the
// queue; there is no REST write path.
type Handler struct {
	DB      *sql.DB
	Alarms  data.AlarmModel
	Metrics http.Handler
	Log     *zap.Logger
}

func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", h.Healthz)
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}
	r.Get("/api/v1/alarms/open", h.OpenAlarm)
	return r
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.PingContext(r.Context()); err != nil {
		h.Log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// OpenAlarm resolves a reduction key to its live alarm id.
func (h *Handler) OpenAlarm(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing key parameter"})
		return
	}

	alarmID, err := h.Alarms.FindOpen(r.Context(), key)
	if errors.Is(err, data.ErrAlarmNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open alarm for key"})
		return
	}
	if err != nil {
		h.Log.Error("open alarm lookup failed", zap.String("key", key), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"reduction_key": key,
		"alarm_id":      alarmID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
