package watcher

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/podping"
)

// HTTPHandler exposes REST endpoints for the watcher service.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	maxBodyBytes int64
	router       chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, logger *zap.Logger, maxBodyBytes int64) *HTTPHandler {
	h := &HTTPHandler{
		service:      service,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/accounts", h.handleAccounts)
		r.Post("/decode", h.handleDecode)
		r.Post("/decode/payload", h.handleDecodePayload)
	})

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleAccounts(w http.ResponseWriter, r *http.Request) {
	snap := h.service.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": snap.Names(),
		"count":    snap.Len(),
	})
}

// handleDecode runs a full operation record through both gates and the
// payload decoder. Nothing is published.
func (h *HTTPHandler) handleDecode(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	msg, err := podping.ParseOperation(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid operation record")
		return
	}

	ev, rej := h.service.Classify(msg)
	writeDecoded(w, ev, rej)
}

func (h *HTTPHandler) handleDecodePayload(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	ev, rej := h.service.ClassifyPayload(string(body))
	writeDecoded(w, ev, rej)
}

func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.ContentLength > h.maxBodyBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return nil, false
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		} else {
			writeError(w, http.StatusBadRequest, "unreadable body")
		}
		return nil, false
	}
	return body, true
}

func writeDecoded(w http.ResponseWriter, ev podping.PodpingEvent, rej podping.Rejection) {
	if rej != podping.Accepted {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":  "rejected",
			"reason": string(rej),
		})
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
