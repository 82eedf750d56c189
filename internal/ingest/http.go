package ingest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// WSHandler is the session side's entry point for duplex channels.
// Implemented by session.Handler.
type WSHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request, sessionID string)
}

// HTTPHandler exposes the REST and WebSocket endpoints of the service.
type HTTPHandler struct {
	service        *Service
	sessions       WSHandler
	logger         *zap.Logger
	formMemBytes   int64
	allowedOrigins []string
	router         chi.Router
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(service *Service, sessions WSHandler, logger *zap.Logger, formMemBytes int64, allowedOrigins []string) *HTTPHandler {
	h := &HTTPHandler{
		service:        service,
		sessions:       sessions,
		logger:         logger,
		formMemBytes:   formMemBytes,
		allowedOrigins: allowedOrigins,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(h.allowedOrigins))

	r.Get("/healthz", h.handleHealth)
	r.Get("/", h.handleIndex)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(2 * time.Minute))
		r.Post("/uploadfiles", h.handleUpload)
	})

	// The websocket route stays outside the timeout middleware: an admitted
	// session lives until one side disconnects.
	r.Get("/ws/{session_id}", func(w http.ResponseWriter, r *http.Request) {
		h.sessions.ServeWS(w, r, chi.URLParam(r, "session_id"))
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

const indexHTML = `<!DOCTYPE html>
<html>
<body>
<form action="/uploadfiles" enctype="multipart/form-data" method="post">
<input name="files" type="file" multiple>
<input type="submit">
</form>
</body>
</html>
`

func (h *HTTPHandler) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(indexHTML)) //nolint:errcheck
}

// handleUpload accepts a multipart batch under the repeated "files" field.
// Per-item limits are enforced by the validator, not here, so every item gets
// an individual verdict in the response.
func (h *HTTPHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "files field is required")
		return
	}

	items := make([]SubmittedItem, 0, len(files))
	for _, header := range files {
		var payload io.Reader
		file, err := header.Open()
		if err != nil {
			payload = errReader{err: err}
		} else {
			defer file.Close()
			payload = file
		}
		items = append(items, SubmittedItem{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Payload:     payload,
		})
	}

	result, err := h.service.Ingest(r.Context(), items)
	if err != nil {
		var noneAccepted *NoItemsAcceptedError
		if errors.As(err, &noneAccepted) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":    noneAccepted.Error(),
				"rejected": noneAccepted.Rejected,
			})
			return
		}
		h.logger.Error("ingest failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// errReader defers a multipart open failure into the validator's read step so
// it surfaces as a per-item read_failure instead of a whole-batch error.
type errReader struct {
	err error
}

func (e errReader) Read([]byte) (int, error) {
	return 0, e.err
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
