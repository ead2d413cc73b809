package ingest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"alertflow/internal/domain"
)

// Lifecycle is the engine surface consumed by inbound interfaces.
// Params: lifecycle operations from the alert engine.
// Returns: narrow dependency for HTTP/NATS ingest.
type Lifecycle interface {
	CreateAlert(ctx context.Context, input domain.AlertInput) (*domain.Alert, error)
	Acknowledge(ctx context.Context, id, by string) bool
	Resolve(ctx context.Context, id, by, resolution string) bool
	ActiveAlerts(filter domain.Filter) []domain.Alert
	Statistics() domain.Statistics
	CreateAlertsFromReport(ctx context.Context, report domain.QualityReport) ([]domain.Alert, error)
}

// HTTPHandler exposes the lifecycle API over JSON endpoints.
// Params: engine surface and max request body size.
// Returns: handler set registered by the service wiring.
type HTTPHandler struct {
	api         Lifecycle
	maxBodySize int64
}

// NewHTTPHandler creates lifecycle HTTP handler.
// Params: engine surface and max request body size in bytes.
// Returns: configured handler.
func NewHTTPHandler(api Lifecycle, maxBodySize int64) *HTTPHandler {
	return &HTTPHandler{api: api, maxBodySize: maxBodySize}
}

// ackRequest is acknowledge endpoint payload.
// Params: alert id and acknowledging actor.
// Returns: decoded acknowledge call.
type ackRequest struct {
	ID string `json:"id"`
	By string `json:"by"`
}

// resolveRequest is resolve endpoint payload.
// Params: alert id, resolving actor, and optional resolution note.
// Returns: decoded resolve call.
type resolveRequest struct {
	ID         string `json:"id"`
	By         string `json:"by"`
	Resolution string `json:"resolution,omitempty"`
}

// HandleCreate serves one alert create request.
// Params: HTTP request/response writer pair.
// Returns: 201 with the alert, 204 when throttled, 400 on bad payload.
func (h *HTTPHandler) HandleCreate(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	var input domain.AlertInput
	if err := json.Unmarshal(body, &input); err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	alert, err := h.api.CreateAlert(request.Context(), input)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if alert == nil {
		writer.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(writer, http.StatusCreated, alert)
}

// HandleAcknowledge serves one acknowledge request.
// Params: HTTP request/response writer pair.
// Returns: 200 on success, 404 when the alert is not active.
func (h *HTTPHandler) HandleAcknowledge(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	var payload ackRequest
	if err := json.Unmarshal(body, &payload); err != nil || strings.TrimSpace(payload.ID) == "" {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if !h.api.Acknowledge(request.Context(), payload.ID, payload.By) {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

// HandleResolve serves one resolve request.
// Params: HTTP request/response writer pair.
// Returns: 200 on success, 404 when the alert is not active.
func (h *HTTPHandler) HandleResolve(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	var payload resolveRequest
	if err := json.Unmarshal(body, &payload); err != nil || strings.TrimSpace(payload.ID) == "" {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if !h.api.Resolve(request.Context(), payload.ID, payload.By, payload.Resolution) {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	writer.WriteHeader(http.StatusOK)
}

// HandleList serves the active-alert query.
// Params: HTTP request/response writer pair; level/component/unacked query params.
// Returns: 200 with the filtered, severity-sorted array.
func (h *HTTPHandler) HandleList(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var filter domain.Filter
	if raw := request.URL.Query().Get("level"); raw != "" {
		level, ok := domain.ParseLevel(raw)
		if !ok {
			writer.WriteHeader(http.StatusBadRequest)
			return
		}
		filter.Level = level
	}
	filter.Component = strings.TrimSpace(request.URL.Query().Get("component"))
	filter.Unacknowledged = request.URL.Query().Get("unacked") == "true"

	writeJSON(writer, http.StatusOK, h.api.ActiveAlerts(filter))
}

// HandleStatistics serves the statistics snapshot.
// Params: HTTP request/response writer pair.
// Returns: 200 with folded counters.
func (h *HTTPHandler) HandleStatistics(writer http.ResponseWriter, request *http.Request) {
	if request.Method != http.MethodGet {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(writer, http.StatusOK, h.api.Statistics())
}

// HandleReport serves one bulk report ingestion request.
// Params: HTTP request/response writer pair.
// Returns: 201 with the created alert array, 400 on bad payload.
func (h *HTTPHandler) HandleReport(writer http.ResponseWriter, request *http.Request) {
	body, ok := h.readBody(writer, request)
	if !ok {
		return
	}
	report, err := domain.DecodeReport(body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}

	created, err := h.api.CreateAlertsFromReport(request.Context(), report)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	writeJSON(writer, http.StatusCreated, created)
}

// readBody enforces POST method and body size cap.
// Params: HTTP request/response writer pair.
// Returns: request body and false when the response was already written.
func (h *HTTPHandler) readBody(writer http.ResponseWriter, request *http.Request) ([]byte, bool) {
	if request.Method != http.MethodPost {
		writer.WriteHeader(http.StatusMethodNotAllowed)
		return nil, false
	}
	request.Body = http.MaxBytesReader(writer, request.Body, h.maxBodySize)
	defer request.Body.Close()
	body, err := io.ReadAll(request.Body)
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return nil, false
	}
	return body, true
}

// writeJSON writes one JSON response with status code.
// Params: writer, status code, and payload value.
// Returns: response written; encode failures abandon the connection.
func writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	_ = json.NewEncoder(writer).Encode(payload)
}
