package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hive-corporation/iocagg/internal/adapter/exporter"
	"github.com/hive-corporation/iocagg/internal/core/ports"
	"github.com/hive-corporation/iocagg/internal/core/service"
)

type RestHandler struct {
	agg      *service.Aggregator
	defaults QueryDefaults
	timeout  time.Duration
	logger   *zap.Logger
}

func NewRestHandler(agg *service.Aggregator, defaults QueryDefaults, timeout time.Duration, logger *zap.Logger) *RestHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestHandler{
		agg:      agg,
		defaults: defaults,
		timeout:  timeout,
		logger:   logger,
	}
}

// Health check endpoint
func (h *RestHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "iocagg-api",
		"sources":   h.agg.Keys(),
	}
	h.writeJSON(w, http.StatusOK, response)
}

// ListIOCs runs one aggregation and returns the result in the requested format.
func (h *RestHandler) ListIOCs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query, err := queryParams{
		Sources:  q.Get("sources"),
		Type:     q.Get("type"),
		Country:  q.Get("country"),
		MinScore: q.Get("min_score"),
		Limit:    q.Get("limit"),
	}.toQuery(h.defaults)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	format := q.Get("format")
	if format == "" {
		format = "json"
	}

	// json gets the envelope with per-source status; other formats are raw exports
	var exp ports.Exporter
	if format != "json" {
		exp, err = exporter.ForFormat(format)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := h.agg.Run(ctx, query)

	if exp == nil {
		h.writeJSON(w, http.StatusOK, newResultResponse(result))
		return
	}

	var buf bytes.Buffer
	if err := exp.Export(&buf, result.IOCs); err != nil {
		h.logger.Error("failed to export results", zap.String("format", format), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to export results")
		return
	}

	w.Header().Set("Content-Type", contentType(format))
	w.Header().Set("X-Run-ID", result.RunID.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("error writing feed response", zap.Error(err))
	}
}

func contentType(format string) string {
	switch format {
	case "csv":
		return "text/csv; charset=utf-8"
	case "cef":
		return "text/plain; charset=utf-8"
	default:
		return "application/json; charset=utf-8"
	}
}

type sourceStatus struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
	Error  string `json:"error,omitempty"`
}

type resultResponse struct {
	RunID   string            `json:"run_id"`
	Count   int               `json:"count"`
	Sources []sourceStatus    `json:"sources"`
	IOCs    []exporter.Record `json:"iocs"`
}

func newResultResponse(result service.Result) resultResponse {
	sources := make([]sourceStatus, 0, len(result.Outcomes))
	for _, o := range result.Outcomes {
		s := sourceStatus{Source: o.Source, Count: o.Count}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		sources = append(sources, s)
	}
	return resultResponse{
		RunID:   result.RunID.String(),
		Count:   len(result.IOCs),
		Sources: sources,
		IOCs:    exporter.ToRecords(result.IOCs),
	}
}

// Helper functions

func (h *RestHandler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("error encoding JSON response", zap.Error(err))
	}
}

func (h *RestHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
