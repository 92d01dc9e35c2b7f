package http

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/armorclaw/pitchscope/pkg/errors"
	"github.com/armorclaw/pitchscope/pkg/logger"
	"github.com/armorclaw/pitchscope/pkg/pitch"
	"github.com/armorclaw/pitchscope/pkg/tone"
)

const maxReportBytes = 64 << 10

var handlersFile = sourceFile()

func handlerComponent(name string) errors.ComponentMeta {
	return errors.ComponentMeta{Name: name, File: handlersFile}
}

// writeJSON encodes v before committing the status so an unencodable value
// becomes a 500 instead of an empty success
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Global().Error("failed to encode response", "error", err)
		status = http.StatusInternalServerError
		data, _ = json.Marshal(map[string]string{"error": "failed to encode response"})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(data, '\n'))
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func (s *Server) handleListErrors(w http.ResponseWriter, r *http.Request) {
	handle, ok := errors.HandleFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
		return
	}

	origin := errors.Origin(r.URL.Query().Get("origin"))
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if r.URL.Query().Get("source") == "store" {
		s.listStoredErrors(w, r, origin, limit)
		return
	}

	records := handle.Errors()
	if origin != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Origin() == origin {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if limit > 0 && limit < len(records) {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []errors.ErrorRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors":      records,
		"count":       len(records),
		"evicted":     s.agg.Evicted(),
		"max_records": s.agg.MaxRecords(),
	})
}

func (s *Server) listStoredErrors(w http.ResponseWriter, r *http.Request, origin errors.Origin, limit int) {
	if s.store == nil {
		writeJSONError(w, http.StatusNotFound, "error store not enabled")
		return
	}

	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.Query(r.Context(), errors.RecordQuery{
		Origin:    origin,
		Limit:     limit,
		Offset:    offset,
		OrderDesc: r.URL.Query().Get("order") == "desc",
	})
	if err != nil {
		s.logger.Error("failed to query error store", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to query error store")
		return
	}
	if records == nil {
		records = []errors.ErrorRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"errors": records,
		"count":  len(records),
		"source": "store",
	})
}

// faultPayload is a fault value as serialized by a browser client
type faultPayload struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

func (p *faultPayload) toError() error {
	if p == nil {
		return nil
	}
	return &errors.NamedError{Name: p.Name, Message: p.Message, Stack: p.Stack}
}

// reportRequest is a fault forwarded by a client's own capture hooks
type reportRequest struct {
	From errors.Origin `json:"from"`

	Message string `json:"message"`
	Source  string `json:"source"`
	Lineno  int    `json:"lineno"`
	Colno   int    `json:"colno"`

	Component string `json:"component"`
	File      string `json:"file"`
	Info      string `json:"info"`

	Error *faultPayload `json:"error"`
}

func (s *Server) handleReportError(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	body := http.MaxBytesReader(w, r.Body, maxReportBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeJSONError(w, http.StatusBadRequest, "invalid report body")
		return
	}

	switch req.From {
	case errors.OriginWindow, "":
		h := s.windowHandler()
		if h == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
			return
		}
		h(req.Message, req.Source, req.Lineno, req.Colno, req.Error.toError())

	case errors.OriginBoundary:
		h := s.boundaryHandler()
		if h == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
			return
		}
		h(req.Error.toError(), errors.ComponentMeta{Name: req.Component, File: req.File}, req.Info)

	default:
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("from must be %q or %q", errors.OriginWindow, errors.OriginBoundary))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": true})
}

func (s *Server) handleClearErrors(w http.ResponseWriter, r *http.Request) {
	handle, ok := errors.HandleFromContext(r.Context())
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
		return
	}

	purgeStore := r.URL.Query().Get("store") == "true"
	if purgeStore && s.store == nil {
		writeJSONError(w, http.StatusNotFound, "error store not enabled")
		return
	}

	cleared := handle.Clear()

	resp := map[string]interface{}{"cleared": cleared}

	if purgeStore {
		purged, err := s.store.Purge(r.Context())
		if err != nil {
			s.logger.Error("failed to purge error store", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to purge error store")
			return
		}
		resp["purged"] = purged
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleErrorStats(w http.ResponseWriter, r *http.Request) {
	if s.agg == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "error log not installed")
		return
	}

	resp := map[string]interface{}{
		"log_size":    s.agg.Len(),
		"evicted":     s.agg.Evicted(),
		"max_records": s.agg.MaxRecords(),
		"subscribers": s.agg.Subscribers(),
	}

	if s.store != nil {
		stats, err := s.store.Stats(r.Context())
		if err != nil {
			s.logger.Error("failed to read error store stats", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to read error store stats")
			return
		}
		resp["store"] = stats
	}
	if s.retention != nil {
		resp["retention"] = s.retention.GetStats()
	}
	if s.metrics != nil {
		resp["counters"] = s.metrics.GetSnapshot()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePitch(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("hz")
	if raw == "" {
		writeJSONError(w, http.StatusBadRequest, "hz is required")
		return
	}
	hz, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "hz must be a number")
		return
	}

	reading, err := pitch.Analyze(hz)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("semitone") == "" {
		writeJSONError(w, http.StatusBadRequest, "semitone is required")
		return
	}
	semitone, err := queryInt(r, "semitone", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	freq, err := pitch.SemitoneFrequency(semitone)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"semitone":  semitone,
		"note":      pitch.NoteName(semitone),
		"frequency": freq,
	})
}

func (s *Server) handleTone(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("semitone") == "" {
		writeJSONError(w, http.StatusBadRequest, "semitone is required")
		return
	}
	semitone, err := queryInt(r, "semitone", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ms, err := queryInt(r, "ms", int(s.config.ToneDuration/time.Millisecond))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	spec := tone.Spec{
		Semitone:   semitone,
		Duration:   time.Duration(ms) * time.Millisecond,
		SampleRate: s.config.ToneSampleRate,
	}

	f, err := os.CreateTemp("", "pitchscope-tone-*.wav")
	if err != nil {
		s.logger.Error("failed to create tone buffer", "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render tone")
		return
	}
	defer func() {
		f.Close()
		os.Remove(f.Name())
	}()

	if err := tone.Encode(f, spec); err != nil {
		if stderrors.Is(err, tone.ErrInvalidDuration) ||
			stderrors.Is(err, tone.ErrInvalidSampleRate) ||
			stderrors.Is(err, tone.ErrAboveNyquist) {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("failed to render tone", "semitone", semitone, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "failed to render tone")
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to render tone")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordToneRendered()
	}

	name := fmt.Sprintf("%s.wav", pitch.NoteName(semitone))
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeContent(w, r, name, time.Time{}, f)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   logger.Version,
	}
	if s.agg != nil {
		resp["errors"] = s.agg.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
