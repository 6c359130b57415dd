package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sttgate/sttgate/internal/audit"
	"github.com/sttgate/sttgate/internal/sttservice"
	"github.com/sttgate/sttgate/pkg/registry"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// maxUploadMemory bounds how much of a multipart body is buffered in memory
// before overflowing to a temp file, per [http.Request.ParseMultipartForm].
const maxUploadMemory = 32 << 20 // 32 MiB

// segmentView is the wire shape of one [sttypes.Segment].
type segmentView struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// transcribeResponse is the wire shape of a successful /transcribe call.
// With ReturnMeta false, every field besides Text is omitted.
type transcribeResponse struct {
	Text                string        `json:"text"`
	Language            string        `json:"language,omitempty"`
	LanguageProbability float64       `json:"language_probability,omitempty"`
	DurationSeconds     float64       `json:"duration_seconds,omitempty"`
	Segments            []segmentView `json:"segments,omitempty"`
}

// errorResponse is the wire shape of a 4xx/5xx /transcribe response.
type errorResponse struct {
	Detail string `json:"detail"`
}

// handleTranscribe implements POST /transcribe: spec §4.H / §6.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse upload: "+err.Error())
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing or unreadable \"file\" field: "+err.Error())
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload: "+err.Error())
		return
	}

	q := r.URL.Query()
	req := sttservice.Request{
		ModelName:   queryOr(q, "model_name", s.cfg.DefaultModelName),
		Device:      queryOr(q, "device", s.cfg.DefaultDevice),
		ComputeType: queryOr(q, "compute_type", s.cfg.DefaultComputeType),
		Audio:       sttypes.NewBytesInput(data),
		Options: sttypes.TranscribeOptions{
			Language:        q.Get("language"),
			Task:            sttypes.Task(queryOr(q, "task", string(sttypes.TaskTranscribe))),
			VADFilter:       queryBool(q, "vad_filter", true),
			BeamSize:        queryInt(q, "beam_size", 5),
			ReturnMeta:      queryBool(q, "return_meta", true),
			DurationSeconds: queryFloat(q, "duration_seconds", 0),
			DecodeWAVBytes:  queryBool(q, "decode_wav_bytes", true),
		},
	}

	start := time.Now()
	resolvedDevice, resolvedCompute := s.resources.Resolve(req.Device, req.ComputeType)
	key := registry.Canonicalize(req.ModelName, resolvedDevice, resolvedCompute)

	result, err := s.service.Transcribe(ctx, req)
	duration := time.Since(start)
	if err != nil {
		status := statusForError(err)
		s.recordAudit(key, err, duration)
		writeError(w, status, err.Error())
		return
	}
	s.recordAudit(key, nil, duration)

	resp := transcribeResponse{Text: result.Text}
	if req.Options.ReturnMeta {
		resp.Language = result.Language
		resp.LanguageProbability = result.LanguageProbability
		resp.DurationSeconds = result.DurationSeconds
		resp.Segments = make([]segmentView, len(result.Segments))
		for i, seg := range result.Segments {
			resp.Segments[i] = segmentView{Start: seg.Start, End: seg.End, Text: seg.Text}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// statusForError maps the sttypes error taxonomy onto HTTP status codes per
// spec §4.H: resource rejection and inference/model-load failures are
// surfaced as 503 (the server is healthy but momentarily or durably unable
// to serve this request); anything the caller could fix by resubmitting a
// different request is 400.
func statusForError(err error) int {
	switch {
	case errors.Is(err, sttypes.ErrInvalidArgument), errors.Is(err, sttypes.ErrInputIO):
		return http.StatusBadRequest
	case errors.Is(err, sttypes.ErrResourceRejected),
		errors.Is(err, sttypes.ErrInferenceFailed),
		errors.Is(err, sttypes.ErrModelLoadFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusServiceUnavailable
	}
}

// recordAudit is a no-op when no audit logger is configured. Unlike
// statusForError, which maps every non-client failure to 503, it records
// admission rejection as its own outcome, since it reflects a deliberate
// policy decision rather than a downstream fault.
func (s *Server) recordAudit(key sttypes.ModelKey, err error, duration time.Duration) {
	if s.audit == nil {
		return
	}

	entry := audit.Entry{
		ModelKey: key.String(),
		Outcome:  audit.OutcomeOK,
		Duration: duration,
	}
	if err != nil {
		entry.Detail = err.Error()
		entry.Outcome = audit.OutcomeError
		if errors.Is(err, sttypes.ErrResourceRejected) {
			entry.Outcome = audit.OutcomeRejected
		}
	}
	s.audit.Record(entry)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func queryOr(q url.Values, key, def string) string {
	if v, ok := q[key]; ok && len(v) > 0 && v[0] != "" {
		return v[0]
	}
	return def
}

func queryBool(q url.Values, key string, def bool) bool {
	v, ok := q[key]
	if !ok || len(v) == 0 || v[0] == "" {
		return def
	}
	b, err := strconv.ParseBool(v[0])
	if err != nil {
		return def
	}
	return b
}

func queryInt(q url.Values, key string, def int) int {
	v, ok := q[key]
	if !ok || len(v) == 0 || v[0] == "" {
		return def
	}
	n, err := strconv.Atoi(v[0])
	if err != nil {
		return def
	}
	return n
}

func queryFloat(q url.Values, key string, def float64) float64 {
	v, ok := q[key]
	if !ok || len(v) == 0 || v[0] == "" {
		return def
	}
	f, err := strconv.ParseFloat(v[0], 64)
	if err != nil {
		return def
	}
	return f
}
