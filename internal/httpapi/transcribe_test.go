package httpapi

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sttgate/sttgate/internal/health"
	"github.com/sttgate/sttgate/internal/sttservice"
	"github.com/sttgate/sttgate/pkg/inference"
	"github.com/sttgate/sttgate/pkg/registry"
	"github.com/sttgate/sttgate/pkg/resources"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// fakeModel is a deterministic [inference.AcousticModel] for HTTP adapter
// tests; it never touches whisper.cpp.
type fakeModel struct{}

func (fakeModel) Transcribe(samples []float32, params inference.Params) (inference.SegmentReader, inference.Info, error) {
	segs := []sttypes.Segment{{Start: 0, End: 1, Text: "hello world"}}
	return &fakeSegmentReader{segs: segs}, inference.Info{Language: "en", DurationSeconds: float64(len(samples)) / 16000}, nil
}

type fakeSegmentReader struct {
	segs []sttypes.Segment
	i    int
}

func (r *fakeSegmentReader) Next() (sttypes.Segment, bool) {
	if r.i >= len(r.segs) {
		return sttypes.Segment{}, false
	}
	s := r.segs[r.i]
	r.i++
	return s, true
}

func newTestServer() *Server {
	reg := registry.New(func(sttypes.ModelKey) (inference.AcousticModel, error) {
		return fakeModel{}, nil
	})
	res := resources.New()
	svc := sttservice.New(reg, res)
	cfg := Config{DefaultModelName: "base", DefaultDevice: "auto", DefaultComputeType: "auto"}
	return New(cfg, svc, reg, res, health.New(), nil)
}

// smallWAV builds a minimal canonical 16kHz mono 16-bit PCM WAV payload.
func smallWAV(numSamples int) []byte {
	var data bytes.Buffer
	for i := 0; i < numSamples; i++ {
		binary.Write(&data, binary.LittleEndian, int16(0))
	}

	var buf bytes.Buffer
	dataBytes := data.Bytes()
	byteRate := 16000 * 2
	riffSize := 36 + len(dataBytes)

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(riffSize))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(16000))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(dataBytes)))
	buf.Write(dataBytes)

	return buf.Bytes()
}

func multipartRequest(t *testing.T, query string, wav []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "clip.wav")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(wav); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	target := "/transcribe"
	if query != "" {
		target += "?" + query
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandleTranscribe_SuccessWithMeta(t *testing.T) {
	s := newTestServer()
	handler := s.Handler(nil)

	req := multipartRequest(t, "return_meta=true", smallWAV(1600))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp transcribeResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Text != "hello world" {
		t.Errorf("text = %q, want %q", resp.Text, "hello world")
	}
	if resp.Language != "en" {
		t.Errorf("language = %q, want %q", resp.Language, "en")
	}
	if len(resp.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(resp.Segments))
	}
}

func TestHandleTranscribe_SuccessWithoutMeta(t *testing.T) {
	s := newTestServer()
	handler := s.Handler(nil)

	req := multipartRequest(t, "return_meta=false", smallWAV(1600))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var raw map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := raw["language"]; ok {
		t.Error("language present in non-meta response")
	}
	if raw["text"] != "hello world" {
		t.Errorf("text = %v, want %q", raw["text"], "hello world")
	}
}

func TestHandleTranscribe_MissingFile(t *testing.T) {
	s := newTestServer()
	handler := s.Handler(nil)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	var errResp errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Detail == "" {
		t.Error("expected non-empty detail message")
	}
}

func TestQueryHelpers(t *testing.T) {
	q, _ := url.ParseQuery("a=1&b=true&c=2.5&d=")

	if got := queryOr(q, "missing", "fallback"); got != "fallback" {
		t.Errorf("queryOr missing = %q, want fallback", got)
	}
	if got := queryInt(q, "a", 0); got != 1 {
		t.Errorf("queryInt a = %d, want 1", got)
	}
	if got := queryBool(q, "b", false); got != true {
		t.Errorf("queryBool b = %v, want true", got)
	}
	if got := queryFloat(q, "c", 0); got != 2.5 {
		t.Errorf("queryFloat c = %v, want 2.5", got)
	}
	if got := queryOr(q, "d", "fallback"); got != "fallback" {
		t.Errorf("queryOr empty d = %q, want fallback", got)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"invalid argument", sttypes.ErrInvalidArgument, http.StatusBadRequest},
		{"input io", sttypes.ErrInputIO, http.StatusBadRequest},
		{"resource rejected", &sttypes.ResourceRejectedError{Reason: "no room"}, http.StatusServiceUnavailable},
		{"inference failed", &sttypes.InferenceFailedError{Cause: sttypes.ErrInferenceFailed}, http.StatusServiceUnavailable},
		{"model load failed", &sttypes.ModelLoadFailedError{Cause: sttypes.ErrModelLoadFailed}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusForError(tc.err); got != tc.want {
				t.Errorf("statusForError(%v) = %d, want %d", tc.err, got, tc.want)
			}
		})
	}
}
