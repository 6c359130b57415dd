// Package mcpapi exposes the STT Service facade as a single tool on an MCP
// server, so MCP-aware clients (agent frameworks, IDE assistants) can call
// transcribe the same way an HTTP client hits POST /transcribe.
//
// sttgate only ever plays the MCP server role here — contrast with the
// teacher's internal/mcp/mcphost package, which plays the client role
// against external tool servers. There is no example in this codebase's
// history of the server role, so the wiring below follows the official SDK's
// documented generic tool pattern directly rather than adapting prior code.
package mcpapi

import (
	"context"
	"encoding/base64"
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sttgate/sttgate/internal/sttservice"
	"github.com/sttgate/sttgate/pkg/sttypes"
)

// TranscribeInput is the JSON shape of the "transcribe" tool's arguments.
// AudioBase64 carries the same encoded-byte payload POST /transcribe
// accepts as a multipart file.
type TranscribeInput struct {
	AudioBase64     string  `json:"audio_base64" jsonschema:"base64-encoded audio payload"`
	ModelName       string  `json:"model_name,omitempty" jsonschema:"acoustic model name, default base"`
	Device          string  `json:"device,omitempty" jsonschema:"auto, cpu, or cuda"`
	ComputeType     string  `json:"compute_type,omitempty" jsonschema:"auto, float16, float32, or int8"`
	Language        string  `json:"language,omitempty" jsonschema:"BCP-47 language code, or absent for auto-detect"`
	Task            string  `json:"task,omitempty" jsonschema:"transcribe or translate"`
	VADFilter       *bool   `json:"vad_filter,omitempty" jsonschema:"voice activity filtering, default true"`
	BeamSize        int     `json:"beam_size,omitempty" jsonschema:"decoder beam size, default 5"`
	ReturnMeta      bool    `json:"return_meta,omitempty" jsonschema:"include language/segments in the response"`
	DurationSeconds float64 `json:"duration_seconds,omitempty" jsonschema:"audio duration hint used for admission sizing"`
	DecodeWAVBytes  bool    `json:"decode_wav_bytes,omitempty" jsonschema:"decode a WAV payload in-process, default true"`
}

// TranscribeOutput is the JSON shape of the "transcribe" tool's result.
type TranscribeOutput struct {
	Text                string           `json:"text"`
	Language            string           `json:"language,omitempty"`
	LanguageProbability float64          `json:"language_probability,omitempty"`
	DurationSeconds     float64          `json:"duration_seconds,omitempty"`
	Segments            []segmentPayload `json:"segments,omitempty"`
}

type segmentPayload struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Config names this MCP server for the Implementation handshake and
// supplies the defaults applied when a tool call omits model_name/device/
// compute_type.
type Config struct {
	Name    string
	Version string

	DefaultModelName   string
	DefaultDevice      string
	DefaultComputeType string
}

// NewServer builds an MCP server exposing exactly one tool, "transcribe",
// backed by svc.
func NewServer(cfg Config, svc *sttservice.Service) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)

	mcpsdk.AddTool(server, &mcpsdk.Tool{
		Name:        "transcribe",
		Description: "Transcribe an audio payload using a Whisper-family acoustic model.",
	}, makeTranscribeHandler(cfg, svc))

	return server
}

// Handler wraps server as a streamable-HTTP MCP endpoint suitable for
// mounting alongside the REST adapter.
func Handler(server *mcpsdk.Server) http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return server
	}, nil)
}

func makeTranscribeHandler(cfg Config, svc *sttservice.Service) func(context.Context, *mcpsdk.CallToolRequest, TranscribeInput) (*mcpsdk.CallToolResult, TranscribeOutput, error) {
	return func(ctx context.Context, _ *mcpsdk.CallToolRequest, in TranscribeInput) (*mcpsdk.CallToolResult, TranscribeOutput, error) {
		audio, err := base64.StdEncoding.DecodeString(in.AudioBase64)
		if err != nil {
			return toolError("invalid audio_base64: " + err.Error()), TranscribeOutput{}, nil
		}

		req := sttservice.Request{
			ModelName:   defaultString(in.ModelName, cfg.DefaultModelName),
			Device:      defaultString(in.Device, cfg.DefaultDevice),
			ComputeType: defaultString(in.ComputeType, cfg.DefaultComputeType),
			Audio:       sttypes.NewBytesInput(audio),
			Options: sttypes.TranscribeOptions{
				Language:        in.Language,
				Task:            sttypes.Task(defaultString(in.Task, string(sttypes.TaskTranscribe))),
				VADFilter:       boolOr(in.VADFilter, true),
				BeamSize:        intOr(in.BeamSize, 5),
				ReturnMeta:      in.ReturnMeta,
				DurationSeconds: in.DurationSeconds,
				DecodeWAVBytes:  in.DecodeWAVBytes,
			},
		}

		result, err := svc.Transcribe(ctx, req)
		if err != nil {
			return toolError(err.Error()), TranscribeOutput{}, nil
		}

		out := TranscribeOutput{Text: result.Text}
		if req.Options.ReturnMeta {
			out.Language = result.Language
			out.LanguageProbability = result.LanguageProbability
			out.DurationSeconds = result.DurationSeconds
			out.Segments = make([]segmentPayload, len(result.Segments))
			for i, seg := range result.Segments {
				out.Segments[i] = segmentPayload{Start: seg.Start, End: seg.End, Text: seg.Text}
			}
		}
		return nil, out, nil
	}
}

// toolError builds an application-level tool failure: the MCP call itself
// succeeded, but the requested operation did not. Go errors are reserved for
// transport/protocol failures, matching how the teacher's mcphost client
// distinguishes ToolResult.IsError from a returned error.
func toolError(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func intOr(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
