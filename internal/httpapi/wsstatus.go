package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// statusPushInterval is how often a connected /ws/status client receives a
// fresh snapshot.
const statusPushInterval = 2 * time.Second

// statusSnapshot is the wire shape pushed to /ws/status subscribers.
type statusSnapshot struct {
	GPUPresent bool     `json:"gpu_present"`
	GPUTotalGB float64  `json:"gpu_total_gb"`
	GPUFreeGB  float64  `json:"gpu_free_gb"`
	RAMTotalGB float64  `json:"ram_total_gb"`
	RAMAvailGB float64  `json:"ram_avail_gb"`
	LoadedKeys []string `json:"loaded_keys"`
}

// handleWSStatus implements GET /ws/status: a periodic snapshot feed of
// resource headroom and currently-loaded model keys, for dashboards. It is
// diagnostic only — nothing in the transcription pipeline depends on it.
func (s *Server) handleWSStatus(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	ticker := time.NewTicker(statusPushInterval)
	defer ticker.Stop()

	for {
		snap := s.snapshot()
		if err := writeStatus(ctx, conn, snap); err != nil {
			return
		}

		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) snapshot() statusSnapshot {
	snap := s.resources.Probe()
	keys := s.registry.Keys()

	loaded := make([]string, len(keys))
	for i, k := range keys {
		loaded[i] = k.String()
	}

	return statusSnapshot{
		GPUPresent: snap.GPUPresent,
		GPUTotalGB: snap.GPUTotalGB,
		GPUFreeGB:  snap.GPUFreeGB,
		RAMTotalGB: snap.RAMTotalGB,
		RAMAvailGB: snap.RAMAvailGB,
		LoadedKeys: loaded,
	}
}

func writeStatus(ctx context.Context, conn *websocket.Conn, snap statusSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}
