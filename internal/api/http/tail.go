package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Paintersrp/warden/internal/api"
)

const tailPollInterval = 500 * time.Millisecond

var tailUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// tailMessage is one frame pushed to a tail subscriber.
type tailMessage struct {
	RunID int64    `json:"run_id"`
	Lines []string `json:"lines"`
	Done  bool     `json:"done"`
}

// handleTail streams new output lines for a run over a websocket until
// the run leaves the table or the client disconnects.
func (s *Server) handleTail(w http.ResponseWriter, r *http.Request, runID int64) {
	if _, err := s.ctrl.GetProcess(r.Context(), runID); err != nil {
		s.writeErrorWithDetails(w, err, map[string]any{"run_id": runID})
		return
	}

	conn, err := tailUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sent := 0
	ticker := time.NewTicker(tailPollInterval)
	defer ticker.Stop()

	for {
		report, err := s.ctrl.Output(r.Context(), runID, 0)
		if err != nil {
			if errors.Is(err, api.ErrUnknownProcess) {
				_ = conn.WriteJSON(tailMessage{RunID: runID, Done: true})
			}
			return
		}
		if len(report.Lines) < sent {
			// Buffer was cleared; restart from the top.
			sent = 0
		}
		if len(report.Lines) > sent {
			msg := tailMessage{RunID: runID, Lines: report.Lines[sent:]}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			sent = len(report.Lines)
		}

		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
