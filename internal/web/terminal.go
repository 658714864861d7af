package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/creack/pty/v2"
)

type resizeMsg struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// handleWebSocket bridges a websocket to a pty running the session's
// terminal process. Text frames starting with "{" may carry resize
// messages; everything else is keyboard input.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id, err := existingSession(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.command == nil {
		http.Error(w, "no terminal command configured", http.StatusInternalServerError)
		return
	}
	log := s.log.With().Str("session", id).Logger()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	cols := parseUint16(r.URL.Query().Get("cols"), 80)
	rows := parseUint16(r.URL.Query().Get("rows"), 24)

	cmd := s.command(s.dbPath(id))
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
	if err != nil {
		log.Error().Err(err).Msg("pty start")
		conn.Close(websocket.StatusInternalError, "failed to start terminal")
		return
	}
	log.Info().Int("pid", cmd.Process.Pid).Msg("terminal started")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var once sync.Once
	cleanup := func() {
		cancel()
		ptmx.Close()
		if cmd.Process != nil {
			cmd.Process.Kill()
			cmd.Wait()
		}
		log.Info().Msg("terminal closed")
	}
	defer once.Do(cleanup)

	// binary frames skip UTF-8 validation of partial escape sequences
	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := ptmx.Read(buf)
			if err != nil {
				once.Do(cleanup)
				conn.Close(websocket.StatusNormalClosure, "process exited")
				return
			}
			if err := conn.Write(ctx, websocket.MessageBinary, buf[:n]); err != nil {
				log.Debug().Err(err).Msg("ws write")
				once.Do(cleanup)
				return
			}
		}
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("ws read")
			return
		}
		if strings.HasPrefix(string(data), "{") {
			var resize resizeMsg
			if json.Unmarshal(data, &resize) == nil && resize.Type == "resize" {
				pty.Setsize(ptmx, &pty.Winsize{Rows: resize.Rows, Cols: resize.Cols})
				continue
			}
		}
		if _, err := ptmx.Write(data); err != nil {
			return
		}
	}
}

func parseUint16(s string, def uint16) uint16 {
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil || v == 0 {
		return def
	}
	return uint16(v)
}
