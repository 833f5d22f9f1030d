// Package api exposes rowing telemetry over a websocket broadcast channel
// and a small JSON config endpoint: one goroutine samples state on a
// ticker, marshals a Frame, and fans it out to every connected client with
// a non-blocking send so a slow client can't stall the others.
package api

import (
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/elp3dr/wrowfusion/internal/config"
	"github.com/elp3dr/wrowfusion/internal/rower"
	"github.com/elp3dr/wrowfusion/internal/sessionlog"
	"github.com/elp3dr/wrowfusion/internal/workout"
)

// Server serves the telemetry websocket and config API over HTTP, sourcing
// rowing state from a rower.Adapter.
type Server struct {
	cfg     *config.Config
	adapter *rower.Adapter
	log     *sessionlog.Logger
	webFS   fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure broadcast to all websocket clients once per
// tick.
type Frame struct {
	Rower   *rower.Snapshot         `json:"rower,omitempty"`
	Workout *workout.Definition     `json:"workout,omitempty"`
	Zone    *workout.ZoneDefinition `json:"zone,omitempty"`
	Stamp   int64                   `json:"stamp"`
}

// New creates a Server bound to adapter and serving webFS as static assets.
func New(cfg *config.Config, adapter *rower.Adapter, sessionLog *sessionlog.Logger, webFS fs.FS) *Server {
	return &Server{
		cfg:     cfg,
		adapter: adapter,
		log:     sessionLog,
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Run starts the HTTP server and the telemetry broadcast loop, blocking
// until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/reset", s.handleReset)

	go s.pollLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		if s.log != nil {
			s.log.Close()
		}
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[api] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[api] ws upgrade error: %v", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan []byte, 64)}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	s.clientsMu.Unlock()

	log.Printf("[api] client connected (%d total)", len(s.clients))

	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			s.clientsMu.Unlock()
			close(client.send)
			log.Printf("[api] client disconnected (%d total)", len(s.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		data, err := s.cfg.ToJSON()
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)

	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", 400)
			return
		}
		if err := s.cfg.UpdateFromJSON(body); err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := s.cfg.Save(); err != nil {
			log.Printf("[api] config save failed: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))

	default:
		http.Error(w, "method not allowed", 405)
	}
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", 405)
		return
	}
	if err := s.adapter.RequestReset(); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// pollLoop samples the rower adapter on a fixed tick and broadcasts a
// Frame, and forwards the same snapshot to the session logger. A session
// the aggregator has ended (idle timeout) is closed out in the log rather
// than recorded into; if rowing later resumes, Record auto-starts a fresh
// session row.
func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := s.adapter.Snapshot()
			wDef := s.adapter.CurrentWorkout()
			zDef := s.adapter.CurrentZone()

			frame := Frame{
				Rower:   &snap,
				Workout: &wDef,
				Zone:    &zDef,
				Stamp:   time.Now().UnixMilli(),
			}
			s.broadcast(frame)

			if s.log != nil {
				if snap.SessionState == rower.SessionEnded {
					s.log.EndSession(true)
				} else {
					s.log.Record(snap)
				}
			}
		}
	}
}

func (s *Server) broadcast(frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- data:
		default:
		}
	}
}
