package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/sidelinehq/sideline/internal/match/service"
	"github.com/sidelinehq/sideline/internal/platform/timeouts"
)

// StateSource supplies the snapshot a subscriber receives on join.
type StateSource interface {
	GetMatchState(ctx context.Context, matchID string) (service.MatchState, error)
}

// Config defines the inputs for the realtime transport boundary.
type Config struct {
	HTTPAddr          string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the realtime HTTP/WebSocket process.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	hub             *Hub
}

// NewServer builds a configured realtime server around the given hub.
// Snapshots on join come from states; a nil states skips the snapshot.
func NewServer(config Config, hub *Hub, states StateSource) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if hub == nil {
		return nil, errors.New("hub is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           newHandler(hub, states),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		hub:             hub,
	}, nil
}

// Hub returns the hub the server broadcasts through.
func (s *Server) Hub() *Hub {
	return s.hub
}

func newHandler(hub *Hub, states StateSource) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws/matches", websocket.Handler(func(conn *websocket.Conn) {
		serveAllMatches(conn, hub)
	}))
	mux.HandleFunc("/ws/matches/", func(w http.ResponseWriter, r *http.Request) {
		matchID := strings.TrimPrefix(r.URL.Path, "/ws/matches/")
		if matchID == "" || strings.Contains(matchID, "/") {
			http.NotFound(w, r)
			return
		}
		websocket.Handler(func(conn *websocket.Conn) {
			serveMatch(conn, hub, states, matchID)
		}).ServeHTTP(w, r)
	})
	return mux
}

func serveMatch(conn *websocket.Conn, hub *Hub, states StateSource, matchID string) {
	defer conn.Close()

	peer := newWSPeer(json.NewEncoder(conn))
	hub.joinMatch(matchID, peer)
	defer hub.leaveMatch(matchID, peer)

	if states != nil {
		state, err := states.GetMatchState(conn.Request().Context(), matchID)
		if err == nil {
			if err := peer.writeFrame(wsFrame{Type: frameTypeMatchState, Payload: mustJSON(state)}); err != nil {
				return
			}
		} else {
			log.Printf("match state snapshot for %s: %v", matchID, err)
		}
	}

	drain(conn)
}

func serveAllMatches(conn *websocket.Conn, hub *Hub) {
	defer conn.Close()

	peer := newWSPeer(json.NewEncoder(conn))
	hub.joinAll(peer)
	defer hub.leaveAll(peer)

	drain(conn)
}

// drain reads and discards client frames until the connection closes.
// Subscribers are read-only; anything they send is ignored.
func drain(conn *websocket.Conn) {
	buf := make([]byte, 512)
	for {
		if _, err := conn.Read(buf); err != nil {
			if err != io.EOF {
				log.Printf("websocket read: %v", err)
			}
			return
		}
	}
}

// Run creates and serves a realtime server until the context ends.
func Run(ctx context.Context, config Config, hub *Hub, states StateSource) error {
	server, err := NewServer(config, hub, states)
	if err != nil {
		return fmt.Errorf("init realtime server: %w", err)
	}
	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve realtime: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("realtime server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("realtime server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}
