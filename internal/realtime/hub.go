// Package realtime hosts the WebSocket surface that streams live match
// state. Viewers subscribe to a single match or to every live match; the
// command handlers push refreshed state after each mutation and the hub
// fans it out. Delivery is best effort: a slow or dead peer is dropped,
// never waited on.
package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/sidelinehq/sideline/internal/match/service"
)

type wsFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

const frameTypeMatchState = "match_state"

type wsPeer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

func newWSPeer(encoder *json.Encoder) *wsPeer {
	return &wsPeer{encoder: encoder}
}

func (p *wsPeer) writeFrame(frame wsFrame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.encoder.Encode(frame)
}

// Hub tracks subscribers per match plus the firehose subscribers that
// watch every live match.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*wsPeer]struct{}
	all   map[*wsPeer]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*wsPeer]struct{}),
		all:   make(map[*wsPeer]struct{}),
	}
}

func (h *Hub) joinMatch(matchID string, peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[matchID]
	if !ok {
		room = make(map[*wsPeer]struct{})
		h.rooms[matchID] = room
	}
	room[peer] = struct{}{}
}

func (h *Hub) leaveMatch(matchID string, peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[matchID]
	if !ok {
		return
	}
	delete(room, peer)
	if len(room) == 0 {
		delete(h.rooms, matchID)
	}
}

func (h *Hub) joinAll(peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.all[peer] = struct{}{}
}

func (h *Hub) leaveAll(peer *wsPeer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.all, peer)
}

// subscribers snapshots the peers that should see a match update.
func (h *Hub) subscribers(matchID string) []*wsPeer {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := make([]*wsPeer, 0, len(h.rooms[matchID])+len(h.all))
	for peer := range h.rooms[matchID] {
		peers = append(peers, peer)
	}
	for peer := range h.all {
		if _, dup := h.rooms[matchID][peer]; dup {
			continue
		}
		peers = append(peers, peer)
	}
	return peers
}

// PushState broadcasts refreshed match state to the match room and the
// firehose. Write failures drop the peer from both.
func (h *Hub) PushState(state service.MatchState) {
	frame := wsFrame{
		Type:    frameTypeMatchState,
		Payload: mustJSON(state),
	}
	for _, peer := range h.subscribers(state.MatchID) {
		if err := peer.writeFrame(frame); err != nil {
			h.leaveMatch(state.MatchID, peer)
			h.leaveAll(peer)
		}
	}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal websocket frame payload: %v", err)
		return nil
	}
	return b
}
