package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/protocol"
)

// Relay is the stateless routing engine over the RoomStore: fan-out
// broadcast and directed unicast of opaque payloads, tagged with the
// sender identity and a server timestamp.
type Relay struct {
	Rooms *RoomStore
}

func NewRelay(rooms *RoomStore) *Relay {
	return &Relay{Rooms: rooms}
}

// Forward delivers the payload to the broadcast set (everyone but the
// sender) or to the single named member. An unknown room or target is a
// silent drop: a sender cannot tell an unknown peer from one that is
// momentarily reconnecting, and must not be told otherwise.
func (e *Relay) Forward(roomID domain.RoomID, fromID domain.ClientID, to string, payload json.RawMessage) {
	s := e.Rooms
	s.mu.RLock()
	r, ok := s.rooms[roomID]
	if !ok {
		s.mu.RUnlock()
		return
	}
	kind := "direct"
	var targets []core.SignalConnection
	switch to {
	case protocol.BroadcastStar, protocol.BroadcastAll:
		kind = "broadcast"
		targets = make([]core.SignalConnection, 0, len(r.members))
		for id, peer := range r.members {
			if id == fromID {
				continue
			}
			targets = append(targets, peer)
		}
	default:
		if peer, ok := r.members[domain.ClientID(to)]; ok {
			targets = append(targets, peer)
		}
	}
	s.mu.RUnlock()

	// serverNow is sampled per delivery, so recipients of one broadcast
	// may observe slightly different timestamps.
	for _, peer := range targets {
		sendJSON(peer, protocol.RelayOut{
			Type:      "relay",
			From:      fromID,
			Payload:   payload,
			ServerNow: s.now(),
		})
	}

	metricRelayed.WithLabelValues(kind).Add(float64(len(targets)))
	log.Debug().Str("module", "app.relay").Str("room", string(roomID)).Str("from", string(fromID)).Str("kind", kind).Int("sent_to", len(targets)).Msg("relay forwarded")
}
