package app

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/protocol"
)

// roomState is the authoritative record for one room.
// Mutated only under the store lock.
type roomState struct {
	id      domain.RoomID
	hostID  domain.ClientID
	members map[domain.ClientID]core.SignalConnection

	// armed while the room has zero members, nil otherwise
	deleteTimer *time.Timer
}

// RoomStore owns every room lifecycle transition: creation, membership,
// host promotion and deferred teardown of empty rooms. It is the only
// shared mutable state in the process.
type RoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*roomState
	grace time.Duration

	now func() int64 // unix milliseconds, swappable in tests
}

func NewRoomStore(grace time.Duration) *RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomID]*roomState),
		grace: grace,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Ensure returns-or-creates semantics without exposing the record: the
// room exists afterwards. A populated room has its pending deletion
// cancelled; an empty one gets a fresh grace window instead, so rooms
// minted without members (relay to an unknown id) cannot live forever.
func (s *RoomStore) Ensure(roomID domain.RoomID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLocked(roomID)
}

func (s *RoomStore) ensureLocked(roomID domain.RoomID) *roomState {
	r, ok := s.rooms[roomID]
	if !ok {
		r = &roomState{
			id:      roomID,
			members: make(map[domain.ClientID]core.SignalConnection),
		}
		s.rooms[roomID] = r
		metricRoomsActive.Inc()
		log.Info().Str("module", "app.store").Str("room", string(roomID)).Msg("room created")
	}
	// Invariant: a room with zero members is always inside a grace window.
	if len(r.members) == 0 {
		s.scheduleDeleteLocked(r)
	} else {
		s.cancelDeleteLocked(r)
	}
	return r
}

func (s *RoomStore) cancelDeleteLocked(r *roomState) {
	if r.deleteTimer == nil {
		return
	}
	r.deleteTimer.Stop()
	r.deleteTimer = nil
	log.Debug().Str("module", "app.store").Str("room", string(r.id)).Msg("pending deletion cancelled")
}

// AddMember inserts (or overwrites, for duplicate identities) the member
// and notifies the room: every other member gets peer_joined, then every
// member including the new one gets host_update. The host_update is sent
// even when the host did not change so a fresh joiner learns it reliably.
func (s *RoomStore) AddMember(roomID domain.RoomID, clientID domain.ClientID, conn core.SignalConnection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(roomID)
	_, rejoin := r.members[clientID]
	r.members[clientID] = conn
	s.cancelDeleteLocked(r)

	for id, peer := range r.members {
		if id == clientID {
			continue
		}
		sendJSON(peer, protocol.PeerJoined{Type: "peer_joined", PeerID: clientID})
	}
	for _, peer := range r.members {
		sendJSON(peer, protocol.HostUpdate{Type: "host_update", HostID: r.hostID})
	}

	metricJoins.Inc()
	log.Info().Str("module", "app.store").Str("room", string(roomID)).Str("client", string(clientID)).Bool("overwrite", rejoin).Int("members", len(r.members)).Msg("member added")
}

// RemoveMember deletes the member if present; no-op when the room or the
// member is unknown. A departing host hands the role to the smallest
// remaining identifier. Remaining members get peer_left, then host_update.
// A room left empty keeps existing for a grace window before deletion, so
// a transport blip does not destroy room state.
func (s *RoomStore) RemoveMember(roomID domain.RoomID, clientID domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if _, ok := r.members[clientID]; !ok {
		return
	}
	delete(r.members, clientID)
	metricLeaves.Inc()

	if len(r.members) == 0 {
		r.hostID = ""
		s.scheduleDeleteLocked(r)
		log.Info().Str("module", "app.store").Str("room", string(roomID)).Str("client", string(clientID)).Msg("last member removed, deletion scheduled")
		return
	}

	if r.hostID == clientID {
		r.hostID = nextHostLocked(r)
		log.Info().Str("module", "app.store").Str("room", string(roomID)).Str("host", string(r.hostID)).Msg("host promoted")
	}
	for _, peer := range r.members {
		sendJSON(peer, protocol.PeerLeft{Type: "peer_left", PeerID: clientID})
	}
	for _, peer := range r.members {
		sendJSON(peer, protocol.HostUpdate{Type: "host_update", HostID: r.hostID})
	}
	log.Info().Str("module", "app.store").Str("room", string(roomID)).Str("client", string(clientID)).Int("members", len(r.members)).Msg("member removed")
}

// SetHost assigns the host explicitly. Members are not notified here;
// the host_update broadcast of the following AddMember covers it.
func (s *RoomStore) SetHost(roomID domain.RoomID, clientID domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(roomID)
	r.hostID = clientID
}

// ClaimHostIfVacant makes the client host only when the room currently
// has none, in one step, so two concurrent joiners cannot both win.
func (s *RoomStore) ClaimHostIfVacant(roomID domain.RoomID, clientID domain.ClientID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.ensureLocked(roomID)
	if r.hostID == "" {
		r.hostID = clientID
	}
}

func (s *RoomStore) HostID(roomID domain.RoomID) domain.ClientID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[roomID]; ok {
		return r.hostID
	}
	return ""
}

// Peers lists current member identifiers, sorted, excluding `except`.
func (s *RoomStore) Peers(roomID domain.RoomID, except domain.ClientID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(r.members))
	for id := range r.members {
		if id == except {
			continue
		}
		out = append(out, string(id))
	}
	sort.Strings(out)
	return out
}

func (s *RoomStore) MemberCount(roomID domain.RoomID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[roomID]; ok {
		return len(r.members)
	}
	return 0
}

// Has reports whether the room is currently present in the store,
// pending-deletion rooms included.
func (s *RoomStore) Has(roomID domain.RoomID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[roomID]
	return ok
}

// RoomInfo is a read-only view for APIs (no transport fields).
type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	HostID      domain.ClientID `json:"hostId"`
	MemberCount int             `json:"memberCount"`
}

func (s *RoomStore) List() []RoomInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]RoomInfo, 0, len(s.rooms))
	for id, r := range s.rooms {
		out = append(out, RoomInfo{ID: id, HostID: r.hostID, MemberCount: len(r.members)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// nextHostLocked picks the smallest remaining identifier: any member can
// carry the host role, the selection only has to be deterministic for a
// given membership snapshot.
func nextHostLocked(r *roomState) domain.ClientID {
	var next domain.ClientID
	for id := range r.members {
		if next == "" || id < next {
			next = id
		}
	}
	return next
}

func (s *RoomStore) scheduleDeleteLocked(r *roomState) {
	if r.deleteTimer != nil {
		r.deleteTimer.Stop()
	}
	r.deleteTimer = time.AfterFunc(s.grace, func() { s.expire(r) })
}

// expire is the grace-timer callback. It takes the store lock, so it can
// never interleave with a concurrent rejoin; a timer that lost the race
// to Ensure/AddMember finds members (or a recreated record) and backs off.
func (s *RoomStore) expire(r *roomState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.rooms[r.id]
	if !ok || cur != r {
		return
	}
	if len(cur.members) > 0 {
		return
	}
	delete(s.rooms, r.id)
	metricRoomsActive.Dec()
	log.Info().Str("module", "app.store").Str("room", string(r.id)).Msg("empty room expired")
}

// sendJSON marshals and hands the frame to the member's transport handle.
// Delivery is best-effort: a closed or saturated handle is skipped, never
// surfaced to the sender.
func sendJSON(conn core.SignalConnection, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.store").Msg("sendJSON marshal")
		return
	}
	if err := conn.TrySend(core.Frame(b)); err != nil {
		metricDroppedSends.Inc()
		log.Debug().Err(err).Str("module", "app.store").Msg("delivery skipped")
	}
}
