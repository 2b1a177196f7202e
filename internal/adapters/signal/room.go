package signal

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/protocol"
)

func (ctl *SignalWSController) handleCreateRoom(
	sid core.SessionID,
	sess *core.Session,
	conn core.SignalConnection,
	data []byte,
) {
	var p protocol.CreateRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad create_room payload")
		return
	}
	roomID, err := domain.NewRoomID(p.Room)
	if err != nil {
		ctl.sendError(conn, protocol.ErrMissingRoomID)
		return
	}
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, errTooManyJoins)
		return
	}

	ctl.leaveCurrentRoom(sess)
	ctl.Rooms.SetHost(roomID, sess.ClientID)
	ctl.Rooms.AddMember(roomID, sess.ClientID, conn)
	sess.RoomID = roomID
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Msg("room created")

	ctl.sendJSON(conn, protocol.RoomCreated{Type: "room_created", Room: roomID})
	ctl.sendJSON(conn, protocol.RoomJoined{
		Type:   "room_joined",
		Room:   roomID,
		HostID: ctl.Rooms.HostID(roomID),
		Peers:  ctl.Rooms.Peers(roomID, sess.ClientID),
	})
}

// handleJoinRoom never fails on room absence: joining a missing room
// creates it and makes the joiner its host until someone claims the role
// via create_room.
func (ctl *SignalWSController) handleJoinRoom(
	sid core.SessionID,
	sess *core.Session,
	conn core.SignalConnection,
	data []byte,
) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad join_room payload")
		return
	}
	roomID, err := domain.NewRoomID(p.Room)
	if err != nil {
		ctl.sendError(conn, protocol.ErrMissingRoomID)
		return
	}
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(conn, errTooManyJoins)
		return
	}

	ctl.leaveCurrentRoom(sess)
	ctl.Rooms.ClaimHostIfVacant(roomID, sess.ClientID)
	ctl.Rooms.AddMember(roomID, sess.ClientID, conn)
	sess.RoomID = roomID
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(roomID)).Msg("join")

	ctl.sendJSON(conn, protocol.RoomJoined{
		Type:   "room_joined",
		Room:   roomID,
		HostID: ctl.Rooms.HostID(roomID),
		Peers:  ctl.Rooms.Peers(roomID, sess.ClientID),
	})
}

func (ctl *SignalWSController) handleRelay(
	sess *core.Session,
	conn core.SignalConnection,
	data []byte,
) {
	var p protocol.Relay
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad relay payload")
		return
	}

	roomID := sess.RoomID
	if p.Room != "" {
		id, err := domain.NewRoomID(p.Room)
		if err != nil {
			ctl.sendError(conn, protocol.ErrMissingRoomID)
			return
		}
		roomID = id
	}
	if roomID == "" {
		ctl.sendError(conn, protocol.ErrMissingRoomID)
		return
	}
	if strings.TrimSpace(p.To) == "" {
		ctl.sendError(conn, protocol.ErrMissingTarget)
		return
	}

	// A relay can arrive just after a reconnect recreated the room.
	ctl.Rooms.Ensure(roomID)
	ctl.Relay.Forward(roomID, sess.ClientID, p.To, p.Payload)
}

// leaveCurrentRoom runs the full departure chain (promotion, peer_left /
// host_update broadcasts, deletion scheduling) on the previous room; a
// connection belongs to at most one room at any instant.
func (ctl *SignalWSController) leaveCurrentRoom(sess *core.Session) {
	if !sess.InRoom() {
		return
	}
	ctl.Rooms.RemoveMember(sess.RoomID, sess.ClientID)
	sess.RoomID = ""
}

func (ctl *SignalWSController) handleDisconnect(sid core.SessionID, sess *core.Session) {
	if sess.InRoom() {
		log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", string(sess.RoomID)).Msg("disconnect leaves room")
	}
	ctl.leaveCurrentRoom(sess)
}
