package core

import "github.com/dkeye/Relay/internal/domain"

// Session is the per-connection mutable state: the client-declared
// identity and the room the connection currently belongs to. It is
// owned by the connection's read loop and dies with it.
type Session struct {
	ClientID domain.ClientID
	RoomID   domain.RoomID
}

// Identify binds a client identity to the session, overwriting any
// prior one. Empty (after trimming) identities are rejected.
func (s *Session) Identify(raw string) error {
	id, err := domain.NewClientID(raw)
	if err != nil {
		return err
	}
	s.ClientID = id
	return nil
}

func (s *Session) Identified() bool { return s.ClientID != "" }

func (s *Session) InRoom() bool { return s.RoomID != "" }
