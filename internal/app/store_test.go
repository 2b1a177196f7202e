package app

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/domain"
)

type mockLink struct {
	mu      sync.Mutex
	frames  []core.Frame
	sendErr error
	closed  bool
}

func (m *mockLink) TrySend(f core.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.frames = append(m.frames, f)
	return nil
}

func (m *mockLink) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

func (m *mockLink) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = nil
}

type wireMsg struct {
	Type      string          `json:"type"`
	PeerID    string          `json:"peerId"`
	HostID    string          `json:"hostId"`
	From      string          `json:"from"`
	Payload   json.RawMessage `json:"payload"`
	ServerNow int64           `json:"serverNow"`
}

func (m *mockLink) msgs(t *testing.T) []wireMsg {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]wireMsg, 0, len(m.frames))
	for _, f := range m.frames {
		var w wireMsg
		require.NoError(t, json.Unmarshal(f, &w))
		out = append(out, w)
	}
	return out
}

func TestEnsureIsIdempotent(t *testing.T) {
	s := NewRoomStore(time.Minute)
	s.Ensure("x")
	s.AddMember("x", "alice", &mockLink{})
	s.Ensure("x")

	assert.True(t, s.Has("x"))
	assert.Equal(t, 1, s.MemberCount("x"))
	assert.Len(t, s.List(), 1)
}

func TestAddMemberNotifications(t *testing.T) {
	s := NewRoomStore(time.Minute)
	a := &mockLink{}
	b := &mockLink{}

	s.SetHost("x", "alice")
	s.AddMember("x", "alice", a)
	a.reset()

	s.AddMember("x", "bob", b)

	// Existing member: peer_joined strictly before host_update.
	got := a.msgs(t)
	require.Len(t, got, 2)
	assert.Equal(t, "peer_joined", got[0].Type)
	assert.Equal(t, "bob", got[0].PeerID)
	assert.Equal(t, "host_update", got[1].Type)
	assert.Equal(t, "alice", got[1].HostID)

	// New member learns the host even though it did not change.
	got = b.msgs(t)
	require.Len(t, got, 1)
	assert.Equal(t, "host_update", got[0].Type)
	assert.Equal(t, "alice", got[0].HostID)
}

func TestAddMemberOverwritesDuplicateIdentity(t *testing.T) {
	s := NewRoomStore(time.Minute)
	first := &mockLink{}
	second := &mockLink{}

	s.AddMember("x", "alice", first)
	s.AddMember("x", "alice", second)

	assert.Equal(t, 1, s.MemberCount("x"))
	first.reset()
	second.reset()

	relay := NewRelay(s)
	relay.Forward("x", "bob", "alice", json.RawMessage(`1`))

	// Last writer owns the member slot.
	assert.Empty(t, first.msgs(t))
	require.Len(t, second.msgs(t), 1)
}

func TestRemoveMemberPromotesHost(t *testing.T) {
	s := NewRoomStore(time.Minute)
	members := map[domain.ClientID]*mockLink{
		"alice": {}, "bob": {}, "carol": {},
	}
	s.SetHost("x", "alice")
	for id, link := range members {
		s.AddMember("x", id, link)
	}
	for _, link := range members {
		link.reset()
	}

	s.RemoveMember("x", "alice")

	newHost := s.HostID("x")
	assert.Contains(t, []domain.ClientID{"bob", "carol"}, newHost)

	for id, link := range members {
		if id == "alice" {
			continue
		}
		got := link.msgs(t)
		require.Len(t, got, 2, "member %s", id)
		assert.Equal(t, "peer_left", got[0].Type)
		assert.Equal(t, "alice", got[0].PeerID)
		assert.Equal(t, "host_update", got[1].Type)
		assert.Equal(t, string(newHost), got[1].HostID)
	}
}

func TestRemoveNonHostKeepsHost(t *testing.T) {
	s := NewRoomStore(time.Minute)
	a := &mockLink{}
	s.SetHost("x", "alice")
	s.AddMember("x", "alice", a)
	s.AddMember("x", "bob", &mockLink{})

	s.RemoveMember("x", "bob")

	assert.Equal(t, domain.ClientID("alice"), s.HostID("x"))
}

func TestRemoveLastMemberSchedulesDeletion(t *testing.T) {
	s := NewRoomStore(30 * time.Millisecond)
	s.SetHost("x", "alice")
	s.AddMember("x", "alice", &mockLink{})

	s.RemoveMember("x", "alice")

	// Still present inside the grace window, host already cleared.
	assert.True(t, s.Has("x"))
	assert.Equal(t, domain.ClientID(""), s.HostID("x"))

	require.Eventually(t, func() bool { return !s.Has("x") },
		time.Second, 5*time.Millisecond)
}

func TestGraceReconnectKeepsRoom(t *testing.T) {
	s := NewRoomStore(40 * time.Millisecond)
	link := &mockLink{}
	s.AddMember("y", "alice", link)
	s.RemoveMember("y", "alice")

	// Rejoin within the window cancels the pending deletion.
	s.AddMember("y", "alice", link)
	time.Sleep(150 * time.Millisecond)

	assert.True(t, s.Has("y"))
	assert.Equal(t, 1, s.MemberCount("y"))
}

func TestEnsureRestartsGraceWindow(t *testing.T) {
	s := NewRoomStore(100 * time.Millisecond)
	s.AddMember("y", "alice", &mockLink{})
	s.RemoveMember("y", "alice")

	// Ensure inside the window grants a fresh one.
	time.Sleep(60 * time.Millisecond)
	s.Ensure("y")
	time.Sleep(60 * time.Millisecond)
	assert.True(t, s.Has("y"), "survives past the original deadline")

	// Still empty, so it expires once the fresh window runs out.
	require.Eventually(t, func() bool { return !s.Has("y") },
		time.Second, 5*time.Millisecond)
}

func TestEnsureOnlyRoomExpires(t *testing.T) {
	s := NewRoomStore(30 * time.Millisecond)

	// A room minted without members must not outlive the grace window.
	s.Ensure("ghost")
	assert.True(t, s.Has("ghost"))

	require.Eventually(t, func() bool { return !s.Has("ghost") },
		time.Second, 5*time.Millisecond)
}

func TestRemoveMemberUnknownRoomOrMember(t *testing.T) {
	s := NewRoomStore(time.Minute)
	s.RemoveMember("nope", "alice")

	a := &mockLink{}
	s.AddMember("x", "alice", a)
	a.reset()
	s.RemoveMember("x", "ghost")

	assert.Empty(t, a.msgs(t))
	assert.Equal(t, 1, s.MemberCount("x"))
}

func TestClaimHostIfVacant(t *testing.T) {
	s := NewRoomStore(time.Minute)
	s.ClaimHostIfVacant("x", "alice")
	assert.Equal(t, domain.ClientID("alice"), s.HostID("x"))

	s.ClaimHostIfVacant("x", "bob")
	assert.Equal(t, domain.ClientID("alice"), s.HostID("x"))
}

func TestPeersSortedAndExcluding(t *testing.T) {
	s := NewRoomStore(time.Minute)
	s.AddMember("x", "carol", &mockLink{})
	s.AddMember("x", "alice", &mockLink{})
	s.AddMember("x", "bob", &mockLink{})

	assert.Equal(t, []string{"alice", "carol"}, s.Peers("x", "bob"))
	assert.Nil(t, s.Peers("nope", ""))
}

func TestDroppedDeliveryIsSilent(t *testing.T) {
	s := NewRoomStore(time.Minute)
	dead := &mockLink{sendErr: errors.New("connection closed")}
	live := &mockLink{}
	s.AddMember("x", "dead", dead)
	s.AddMember("x", "live", live)
	live.reset()

	// The closed handle must not affect delivery to the healthy one.
	s.AddMember("x", "carol", &mockLink{})

	types := []string{}
	for _, m := range live.msgs(t) {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{"peer_joined", "host_update"}, types)
}
