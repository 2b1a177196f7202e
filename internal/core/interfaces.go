package core

// Frame is a marshalled wire message ready for transport.
type Frame []byte

// SessionID identifies one accepted connection (transport token),
// independent of the client-declared identity.
type SessionID string

// SignalConnection abstracts for a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
