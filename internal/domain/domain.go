// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxClientIDLen = 64
	MaxRoomIDLen   = 64
)

var (
	ErrClientIDEmpty = errors.New("client id empty")
	ErrRoomIDEmpty   = errors.New("room id empty")
)

type (
	ClientID string
	RoomID   string
)

// NewClientID normalizes a client-declared identifier. Identifiers are
// not globally unique; uniqueness matters only as a room member key.
func NewClientID(raw string) (ClientID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrClientIDEmpty
	}
	if r := []rune(raw); len(r) > MaxClientIDLen {
		raw = string(r[:MaxClientIDLen])
	}
	return ClientID(raw), nil
}

// NewRoomID normalizes an externally provided room key.
func NewRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrRoomIDEmpty
	}
	if r := []rune(raw); len(r) > MaxRoomIDLen {
		raw = string(r[:MaxRoomIDLen])
	}
	return RoomID(raw), nil
}
