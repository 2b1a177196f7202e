package signal

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dkeye/Relay/internal/protocol"
)

var metricProtocolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "relay_protocol_errors_total",
	Help: "Protocol errors answered to clients, by kind",
}, []string{"kind"})

func errKind(err error) string {
	switch {
	case errors.Is(err, protocol.ErrIdentityRequired):
		return "identity_required"
	case errors.Is(err, protocol.ErrInvalidIdentity):
		return "invalid_identity"
	case errors.Is(err, protocol.ErrMissingRoomID):
		return "missing_room_id"
	case errors.Is(err, protocol.ErrMissingTarget):
		return "missing_target"
	case errors.Is(err, protocol.ErrUnknownMessageType):
		return "unknown_message_type"
	case errors.Is(err, errTooManyJoins):
		return "rate_limited"
	default:
		return "other"
	}
}
