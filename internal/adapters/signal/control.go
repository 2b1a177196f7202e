package signal

import (
	"encoding/json"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/protocol"
)

// handlePing is the clock probe: pure echo of the client timestamp next
// to the server clock, stateless and available before identification.
func (ctl *SignalWSController) handlePing(
	conn core.SignalConnection,
	data []byte,
) {
	var p protocol.Ping
	_ = json.Unmarshal(data, &p)
	ctl.sendJSON(conn, protocol.Pong{
		Type:      "pong",
		T0:        p.T0,
		ServerNow: nowMillis(),
	})
}
