package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Relay/internal/core"
	"github.com/dkeye/Relay/internal/protocol"
)

// handleHello binds (or overwrites) the client-declared identity on this
// connection. The server does not verify global uniqueness; two
// connections may claim the same id and collide inside a room's member
// map, last writer wins.
func (ctl *SignalWSController) handleHello(
	sid core.SessionID,
	sess *core.Session,
	conn core.SignalConnection,
	data []byte,
) {
	var p protocol.Hello
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad hello payload")
		return
	}
	if err := sess.Identify(p.ID); err != nil {
		ctl.sendError(conn, protocol.ErrInvalidIdentity)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", string(sess.ClientID)).Msg("hello")
	ctl.sendJSON(conn, protocol.HelloAck{
		Type:      "hello_ack",
		ID:        sess.ClientID,
		ServerNow: nowMillis(),
	})
}
