package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/aulalive/signaling/internal/app"
)

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump is the single consumer of inbound events for one
// connection, so per-connection ordering is preserved. Any read error,
// graceful close included, ends in the session's Close transition.
func (ctl *Controller) readPump(ctx context.Context, sess *app.Session, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(sess.ID)).Msg("readPump closing")
		ctl.Router.HandleClose(sess)
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sess.ID)).Msg("read ended")
				return
			}
			ctl.Router.HandleMessage(sess, data)
		}
	}
}
