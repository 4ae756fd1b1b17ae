package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo/core"
	"github.com/trezcool/masomo/core/attendance"
	"github.com/trezcool/masomo/core/incident"
	"github.com/trezcool/masomo/core/realtime"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
	wsReadLimit  = 512
)

var (
	// realtimeTables are the tables a client may subscribe to.
	realtimeTables = map[string]struct{}{
		incident.TableName:   {},
		attendance.TableName: {},
	}

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(*http.Request) bool { return true }, // same policy as CORS
	}
)

// realtime streams the changes matching ?table=&event= as JSON text frames.
// The broker subscription is open before the upgrade completes, so nothing committed after the handshake is missed.
func (s *server) realtime(ctx echo.Context) error {
	table := ctx.QueryParam("table")
	if _, ok := realtimeTables[table]; !ok {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown table %q", table))
	}
	evt, err := realtime.ParseEventType(ctx.QueryParam("event"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	filter := realtime.AllOn(table)
	if evt != realtime.EventAll {
		filter.Events = []realtime.EventType{evt}
	}
	purpose := ctx.QueryParam("purpose")

	sub, err := s.Broker.Subscribe(ctx.Request().Context(), filter)
	if errors.Cause(err) == realtime.ErrClosed {
		// nothing will ever be delivered again
		return core.NewShutdownError("realtime broker closed")
	}
	if err != nil {
		s.Logger.Warn(fmt.Sprintf("realtime: %s could not subscribe to %s", purpose, table), err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "realtime unavailable")
	}
	defer sub.Close()
	defer s.Metrics.TrackSubscription(table)()

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader already replied
	}
	defer conn.Close()
	s.Logger.Debug(fmt.Sprintf("realtime: %s subscribed to %s (%s)", purpose, table, evt))

	// the client never sends data; reading only serves control frames and close detection
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case c, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok { // broker dropped us
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return nil
			}
			if err := conn.WriteJSON(c); err != nil {
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-gone:
			return nil
		}
	}
}
