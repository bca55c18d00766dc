package sync

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Authenticator resolves the user behind a websocket handshake.
type Authenticator func(r *http.Request) (userID string, ok bool)

// WSHandler upgrades authenticated requests and registers the connection
// under its user. Origins are checked against allowed; an empty list only
// admits same-host origins.
func WSHandler(hub *Hub, authenticate Authenticator, allowed []string) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowed),
	}

	return func(c *gin.Context) {
		userID, ok := authenticate(c.Request)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		cl := &client{userID: userID, conn: ws, send: make(chan []byte, sendBuffer)}
		cl.send <- []byte(`{"type":"welcome","transport":"websocket"}`)
		hub.add(cl)
		go cl.writeLoop()
		log.Info().Str("user_id", userID).Msg("[ws] client connected")

		// consume until the peer goes away
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.remove(cl)
		log.Info().Str("user_id", userID).Msg("[ws] client disconnected")
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // non-browser clients
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return strings.EqualFold(u.Host, r.Host)
	}
}
