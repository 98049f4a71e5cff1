package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"groupnav/internal/app/presence"
	"groupnav/internal/pkg/auth/jwt"
	"groupnav/internal/pkg/logx"
)

// HandleWebSocket upgrades the connection and runs it as a presence session. A valid
// access token is optional; when present, joins for any other user are refused.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claimed := jwt.GetPayloadFromContext(r).ClaimedUserID()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := deps.Presence.Connect(claimed)
		logx.Info("WebSocket connection established.", "conn_id", string(session.ID()), "claimed_user_id", claimed)

		presence.NewClient(conn, session).Run()
	}
}
