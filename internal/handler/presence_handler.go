package handler

import (
	"net/http"

	"groupnav/internal/pkg/resp"
)

// HandlePresence returns the live count and every joined user's last known position.
func HandlePresence(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users := deps.Presence.Snapshot()
		resp.RespondSuccess(w, r, map[string]any{
			"count":       len(users),
			"connections": deps.Presence.Connections(),
			"users":       users,
		})
	}
}
