package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/foresafe/foresafe/internal/auth"
)

// HandleWebSocket upgrades an authenticated admin request to a feed
// subscription. originPatterns lists hosts allowed in cross-origin upgrades;
// same-origin requests are always accepted.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err)
			return
		}

		adminID := auth.AdminID(r.Context())
		logger.Debug("feed subscribed", "admin_id", adminID, "clients", hub.ClientCount()+1)
		NewClient(hub, conn, logger.With("admin_id", adminID)).Run(r.Context())
	}
}
