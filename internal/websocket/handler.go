package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/model"
)

type MemberLookup interface {
	GetByID(ctx context.Context, id int64) (*model.Member, error)
}

// HandleWebSocket upgrades the request and runs it as a Hub client. The
// connection follows the member named by the "member" query parameter, or
// the request identity when there is none.
func HandleWebSocket(hub *Hub, members MemberLookup, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		memberID := auth.MemberID(r.Context())
		if v := r.URL.Query().Get("member"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid member", http.StatusBadRequest)
				return
			}
			m, err := members.GetByID(r.Context(), id)
			if err != nil {
				logger.Error("websocket member lookup", "error", err, "member_id", id)
				http.Error(w, "failed to look up member", http.StatusInternalServerError)
				return
			}
			if m == nil {
				http.Error(w, "unknown member", http.StatusNotFound)
				return
			}
			memberID = id
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN, any origin
		})
		if err != nil {
			logger.Warn("websocket accept", "error", err)
			return
		}

		NewClient(hub, conn, memberID, members).Run(r.Context())
	}
}
