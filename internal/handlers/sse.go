package handlers

import (
	"github.com/dimitrije/tokenhub-api/internal/ids"
	"github.com/dimitrije/tokenhub-api/internal/middleware"
	"github.com/dimitrije/tokenhub-api/internal/sse"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type SSEHandler struct {
	hub          SSEHubInterface
	tokenService TokenServiceInterface
}

func NewSSEHandler(hub SSEHubInterface, tokenService TokenServiceInterface) *SSEHandler {
	return &SSEHandler{
		hub:          hub,
		tokenService: tokenService,
	}
}

// Connect streams a token's supply and transfer events until the client goes
// away or the hub shuts down.
func (h *SSEHandler) Connect(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	if _, err := h.tokenService.GetByID(c.Request.Context(), tokenID); err != nil {
		respondError(c, err, "failed to load token")
		return
	}

	client := &sse.Client{
		ID:      ids.New(),
		UserID:  userID,
		TokenID: tokenID,
		Send:    make(chan []byte, 64),
	}

	if !h.hub.Register(client) {
		c.InternalServerError("event stream unavailable")
		return
	}
	defer h.hub.Unregister(client)

	sseCtx := c.SSE()
	if err := sseCtx.SendJSON(map[string]string{
		"type":      "connected",
		"client_id": client.ID,
		"token_id":  tokenID.String(),
	}, "system", ""); err != nil {
		return
	}

	done := c.Request.Context().Done()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := sseCtx.Send(string(msg), "message", ""); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
