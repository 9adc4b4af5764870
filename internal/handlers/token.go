package handlers

import (
	"github.com/dimitrije/tokenhub-api/internal/ledger"
	"github.com/dimitrije/tokenhub-api/internal/middleware"
	"github.com/dimitrije/tokenhub-api/internal/models"
	"github.com/dimitrije/tokenhub-api/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

type TokenHandler struct {
	tokenService    TokenServiceInterface
	supplyService   SupplyServiceInterface
	transferService TransferServiceInterface
}

func NewTokenHandler(tokenService TokenServiceInterface, supplyService SupplyServiceInterface, transferService TransferServiceInterface) *TokenHandler {
	return &TokenHandler{
		tokenService:    tokenService,
		supplyService:   supplyService,
		transferService: transferService,
	}
}

func tokenIDParam(c *drift.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid token id")
		return uuid.Nil, false
	}
	return id, true
}

// List returns active tokens, or the caller's own tokens with ?owned=true.
func (h *TokenHandler) List(c *drift.Context) {
	var (
		tokens []models.Token
		err    error
	)
	if c.QueryParam("owned") == "true" {
		tokens, err = h.tokenService.ListOwned(c.Request.Context(), middleware.GetUserID(c))
	} else {
		tokens, err = h.tokenService.List(c.Request.Context())
	}
	if err != nil {
		respondError(c, err, "failed to list tokens")
		return
	}

	if tokens == nil {
		tokens = []models.Token{}
	}
	_ = c.JSON(200, tokens)
}

func (h *TokenHandler) Create(c *drift.Context) {
	var req dto.CreateTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	var supply int64
	if raw := req.InitialSupply.String(); raw != "" && raw != "0" {
		parsed, err := ledger.ParseAmount(raw)
		if err != nil {
			respondError(c, err, "failed to create token")
			return
		}
		supply = parsed
	}

	token, err := h.tokenService.Create(c.Request.Context(), middleware.GetUserID(c), req.Name, req.Symbol, supply)
	if err != nil {
		respondError(c, err, "failed to create token")
		return
	}

	_ = c.JSON(201, token)
}

func (h *TokenHandler) Get(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	token, err := h.tokenService.GetByID(c.Request.Context(), tokenID)
	if err != nil {
		respondError(c, err, "failed to load token")
		return
	}

	_ = c.JSON(200, token)
}

// Manage mints or burns supply. Action and amount are passed through as
// received so every malformed input is rejected by the same parser.
func (h *TokenHandler) Manage(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req dto.ManageSupplyRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	token, err := h.supplyService.Adjust(c.Request.Context(), tokenID, middleware.GetUserID(c), req.Action, req.Amount.String())
	if err != nil {
		respondError(c, err, "failed to adjust supply")
		return
	}

	_ = c.JSON(200, token)
}

func (h *TokenHandler) SetActive(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req dto.SetTokenActiveRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.IsActive == nil {
		c.BadRequest("is_active is required")
		return
	}

	token, err := h.tokenService.SetActive(c.Request.Context(), tokenID, middleware.GetUserID(c), *req.IsActive)
	if err != nil {
		respondError(c, err, "failed to update token")
		return
	}

	_ = c.JSON(200, token)
}

func (h *TokenHandler) ListPermissions(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	permissions, err := h.tokenService.ListPermissions(c.Request.Context(), tokenID, middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to list permissions")
		return
	}

	if permissions == nil {
		permissions = []models.Permission{}
	}
	_ = c.JSON(200, permissions)
}

func (h *TokenHandler) GrantPermission(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req dto.GrantPermissionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		c.BadRequest("user_id is required")
		return
	}

	canManage := true
	if req.CanManage != nil {
		canManage = *req.CanManage
	}

	permission, err := h.tokenService.GrantPermission(c.Request.Context(), tokenID, middleware.GetUserID(c), req.UserID, canManage)
	if err != nil {
		respondError(c, err, "failed to grant permission")
		return
	}

	_ = c.JSON(200, permission)
}

func (h *TokenHandler) RevokePermission(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	if err := h.tokenService.RevokePermission(c.Request.Context(), tokenID, middleware.GetUserID(c), userID); err != nil {
		respondError(c, err, "failed to revoke permission")
		return
	}

	_ = c.JSON(200, map[string]string{"message": "permission revoked"})
}

func (h *TokenHandler) AddFavorite(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	if err := h.tokenService.AddFavorite(c.Request.Context(), middleware.GetUserID(c), tokenID); err != nil {
		respondError(c, err, "failed to add favorite")
		return
	}

	_ = c.JSON(200, map[string]string{"message": "favorite added"})
}

func (h *TokenHandler) RemoveFavorite(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	if err := h.tokenService.RemoveFavorite(c.Request.Context(), middleware.GetUserID(c), tokenID); err != nil {
		respondError(c, err, "failed to remove favorite")
		return
	}

	_ = c.JSON(200, map[string]string{"message": "favorite removed"})
}

func (h *TokenHandler) ListFavorites(c *drift.Context) {
	tokens, err := h.tokenService.ListFavorites(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err, "failed to list favorites")
		return
	}

	if tokens == nil {
		tokens = []models.Token{}
	}
	_ = c.JSON(200, tokens)
}

func (h *TokenHandler) Transfer(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	tx, err := h.transferService.Record(c.Request.Context(), tokenID, middleware.GetUserID(c), req.ToAddress, req.Amount.String())
	if err != nil {
		respondError(c, err, "failed to record transfer")
		return
	}

	_ = c.JSON(201, tx)
}

func (h *TokenHandler) History(c *drift.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.tokenService.GetByID(ctx, tokenID); err != nil {
		respondError(c, err, "failed to load token")
		return
	}

	adjustments, err := h.supplyService.History(ctx, tokenID)
	if err != nil {
		respondError(c, err, "failed to load supply history")
		return
	}
	transfers, err := h.transferService.History(ctx, tokenID)
	if err != nil {
		respondError(c, err, "failed to load transfers")
		return
	}

	if adjustments == nil {
		adjustments = []models.SupplyAdjustment{}
	}
	if transfers == nil {
		transfers = []models.Transaction{}
	}
	_ = c.JSON(200, dto.TokenHistoryResponse{
		Adjustments: adjustments,
		Transfers:   transfers,
	})
}
