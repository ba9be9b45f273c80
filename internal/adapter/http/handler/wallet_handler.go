package handler

import (
	"context"
	"errors"
	"strings"

	"wallet-service/internal/adapter/http/dto"
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"
	"wallet-service/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles the /api/wallets endpoints.
type WalletHandler struct {
	wallets  ports.WalletService
	balances ports.BalanceService
	contacts ports.ContactService
	currency string
}

// NewWalletHandler creates a new WalletHandler. currency is the only currency
// accepted on create.
func NewWalletHandler(wallets ports.WalletService, balances ports.BalanceService, contacts ports.ContactService, currency string) *WalletHandler {
	return &WalletHandler{
		wallets:  wallets,
		balances: balances,
		contacts: contacts,
		currency: currency,
	}
}

// Create handles POST /api/wallets/create.
func (h *WalletHandler) Create(c *gin.Context) {
	var req dto.CreateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	if req.Currency != "" && !strings.EqualFold(req.Currency, h.currency) {
		response.Error(c, apperror.ValidationFields(map[string]string{"currency": "Invalid currency"}))
		return
	}

	wallet, err := h.wallets.Create(c.Request.Context(), ports.CreateWalletInput{
		UserID:    req.UserID,
		UserName:  req.UserName,
		UserImage: req.UserImage,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, wallet.ID.String())
	response.Created(c, dto.NewWalletResponse(wallet))
}

// Get handles GET /api/wallets/:walletId.
func (h *WalletHandler) Get(c *gin.Context) {
	id, ok := parseWalletID(c, c.Param("walletId"))
	if !ok {
		return
	}

	wallet, err := h.wallets.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// GetByUser handles GET /api/wallets/user/:userId.
func (h *WalletHandler) GetByUser(c *gin.Context) {
	wallet, err := h.wallets.GetByUser(c.Request.Context(), c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewWalletResponse(wallet))
}

// Search handles GET /api/wallets/search/:query.
func (h *WalletHandler) Search(c *gin.Context) {
	results, err := h.wallets.Search(c.Request.Context(), c.Param("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, results)
}

// Update handles POST /api/wallets/update (credit or debit by wallet id).
func (h *WalletHandler) Update(c *gin.Context) {
	var req dto.UpdateWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	id, ok := parseWalletID(c, req.WalletID)
	if !ok {
		return
	}

	amount, err := domain.ToMinorUnits(*req.Amount)
	if err != nil {
		response.Error(c, amountError(err))
		return
	}

	wallet, err := h.balances.ApplyAdjustment(c.Request.Context(), id, amount, domain.Direction(req.TransactionType))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, wallet.ID.String())
	response.OK(c, dto.NewWalletResponse(wallet))
}

// UpdateStatus handles PATCH /api/wallets/updateStatus.
func (h *WalletHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	id, ok := parseWalletID(c, req.WalletID)
	if !ok {
		return
	}

	wallet, err := h.wallets.UpdateStatus(c.Request.Context(), id, domain.WalletStatus(req.Status))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, wallet.ID.String())
	response.OK(c, dto.NewWalletResponse(wallet))
}

// AddContact handles PATCH /api/wallets/add-contact.
func (h *WalletHandler) AddContact(c *gin.Context) {
	h.changeContact(c, h.contacts.AddContact)
}

// RemoveContact handles PATCH /api/wallets/remove-contact.
func (h *WalletHandler) RemoveContact(c *gin.Context) {
	h.changeContact(c, h.contacts.RemoveContact)
}

type contactOp func(ctx context.Context, walletID uuid.UUID, contactCode string) (*domain.Wallet, error)

func (h *WalletHandler) changeContact(c *gin.Context, op contactOp) {
	var req dto.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, dto.BindingError(err))
		return
	}
	dto.SanitizeStruct(&req)

	id, ok := parseWalletID(c, req.WalletID)
	if !ok {
		return
	}

	wallet, err := op(c.Request.Context(), id, req.ContactCode)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxResourceID, wallet.ID.String())
	response.OK(c, dto.NewWalletResponse(wallet))
}

func parseWalletID(c *gin.Context, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(c, apperror.ValidationFields(map[string]string{"wallet_id": "Wallet id should be a valid id"}))
		return uuid.Nil, false
	}
	return id, true
}

func amountError(err error) *apperror.AppError {
	msg := "Invalid amount"
	switch {
	case errors.Is(err, domain.ErrNonPositiveAmount):
		msg = "Amount should be greater than 0"
	case errors.Is(err, domain.ErrAmountPrecision):
		msg = "Amount may have at most 2 decimal places"
	case errors.Is(err, domain.ErrAmountOverflow):
		msg = "Amount is too large"
	}
	return apperror.ValidationFields(map[string]string{"amount": msg})
}
