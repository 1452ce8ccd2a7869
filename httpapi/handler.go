// Package httpapi exposes the sale engine over HTTP: the read-only
// query surface, the purchase entry point, and the owner-gated
// administrative surface. Each sale error kind maps to its own status
// code so callers can tell "approve more funds" from "sale closed"
// from "too few units remain".
package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/curvesale-xyz/go-curvesale/extledger"
	"github.com/curvesale-xyz/go-curvesale/sale"
)

// OwnerHeader carries the caller identity for administrative requests.
const OwnerHeader = "X-Sale-Owner"

// Handler holds the sale ledger and implements the HTTP handlers.
type Handler struct {
	ledger *sale.Ledger
	logger *zap.Logger
}

// NewHandler creates a handler for the given ledger.
func NewHandler(ledger *sale.Ledger, logger *zap.Logger) *Handler {
	return &Handler{ledger: ledger, logger: logger}
}

// Register binds the sale endpoints on the given Gin engine.
func (h *Handler) Register(e *gin.Engine) {
	e.GET("/sale", h.handleSale)
	e.GET("/quote", h.handleQuote)
	e.POST("/purchases", h.handlePurchase)
	e.PATCH("/sale", h.handleAdmin)
	e.POST("/withdrawals", h.handleWithdraw)
}

// handleSale returns the sale status snapshot.
func (h *Handler) handleSale(c *gin.Context) {
	params := h.ledger.Curve()
	c.JSON(http.StatusOK, gin.H{
		"status":            h.ledger.Status().String(),
		"units_sold":        h.ledger.UnitsSold(),
		"remaining":         h.ledger.Remaining(),
		"current_price":     h.ledger.CurrentPrice().Dec(),
		"base_price":        params.BasePrice,
		"total_supply":      params.TotalSupply,
		"smoothing_factor":  params.SmoothingFactor,
		"fee_bps":           h.ledger.FeeBps(),
		"transfers_allowed": h.ledger.TransfersAllowed(),
	})
}

// handleQuote prices a prospective batch without side effects.
func (h *Handler) handleQuote(c *gin.Context) {
	var req struct {
		Quantity uint64 `form:"quantity"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid quantity"})
		return
	}

	cost, fee, err := h.ledger.Quote(req.Quantity)
	if err != nil {
		h.rejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"quantity":     req.Quantity,
		"token_cost":   cost.Dec(),
		"platform_fee": fee.Dec(),
	})
}

// handlePurchase executes a purchase for the posted buyer.
func (h *Handler) handlePurchase(c *gin.Context) {
	var req struct {
		Buyer    string `json:"buyer"`
		Quantity uint64 `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Buyer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "buyer is required"})
		return
	}

	rec, err := h.ledger.Purchase(req.Buyer, req.Quantity)
	if err != nil {
		h.logger.Warn("purchase rejected",
			zap.String("buyer", req.Buyer),
			zap.Uint64("quantity", req.Quantity),
			zap.Error(err),
		)
		h.rejection(c, err)
		return
	}

	h.logger.Info("purchase completed",
		zap.String("record_id", rec.ID),
		zap.String("buyer", rec.Buyer),
		zap.Uint64("units", rec.Units),
		zap.String("token_cost", rec.TokenCost.Dec()),
		zap.Uint64("units_sold", rec.UnitsSold),
	)
	c.JSON(http.StatusCreated, gin.H{
		"id":           rec.ID,
		"buyer":        rec.Buyer,
		"units":        rec.Units,
		"token_cost":   rec.TokenCost.Dec(),
		"platform_fee": rec.PlatformFee.Dec(),
		"units_sold":   rec.UnitsSold,
		"timestamp":    rec.Timestamp,
	})
}

// handleAdmin applies an administrative transition. The caller
// identity comes from the owner header.
func (h *Handler) handleAdmin(c *gin.Context) {
	var req struct {
		Action       string `json:"action"`
		FeeRecipient string `json:"fee_recipient"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	caller := c.GetHeader(OwnerHeader)

	var err error
	switch req.Action {
	case "pause":
		err = h.ledger.Pause(caller)
	case "resume":
		err = h.ledger.Resume(caller)
	case "complete":
		err = h.ledger.CompleteManually(caller)
	case "set_fee_recipient":
		err = h.ledger.SetFeeRecipient(caller, req.FeeRecipient)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
		return
	}
	if err != nil {
		h.logger.Warn("admin action rejected", zap.String("action", req.Action), zap.Error(err))
		h.rejection(c, err)
		return
	}

	h.logger.Info("admin action applied", zap.String("action", req.Action))
	c.JSON(http.StatusOK, gin.H{"status": h.ledger.Status().String()})
}

// handleWithdraw moves custody funds to the owner after completion.
func (h *Handler) handleWithdraw(c *gin.Context) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	if err := h.ledger.Withdraw(c.GetHeader(OwnerHeader), amount); err != nil {
		h.rejection(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawn": amount.Dec()})
}

// parseAmount decodes a decimal amount string.
func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("httpapi: amount is required")
	}
	return uint256.FromDecimal(s)
}

// rejection maps sale error kinds onto HTTP status codes.
func (h *Handler) rejection(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sale.ErrInvalidQuantity):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrInsufficientAuthorization),
		errors.Is(err, sale.ErrInsufficientFunds):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrSaleNotActive),
		errors.Is(err, sale.ErrSupplyExceeded),
		errors.Is(err, sale.ErrInvalidTransition),
		errors.Is(err, extledger.ErrInsufficientCustody):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
