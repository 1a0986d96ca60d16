package handler

import (
	"errors"
	"net/http"
	"strconv"

	"loyalcrm/internal/domain"
	"loyalcrm/internal/middleware"
	"loyalcrm/internal/service"

	"github.com/gin-gonic/gin"
)

type LoyaltyHandler struct {
	svc *service.LedgerService
}

func NewLoyaltyHandler(svc *service.LedgerService) *LoyaltyHandler {
	return &LoyaltyHandler{svc: svc}
}

// GetProfile returns the customer's loyalty profile, enrolling them on
// first request.
// GET /api/loyalty/:id
func (h *LoyaltyHandler) GetProfile(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if !authorizeAccount(c, accountID) {
		return
	}
	p, err := h.svc.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"account_id":      p.Snapshot.AccountID,
		"balance":         p.Snapshot.Balance,
		"lifetime_points": p.Snapshot.LifetimePoints,
		"tier":            p.Snapshot.Tier,
		"referral_code":   p.ReferralCode,
	})
}

// Redeem exchanges points for discount value.
// POST /api/loyalty/:id/redeem
func (h *LoyaltyHandler) Redeem(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if !authorizeAccount(c, accountID) {
		return
	}
	var req struct {
		PointsToRedeem int64 `json:"points_to_redeem" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid points_to_redeem"})
		return
	}
	res, err := h.svc.Redeem(c.Request.Context(), accountID, req.PointsToRedeem)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":            "Redemption successful",
		"new_points_balance": res.Snapshot.Balance,
		"discount_value":     res.DiscountValue,
		"tier":               res.Snapshot.Tier,
	})
}

// UseReferral applies a referral code for the customer in the path; the
// code owner and the customer both receive a bonus.
// POST /api/loyalty/:id/use-referral
func (h *LoyaltyHandler) UseReferral(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if !authorizeAccount(c, accountID) {
		return
	}
	var req struct {
		ReferralCode string `json:"referral_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "referral code required"})
		return
	}
	res, err := h.svc.ApplyReferral(c.Request.Context(), accountID, req.ReferralCode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Referral successful",
		"bonus_awarded": res.BonusAwarded,
		"new_balance":   res.Snapshot.Balance,
		"tier":          res.Snapshot.Tier,
	})
}

// SimulatePurchase records a purchase for a customer and accrues points.
// POST /api/simulate-purchase
func (h *LoyaltyHandler) SimulatePurchase(c *gin.Context) {
	var req struct {
		CustomerID uint    `json:"customer_id" binding:"required"`
		Amount     float64 `json:"amount" binding:"required"`
		Reference  string  `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "customer_id and amount are required"})
		return
	}
	if !authorizeAccount(c, req.CustomerID) {
		return
	}
	res, err := h.svc.RecordPurchase(c.Request.Context(), req.CustomerID, req.Amount, req.Reference)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"points_earned": res.PointsEarned,
		"new_balance":   res.Snapshot.Balance,
		"tier":          res.Snapshot.Tier,
	})
}

// GetTransactions lists the customer's ledger history, newest first.
// GET /api/loyalty/:id/transactions
func (h *LoyaltyHandler) GetTransactions(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if !authorizeAccount(c, accountID) {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	entries, err := h.svc.History(c.Request.Context(), accountID, limit, offset)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries, "total": len(entries)})
}

// Adjust applies a manual points correction. Admin only.
// POST /api/loyalty/:id/adjust
func (h *LoyaltyHandler) Adjust(c *gin.Context) {
	accountID, ok := parseAccountID(c)
	if !ok {
		return
	}
	if !authorizeAccount(c, accountID) {
		return
	}
	var req struct {
		Delta     int64  `json:"delta" binding:"required"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "delta is required"})
		return
	}
	snap, err := h.svc.Adjust(c.Request.Context(), accountID, req.Delta, req.Reference)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"new_balance":     snap.Balance,
		"lifetime_points": snap.LifetimePoints,
		"tier":            snap.Tier,
	})
}

// authorizeAccount rejects customers acting on accounts other than their
// own. Admin tokens may act on any account.
func authorizeAccount(c *gin.Context, accountID uint) bool {
	if middleware.GetRole(c) == domain.RoleAdmin || middleware.GetAccountID(c) == accountID {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	return false
}

func parseAccountID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid customer id"})
		return 0, false
	}
	return uint(id), true
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientPoints),
		errors.Is(err, domain.ErrSelfReferral):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidReferralCode),
		errors.Is(err, domain.ErrAccountNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrReferralAlreadyUsed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrBusy):
		return http.StatusTooManyRequests
	default:
		return http.StatusServiceUnavailable
	}
}
