package handlers

import (
	"net/http"

	"guess_game/internal/domain"
	"guess_game/internal/http/middleware"

	"github.com/gin-gonic/gin"
)

const historyLimit = 100

// Me returns the caller's balance and latest ledger movements.
func (h *Handler) Me(c *gin.Context) {
	addr, _ := middleware.Address(c)
	ctx := c.Request.Context()

	balance, err := h.Balances.GetBalance(ctx, addr)
	if err != nil {
		writeError(c, err)
		return
	}

	transactions, err := h.Balances.History(ctx, addr, historyLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	history := make([]gin.H, 0, len(transactions))
	for _, tx := range transactions {
		item := gin.H{
			"type":   tx.Type,
			"amount": tx.Amount.String(),
			"meta":   tx.Meta,
			"date":   tx.CreatedAt,
		}
		if tx.GameID != nil {
			item["game_id"] = tx.GameID.String()
		}
		history = append(history, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"address":     addr.Hex(),
		"balance":     balance.String(),
		"balance_eth": domain.FormatEther(balance),
		"history":     history,
	})
}

// AdminCredit adds wei to an account. Admin only.
func (h *Handler) AdminCredit(c *gin.Context) {
	admin, _ := middleware.Address(c)

	var req struct {
		Address string `json:"address" binding:"required"`
		Amount  string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	target, ok := parseAddress(req.Address)
	if !ok {
		badRequest(c, "invalid address")
		return
	}
	amount, err := domain.ParseWei(req.Amount)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	balance, err := h.Balances.Credit(ctx, target, amount, map[string]interface{}{"admin": admin.Hex()})
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Audit != nil {
		h.Audit.LogAdminCredit(ctx, admin, target, amount, "http")
	}

	c.JSON(http.StatusOK, gin.H{"address": target.Hex(), "balance": balance.String()})
}
