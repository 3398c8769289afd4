package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Challenge returns the message the wallet has to personal_sign.
func (h *Handler) Challenge(c *gin.Context) {
	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok {
		badRequest(c, "invalid address")
		return
	}

	msg, err := h.Auth.Challenge(addr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Address   string `json:"address" binding:"required"`
		Signature string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	addr, ok := parseAddress(req.Address)
	if !ok {
		badRequest(c, "invalid address")
		return
	}

	token, err := h.Auth.Login(addr, req.Signature)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Audit != nil {
		h.Audit.LogLogin(c.Request.Context(), addr, c.ClientIP(), c.Request.UserAgent())
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "address": addr.Hex(), "admin": h.Auth.IsAdmin(addr)})
}
