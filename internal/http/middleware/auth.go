package middleware

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

const addressKey = "address"

// TokenVerifier turns a bearer token into the wallet it was issued to.
type TokenVerifier interface {
	Verify(token string) (common.Address, error)
}

func Auth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "missing bearer token"})
			return
		}

		addr, err := v.Verify(strings.TrimPrefix(h, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": "invalid token"})
			return
		}

		c.Set(addressKey, addr)
		c.Next()
	}
}

// AdminOnly must run after Auth.
func AdminOnly(isAdmin func(common.Address) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, ok := Address(c)
		if !ok || !isAdmin(addr) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden", "message": "admin only"})
			return
		}
		c.Next()
	}
}

// Address returns the authenticated wallet.
func Address(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(addressKey)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}
