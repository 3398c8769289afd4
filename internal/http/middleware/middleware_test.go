package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier map[string]common.Address

func (s stubVerifier) Verify(token string) (common.Address, error) {
	if a, ok := s[token]; ok {
		return a, nil
	}
	return common.Address{}, errors.New("bad token")
}

var admin = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		addr, _ := Address(c)
		c.JSON(http.StatusOK, gin.H{"address": addr.Hex()})
	})
	r.GET("/x", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	user := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	v := stubVerifier{"admin": admin, "user": user}
	isAdmin := func(a common.Address) bool { return a == admin }

	r := newRouter(Auth(v))
	assert.Equal(t, http.StatusUnauthorized, get(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "forged").Code)
	w := get(r, "user")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), user.Hex())

	ra := newRouter(Auth(v), AdminOnly(isAdmin))
	assert.Equal(t, http.StatusForbidden, get(ra, "user").Code)
	assert.Equal(t, http.StatusOK, get(ra, "admin").Code)
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter(2)
	ctx := context.Background()
	for i, want := range []bool{true, true, false, false} {
		ok, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "hit %d", i+1)
	}
	ok, err := l.Allow(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	r := newRouter(Auth(stubVerifier{"admin": admin}), RateLimit(NewMemoryLimiter(1)))
	assert.Equal(t, http.StatusOK, get(r, "admin").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "admin").Code)

	open := newRouter(RateLimit(failingLimiter{}))
	assert.Equal(t, http.StatusOK, get(open, "").Code)
}
