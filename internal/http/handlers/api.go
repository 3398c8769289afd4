package handlers

import (
	"context"
	"errors"
	"math/big"
	"net/http"

	"guess_game/internal/auth"
	"guess_game/internal/domain"
	"guess_game/internal/game"
	"guess_game/internal/http/middleware"
	"guess_game/internal/logger"
	"guess_game/internal/service"
	"guess_game/internal/ws"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type GameAPI interface {
	CreateGame(ctx context.Context, host common.Address, params game.Params, funding *big.Int) (*service.GameView, error)
	SubmitGuess(ctx context.Context, id uuid.UUID, player common.Address, number int64, paid *big.Int) (*service.GameView, error)
	Reveal(ctx context.Context, id uuid.UUID, caller common.Address, nonce string, number int64) (*service.GameView, error)
	Get(ctx context.Context, id uuid.UUID) (*service.GameView, error)
	List(ctx context.Context, status string, limit int) ([]service.GameView, error)
	GuessNumber(ctx context.Context, id uuid.UUID, index int) (int64, error)
}

type BalanceAPI interface {
	GetBalance(ctx context.Context, addr common.Address) (*big.Int, error)
	Credit(ctx context.Context, addr common.Address, amount *big.Int, meta map[string]interface{}) (*big.Int, error)
	History(ctx context.Context, addr common.Address, limit int) ([]*domain.Transaction, error)
}

type AuthAPI interface {
	middleware.TokenVerifier
	Challenge(addr common.Address) (string, error)
	Login(addr common.Address, signature string) (string, error)
	IsAdmin(addr common.Address) bool
}

type AuditAPI interface {
	LogLogin(ctx context.Context, addr common.Address, ip, userAgent string)
	LogAdminCredit(ctx context.Context, admin, target common.Address, amount *big.Int, via string)
}

// Handler serves the JSON API. Audit, Hub and Limiter are optional.
type Handler struct {
	Games    GameAPI
	Balances BalanceAPI
	Auth     AuthAPI
	Audit    AuditAPI
	Hub      *ws.Hub
	Limiter  middleware.Limiter

	AllowedOrigin string
	Version       string
}

func RegisterRoutes(r *gin.Engine, h *Handler) {
	r.Use(middleware.Metrics(), middleware.CORS(h.AllowedOrigin))

	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.GET("/games", h.ListGames)
	api.GET("/games/:id", h.GetGame)
	api.GET("/games/:id/guesses/:index", h.GuessNumber)
	if h.Hub != nil {
		api.GET("/games/:id/ws", ws.Handler(h.Hub, h.AllowedOrigin, h.gameExists))
	}

	authGroup := api.Group("/auth")
	if h.Limiter != nil {
		authGroup.Use(middleware.RateLimit(h.Limiter))
	}
	authGroup.POST("/challenge", h.Challenge)
	authGroup.POST("/login", h.Login)

	private := api.Group("", middleware.Auth(h.Auth))
	if h.Limiter != nil {
		private.Use(middleware.RateLimit(h.Limiter))
	}
	private.GET("/me", h.Me)
	private.POST("/games", h.CreateGame)
	private.POST("/games/:id/guesses", h.SubmitGuess)
	private.POST("/games/:id/reveal", h.Reveal)
	private.POST("/admin/credit", middleware.AdminOnly(h.Auth.IsAdmin), h.AdminCredit)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.Version})
}

func (h *Handler) gameExists(c *gin.Context, id uuid.UUID) bool {
	_, err := h.Games.Get(c.Request.Context(), id)
	return err == nil
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "BadRequest", "message": msg})
}

// writeError maps service and engine errors onto status codes. Engine rule
// violations keep their code so clients can tell them apart.
func writeError(c *gin.Context, err error) {
	if code := game.Code(err); code != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": code, "message": err.Error()})
		return
	}

	switch {
	case errors.Is(err, service.ErrGameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "message": "game not found"})
	case errors.Is(err, game.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InsufficientFunds", "message": "insufficient balance"})
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "InvalidAmount", "message": err.Error()})
	case errors.Is(err, game.ErrGuessOutOfBounds):
		c.JSON(http.StatusNotFound, gin.H{"error": "NotFound", "message": err.Error()})
	case errors.Is(err, service.ErrNoChallenge), errors.Is(err, auth.ErrBadSignature):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "message": err.Error()})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal", "message": "internal error"})
	}
}

func parseAddress(s string) (common.Address, bool) {
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

func parseGameID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid game id")
		return uuid.Nil, false
	}
	return id, true
}
