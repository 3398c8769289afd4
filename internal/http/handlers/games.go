package handlers

import (
	"net/http"
	"strconv"

	"guess_game/internal/domain"
	"guess_game/internal/game"
	"guess_game/internal/http/middleware"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type createGameRequest struct {
	NonceHash    string `json:"nonce_hash" binding:"required"`
	NonceNumHash string `json:"nonce_num_hash" binding:"required"`
	NumOfPlayers int    `json:"num_of_players"`
	Fund         string `json:"fund" binding:"required"`
}

type guessRequest struct {
	Number *int64 `json:"number" binding:"required"`
	Value  string `json:"value" binding:"required"`
}

type revealRequest struct {
	Nonce  string `json:"nonce"`
	Number *int64 `json:"number" binding:"required"`
}

// CreateGame hosts a new game funded from the caller's balance.
func (h *Handler) CreateGame(c *gin.Context) {
	host, _ := middleware.Address(c)

	var req createGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	nonceHash, ok := parseHash(req.NonceHash)
	if !ok {
		badRequest(c, "nonce_hash must be a 32-byte hex digest")
		return
	}
	nonceNumHash, ok := parseHash(req.NonceNumHash)
	if !ok {
		badRequest(c, "nonce_num_hash must be a 32-byte hex digest")
		return
	}
	fund, err := domain.ParseWei(req.Fund)
	if err != nil {
		writeError(c, err)
		return
	}

	v, err := h.Games.CreateGame(c.Request.Context(), host, game.Params{
		NonceCommitment:       nonceHash,
		NonceNumberCommitment: nonceNumHash,
		RequiredPlayers:       req.NumOfPlayers,
	}, fund)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, v)
}

func (h *Handler) ListGames(c *gin.Context) {
	status := c.Query("status")
	if status != "" && status != domain.GameStatusOpen && status != domain.GameStatusClosed {
		badRequest(c, "status must be open or closed")
		return
	}

	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxListLimit)
	}

	games, err := h.Games.List(c.Request.Context(), status, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"games": games})
}

func (h *Handler) GetGame(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	v, err := h.Games.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) GuessNumber(c *gin.Context) {
	id, ok := parseGameID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		badRequest(c, "invalid index")
		return
	}

	n, err := h.Games.GuessNumber(c.Request.Context(), id, index)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"index": index, "number": n})
}

func (h *Handler) SubmitGuess(c *gin.Context) {
	player, _ := middleware.Address(c)
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	var req guessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	paid, err := domain.ParseWei(req.Value)
	if err != nil {
		writeError(c, err)
		return
	}

	v, err := h.Games.SubmitGuess(c.Request.Context(), id, player, *req.Number, paid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) Reveal(c *gin.Context) {
	caller, _ := middleware.Address(c)
	id, ok := parseGameID(c)
	if !ok {
		return
	}

	var req revealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	v, err := h.Games.Reveal(c.Request.Context(), id, caller, req.Nonce, *req.Number)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func parseHash(s string) (common.Hash, bool) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, false
	}
	return common.BytesToHash(b), true
}
