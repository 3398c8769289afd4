package game

import "errors"

var (
	// construction
	ErrVoidFund           = errors.New("game must be funded with a non-zero amount")
	ErrInvalidPlayerCount = errors.New("game needs at least 2 players")

	// admission
	ErrGameClosed                  = errors.New("game is closed")
	ErrInvalidETHAmount            = errors.New("paid amount must equal the entrance fee")
	ErrInvalidGuessNumber          = errors.New("guess number is invalid")
	ErrPlayerAlreadyGuessed        = errors.New("player has already guessed")
	ErrNumberAlreadyGuessed        = errors.New("number has already been guessed")
	ErrNumberOfPlayersLimitReached = errors.New("number of players limit reached")

	// settlement
	ErrInvalidNonce     = errors.New("nonce does not match the commitment")
	ErrNotEnoughPlayers = errors.New("not enough players to reveal")
)

var codes = map[error]string{
	ErrVoidFund:                    "VoidFund",
	ErrInvalidPlayerCount:          "InvalidPlayerCount",
	ErrGameClosed:                  "GameClosed",
	ErrInvalidETHAmount:            "InvalidETHAmount",
	ErrInvalidGuessNumber:          "InvalidGuessNumber",
	ErrPlayerAlreadyGuessed:        "PlayerAlreadyGuessed",
	ErrNumberAlreadyGuessed:        "NumberAlreadyGuessed",
	ErrNumberOfPlayersLimitReached: "NumberOfPlayersLimitReached",
	ErrInvalidNonce:                "InvalidNonce",
	ErrNotEnoughPlayers:            "NotEnoughPlayers",
}

// Code returns the stable error kind for an engine rule violation, or "" when
// err is not one.
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return ""
}

// IsRuleViolation reports whether err was produced by one of the engine checks
// rather than by the bank or storage.
func IsRuleViolation(err error) bool {
	return Code(err) != ""
}
