package domain

import "time"

// AuditLog records an action worth keeping outside of the application log.
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	Address   string                 `db:"address" json:"address"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// AuditFilter narrows an audit query; empty fields match everything.
type AuditFilter struct {
	Address  string
	Category string
}

const (
	AuditCategoryAuth    = "auth"
	AuditCategoryGame    = "game"
	AuditCategoryBalance = "balance"
	AuditCategoryAdmin   = "admin"
)

// IsAuditCategory reports whether c is one of the known categories.
func IsAuditCategory(c string) bool {
	switch c {
	case AuditCategoryAuth, AuditCategoryGame, AuditCategoryBalance, AuditCategoryAdmin:
		return true
	}
	return false
}

const (
	AuditActionLogin = "login"

	AuditActionGameCreate = "game_create"
	AuditActionGameGuess  = "game_guess"
	AuditActionGameReveal = "game_reveal"

	AuditActionAdminCredit = "admin_credit"
)
