package service

import (
	"context"
	"math/big"

	"guess_game/internal/domain"
	"guess_game/internal/logger"
	"guess_game/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditService struct {
	repo *repository.AuditRepository
}

func NewAuditService(db *pgxpool.Pool) *AuditService {
	return &AuditService{
		repo: repository.NewAuditRepository(db),
	}
}

// Log writes an audit row. Failures are logged, never returned.
func (s *AuditService) Log(ctx context.Context, address, action, category string, details map[string]interface{}) {
	entry := &domain.AuditLog{
		Address:  address,
		Action:   action,
		Category: category,
		Details:  details,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to write audit log", "error", err, "action", action, "address", address)
	}
}

// LogWithRequest also keeps the client ip and user agent.
func (s *AuditService) LogWithRequest(ctx context.Context, address, action, category, ip, userAgent string, details map[string]interface{}) {
	entry := &domain.AuditLog{
		Address:   address,
		Action:    action,
		Category:  category,
		Details:   details,
		IP:        ip,
		UserAgent: userAgent,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		logger.Error("failed to write audit log", "error", err, "action", action, "address", address)
	}
}

func (s *AuditService) LogLogin(ctx context.Context, addr common.Address, ip, userAgent string) {
	s.LogWithRequest(ctx, addr.Hex(), domain.AuditActionLogin, domain.AuditCategoryAuth, ip, userAgent, nil)
}

// LogAdminCredit is recorded against the credited address.
func (s *AuditService) LogAdminCredit(ctx context.Context, admin, target common.Address, amount *big.Int, via string) {
	s.Log(ctx, target.Hex(), domain.AuditActionAdminCredit, domain.AuditCategoryAdmin, map[string]interface{}{
		"admin":  admin.Hex(),
		"amount": amount.String(),
		"via":    via,
	})
}

const (
	defaultAuditLimit = 20
	maxAuditLimit     = 100
)

// Recent returns the newest audit entries matching f.
func (s *AuditService) Recent(ctx context.Context, f domain.AuditFilter, limit int) ([]*domain.AuditLog, error) {
	if limit <= 0 || limit > maxAuditLimit {
		limit = defaultAuditLimit
	}
	return s.repo.List(ctx, f, limit)
}
