package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ResetTokenPurgeJob is the scheduler name of the reset token cleanup.
const ResetTokenPurgeJob = "purge-expired-reset-tokens"

type resetTokenPurger interface {
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// MaintenanceService holds housekeeping tasks run by the job scheduler.
type MaintenanceService struct {
	users  resetTokenPurger
	logger *zap.Logger
	now    func() time.Time
}

// NewMaintenanceService constructs a MaintenanceService.
func NewMaintenanceService(users resetTokenPurger, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{users: users, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// PurgeExpiredResetTokens clears password reset tokens past their expiry.
func (s *MaintenanceService) PurgeExpiredResetTokens(ctx context.Context) error {
	purged, err := s.users.PurgeExpiredResetTokens(ctx, s.now())
	if err != nil {
		return err
	}
	if purged > 0 {
		s.logger.Info("expired reset tokens purged", zap.Int64("count", purged))
	}
	return nil
}
