package services

import (
	"context"
	"sync"
	"time"

	"docsign/internal/repository"

	"go.uber.org/zap"
)

// OtpCleanupService periodically purges expired, never-used one-time codes.
// Credentials self-cancel via expiry; this only keeps the table from growing.
type OtpCleanupService struct {
	store    repository.Store
	logger   *zap.Logger
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	stopOnce sync.Once
}

func NewOtpCleanupService(store repository.Store, logger *zap.Logger, interval time.Duration) *OtpCleanupService {
	return &OtpCleanupService{
		store:    store,
		logger:   logger.With(zap.String("service", "otp_cleanup")),
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (s *OtpCleanupService) Start() {
	s.ticker = time.NewTicker(s.interval)
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-s.ticker.C:
				s.purge()
			}
		}
	}()
	s.logger.Info("otp cleanup service started")
}

// Stop is idempotent and safe to call even if Start never ran.
func (s *OtpCleanupService) Stop() {
	s.stopOnce.Do(func() {
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.done)
		s.logger.Info("otp cleanup service stopped")
	})
}

func (s *OtpCleanupService) purge() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dropped, err := s.store.Otps().DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("failed to purge expired otps", zap.Error(err))
		return
	}
	if dropped > 0 {
		s.logger.Info("purged expired otps", zap.Int64("count", dropped))
	}
}
