package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/logger"
	"cashback_platform/internal/store"
)

// RateService serves the active rate configuration. Reads go through the cache
// and fall back to the configured defaults when no row was ever saved.
type RateService struct {
	tx       store.TxRunner
	repo     store.RateStore
	cache    store.RateCache
	defaults domain.RateConfig
	audit    *AuditService
	log      *slog.Logger
}

// NewRateService builds the service. cache may be nil.
func NewRateService(tx store.TxRunner, repo store.RateStore, cache store.RateCache, defaults domain.RateConfig, audit *AuditService) *RateService {
	return &RateService{
		tx:       tx,
		repo:     repo,
		cache:    cache,
		defaults: defaults,
		audit:    audit,
		log:      logger.With("component", "rates"),
	}
}

// Current returns the last committed configuration. It never waits on writers.
func (s *RateService) Current(ctx context.Context) (domain.RateConfig, error) {
	if s.cache != nil {
		cfg, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn("rate cache read failed", "error", err)
		} else if cfg != nil {
			return *cfg, nil
		}
	}

	cfg, err := s.repo.GetRates(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.defaults, nil
	case err != nil:
		return domain.RateConfig{}, fmt.Errorf("load rates: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, *cfg); err != nil {
			s.log.Warn("rate cache write failed", "error", err)
		}
	}
	return *cfg, nil
}

// Update validates and stores a new configuration stamped with adminID.
func (s *RateService) Update(ctx context.Context, adminID int64, cfg domain.RateConfig) (domain.RateConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.RateConfig{}, err
	}
	cfg.PlatformFeeRate = cfg.PlatformFeeRate.Round(4)
	cfg.ClientCashbackRate = cfg.ClientCashbackRate.Round(4)
	cfg.ReferralBonusRate = cfg.ReferralBonusRate.Round(4)
	cfg.MerchantCommissionRate = cfg.MerchantCommissionRate.Round(4)
	cfg.WithdrawalFeeRate = cfg.WithdrawalFeeRate.Round(4)
	cfg.MinWithdrawal = domain.Round2(cfg.MinWithdrawal)
	cfg.UpdatedBy = adminID
	cfg.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	err := s.tx.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.SaveRates(ctx, cfg); err != nil {
			return fmt.Errorf("save rates: %w", err)
		}
		return enqueue(ctx, tx, domain.EventRatesUpdated, adminID, cfg)
	})
	if err != nil {
		return domain.RateConfig{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cfg); err != nil {
			s.log.Warn("rate cache write failed", "error", err)
			if err := s.cache.Invalidate(ctx); err != nil {
				s.log.Warn("rate cache invalidate failed", "error", err)
			}
		}
	}
	s.audit.LogAdminAction(ctx, adminID, domain.AuditActionRatesUpdate, map[string]interface{}{
		"platform_fee_rate":    cfg.PlatformFeeRate.String(),
		"client_cashback_rate": cfg.ClientCashbackRate.String(),
		"referral_bonus_rate":  cfg.ReferralBonusRate.String(),
		"withdrawal_fee_rate":  cfg.WithdrawalFeeRate.String(),
		"min_withdrawal":       cfg.MinWithdrawal.StringFixed(2),
	})
	s.log.Info("rates updated", "admin_id", adminID)
	return cfg, nil
}

func (s *RateService) History(ctx context.Context, limit int) ([]domain.RateConfigHistory, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.RateHistory(ctx, limit)
}
