package memstore

import (
	"context"
	"time"

	"cashback_platform/internal/domain"

	"github.com/shopspring/decimal"
)

// AddUser stores u with a fresh id and returns it.
func (s *Store) AddUser(u domain.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.data.nextID()
	if u.Type == "" {
		u.Type = domain.UserClient
	}
	u.CreatedAt = time.Now()
	s.data.users[u.ID] = u
	return u.ID
}

// AddMerchant stores m with a fresh id and returns it.
func (s *Store) AddMerchant(m domain.Merchant) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.data.nextID()
	m.CreatedAt = time.Now()
	s.data.merchants[m.ID] = m
	return m.ID
}

// Fund gives the user an opening balance booked as earned.
func (s *Store) Fund(userID int64, amount decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.data.accounts[userID]
	if !ok {
		acc = zeroAccount(userID)
	}
	acc.Balance = acc.Balance.Add(amount)
	acc.TotalEarned = acc.TotalEarned.Add(amount)
	s.data.accounts[userID] = acc
}

// Account returns the stored account without creating one.
func (s *Store) Account(userID int64) (domain.LedgerAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.data.accounts[userID]
	return acc, ok
}

func (s *Store) Referrals() []domain.Referral {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Referral, 0, len(s.data.referrals))
	for _, r := range s.data.referrals {
		out = append(out, r)
	}
	return out
}

func (s *Store) Outbox() []domain.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.OutboxEvent(nil), s.data.outbox...)
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return nil }
