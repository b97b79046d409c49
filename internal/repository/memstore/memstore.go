// Package memstore is an in-memory implementation of the store ports.
//
// Transactions are serializable: InTx holds the store lock for the whole
// callback and works on a copy of the state that replaces the live state only
// when the callback returns nil.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cashback_platform/internal/domain"
	"cashback_platform/internal/store"

	"github.com/shopspring/decimal"
)

type state struct {
	seq int64

	users     map[int64]domain.User
	merchants map[int64]domain.Merchant

	accounts  map[int64]domain.LedgerAccount
	entries   []domain.LedgerEntry
	entryKeys map[string]int

	transactions map[int64]domain.Transaction
	txKeys       map[string]int64
	transfers    map[int64]domain.Transfer
	withdrawals  map[int64]domain.WithdrawalRequest
	referrals    map[int64]domain.Referral

	rates       *domain.RateConfig
	rateHistory []domain.RateConfigHistory

	outbox []domain.OutboxEvent
	audit  []domain.AuditLog
}

func newState() *state {
	return &state{
		users:        map[int64]domain.User{},
		merchants:    map[int64]domain.Merchant{},
		accounts:     map[int64]domain.LedgerAccount{},
		entryKeys:    map[string]int{},
		transactions: map[int64]domain.Transaction{},
		txKeys:       map[string]int64{},
		transfers:    map[int64]domain.Transfer{},
		withdrawals:  map[int64]domain.WithdrawalRequest{},
		referrals:    map[int64]domain.Referral{},
	}
}

func (s *state) clone() *state {
	c := &state{
		seq:          s.seq,
		users:        make(map[int64]domain.User, len(s.users)),
		merchants:    make(map[int64]domain.Merchant, len(s.merchants)),
		accounts:     make(map[int64]domain.LedgerAccount, len(s.accounts)),
		entries:      append([]domain.LedgerEntry(nil), s.entries...),
		entryKeys:    make(map[string]int, len(s.entryKeys)),
		transactions: make(map[int64]domain.Transaction, len(s.transactions)),
		txKeys:       make(map[string]int64, len(s.txKeys)),
		transfers:    make(map[int64]domain.Transfer, len(s.transfers)),
		withdrawals:  make(map[int64]domain.WithdrawalRequest, len(s.withdrawals)),
		referrals:    make(map[int64]domain.Referral, len(s.referrals)),
		rateHistory:  append([]domain.RateConfigHistory(nil), s.rateHistory...),
		outbox:       append([]domain.OutboxEvent(nil), s.outbox...),
		audit:        append([]domain.AuditLog(nil), s.audit...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.merchants {
		c.merchants[k] = v
	}
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.entryKeys {
		c.entryKeys[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.txKeys {
		c.txKeys[k] = v
	}
	for k, v := range s.transfers {
		c.transfers[k] = v
	}
	for k, v := range s.withdrawals {
		c.withdrawals[k] = v
	}
	for k, v := range s.referrals {
		c.referrals[k] = v
	}
	if s.rates != nil {
		r := *s.rates
		c.rates = &r
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store implements every port in internal/store.
type Store struct {
	mu       sync.RWMutex
	data     *state
	failures map[string]error
}

func New() *Store {
	return &Store{data: newState(), failures: map[string]error{}}
}

// FailOn makes the named Tx method return err until cleared with a nil err.
func (s *Store) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &memTx{st: work, failures: s.failures}); err != nil {
		return err
	}
	s.data = work
	return nil
}

type memTx struct {
	st       *state
	failures map[string]error
}

func (t *memTx) fail(method string) error {
	return t.failures[method]
}

func zeroAccount(userID int64) domain.LedgerAccount {
	return domain.LedgerAccount{
		UserID:      userID,
		Balance:     decimal.Zero,
		Held:        decimal.Zero,
		TotalEarned: decimal.Zero,
		TotalSpent:  decimal.Zero,
		UpdatedAt:   time.Now(),
	}
}

func (t *memTx) LockAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error) {
	if err := t.fail("LockAccount"); err != nil {
		return domain.LedgerAccount{}, err
	}
	acc, ok := t.st.accounts[userID]
	if !ok {
		acc = zeroAccount(userID)
		t.st.accounts[userID] = acc
	}
	return acc, nil
}

func (t *memTx) SaveAccount(ctx context.Context, acc domain.LedgerAccount) error {
	if err := t.fail("SaveAccount"); err != nil {
		return err
	}
	acc.UpdatedAt = time.Now()
	t.st.accounts[acc.UserID] = acc
	return nil
}

func (t *memTx) EntryByKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	i, ok := t.st.entryKeys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e := t.st.entries[i]
	return &e, nil
}

func (t *memTx) InsertEntry(ctx context.Context, e *domain.LedgerEntry) error {
	if err := t.fail("InsertEntry"); err != nil {
		return err
	}
	if e.IdempotencyKey != "" {
		if _, ok := t.st.entryKeys[e.IdempotencyKey]; ok {
			return store.ErrConflict
		}
		t.st.entryKeys[e.IdempotencyKey] = len(t.st.entries)
	}
	e.ID = t.st.nextID()
	e.CreatedAt = time.Now()
	t.st.entries = append(t.st.entries, *e)
	return nil
}

func (t *memTx) GetTransactionByKey(ctx context.Context, key string) (*domain.Transaction, error) {
	id, ok := t.st.txKeys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tr := t.st.transactions[id]
	return &tr, nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	if err := t.fail("InsertTransaction"); err != nil {
		return err
	}
	if tr.IdempotencyKey != "" {
		if _, ok := t.st.txKeys[tr.IdempotencyKey]; ok {
			return store.ErrConflict
		}
	}
	tr.ID = t.st.nextID()
	tr.CreatedAt = time.Now()
	tr.UpdatedAt = tr.CreatedAt
	t.st.transactions[tr.ID] = *tr
	if tr.IdempotencyKey != "" {
		t.st.txKeys[tr.IdempotencyKey] = tr.ID
	}
	return nil
}

func (t *memTx) LockTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	tr, ok := t.st.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tr, nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, id int64, status domain.TransactionStatus, notes string) error {
	if err := t.fail("UpdateTransactionStatus"); err != nil {
		return err
	}
	tr, ok := t.st.transactions[id]
	if !ok {
		return domain.ErrNotFound
	}
	tr.Status = status
	if notes != "" {
		tr.Notes = notes
	}
	tr.UpdatedAt = time.Now()
	t.st.transactions[id] = tr
	return nil
}

func (t *memTx) InsertTransfer(ctx context.Context, tr *domain.Transfer) error {
	if err := t.fail("InsertTransfer"); err != nil {
		return err
	}
	tr.ID = t.st.nextID()
	tr.CreatedAt = time.Now()
	tr.UpdatedAt = tr.CreatedAt
	t.st.transfers[tr.ID] = *tr
	return nil
}

func (t *memTx) LockTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	tr, ok := t.st.transfers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tr, nil
}

func (t *memTx) UpdateTransferStatus(ctx context.Context, id int64, status domain.TransferStatus) error {
	tr, ok := t.st.transfers[id]
	if !ok {
		return domain.ErrNotFound
	}
	tr.Status = status
	tr.UpdatedAt = time.Now()
	t.st.transfers[id] = tr
	return nil
}

func (t *memTx) InsertWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	if err := t.fail("InsertWithdrawal"); err != nil {
		return err
	}
	w.ID = t.st.nextID()
	w.CreatedAt = time.Now()
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *memTx) LockWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	w, ok := t.st.withdrawals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

func (t *memTx) UpdateWithdrawal(ctx context.Context, w *domain.WithdrawalRequest) error {
	if err := t.fail("UpdateWithdrawal"); err != nil {
		return err
	}
	if _, ok := t.st.withdrawals[w.ID]; !ok {
		return domain.ErrNotFound
	}
	t.st.withdrawals[w.ID] = *w
	return nil
}

func (t *memTx) GetActiveReferral(ctx context.Context, referredID int64) (*domain.Referral, error) {
	for _, r := range t.st.referrals {
		if r.ReferredID == referredID && r.Status == domain.ReferralActive {
			return &r, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (t *memTx) InsertReferral(ctx context.Context, r *domain.Referral) error {
	for _, existing := range t.st.referrals {
		if existing.ReferredID == r.ReferredID {
			return store.ErrConflict
		}
	}
	r.ID = t.st.nextID()
	r.CreatedAt = time.Now()
	t.st.referrals[r.ID] = *r
	return nil
}

func (t *memTx) AccrueReferral(ctx context.Context, referrerID, referredID int64, amount decimal.Decimal) error {
	if err := t.fail("AccrueReferral"); err != nil {
		return err
	}
	for id, r := range t.st.referrals {
		if r.ReferrerID == referrerID && r.ReferredID == referredID {
			r.Bonus = r.Bonus.Add(amount)
			t.st.referrals[id] = r
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) SetReferredBy(ctx context.Context, userID, referrerID int64) error {
	u, ok := t.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	ref := referrerID
	u.ReferredBy = &ref
	t.st.users[userID] = u
	return nil
}

func (t *memTx) SaveRates(ctx context.Context, cfg domain.RateConfig) error {
	if err := t.fail("SaveRates"); err != nil {
		return err
	}
	t.st.rates = &cfg
	t.st.rateHistory = append(t.st.rateHistory, domain.RateConfigHistory{ID: t.st.nextID(), RateConfig: cfg})
	return nil
}

func (t *memTx) Enqueue(ctx context.Context, evt *domain.OutboxEvent) error {
	if err := t.fail("Enqueue"); err != nil {
		return err
	}
	evt.CreatedAt = time.Now()
	t.st.outbox = append(t.st.outbox, *evt)
	return nil
}

// Readers

func (s *Store) EnsureAccount(ctx context.Context, userID int64) (domain.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.data.accounts[userID]
	if !ok {
		acc = zeroAccount(userID)
		s.data.accounts[userID] = acc
	}
	return acc, nil
}

func (s *Store) ListEntries(ctx context.Context, userID int64, limit int) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for i := len(s.data.entries) - 1; i >= 0; i-- {
		if s.data.entries[i].UserID == userID {
			out = append(out, s.data.entries[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.data.transactions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tr, nil
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.data.txKeys[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tr := s.data.transactions[id]
	return &tr, nil
}

func (s *Store) ListTransactionsByUser(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transaction
	for _, tr := range s.data.transactions {
		if tr.UserID == userID || s.data.merchants[tr.MerchantID].OwnerUserID == userID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, limit), nil
}

func (s *Store) GetTransfer(ctx context.Context, id int64) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.data.transfers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &tr, nil
}

func (s *Store) ListTransfersByUser(ctx context.Context, userID int64, limit int) ([]domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Transfer
	for _, tr := range s.data.transfers {
		if tr.FromUserID == userID || tr.ToUserID == userID {
			out = append(out, tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, limit), nil
}

func (s *Store) GetWithdrawal(ctx context.Context, id int64) (*domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.data.withdrawals[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &w, nil
}

func (s *Store) ListWithdrawalsByUser(ctx context.Context, userID int64, limit int) ([]domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WithdrawalRequest
	for _, w := range s.data.withdrawals {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, limit), nil
}

func (s *Store) ListWithdrawalsByStatus(ctx context.Context, status domain.WithdrawalStatus, limit int) ([]domain.WithdrawalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.WithdrawalRequest
	for _, w := range s.data.withdrawals {
		if w.Status == status {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return truncate(out, limit), nil
}

func (s *Store) ListReferralsByReferrer(ctx context.Context, referrerID int64) ([]domain.Referral, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Referral
	for _, r := range s.data.referrals {
		if r.ReferrerID == referrerID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetRates(ctx context.Context) (*domain.RateConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.rates == nil {
		return nil, domain.ErrNotFound
	}
	r := *s.data.rates
	return &r, nil
}

func (s *Store) RateHistory(ctx context.Context, limit int) ([]domain.RateConfigHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.RateConfigHistory
	for i := len(s.data.rateHistory) - 1; i >= 0; i-- {
		out = append(out, s.data.rateHistory[i])
	}
	return truncate(out, limit), nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.data.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) FindUserByTerm(ctx context.Context, term string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, domain.ErrNotFound
	}
	var byContact, byName []domain.User
	for _, id := range s.sortedUserIDs() {
		u := s.data.users[id]
		switch {
		case strings.EqualFold(u.Email, term) || (u.Phone != "" && u.Phone == term):
			byContact = append(byContact, u)
		case strings.EqualFold(u.Name, term):
			byName = append(byName, u)
		}
	}
	matches := byContact
	if len(matches) == 0 {
		matches = byName
	}
	if len(matches) != 1 {
		return nil, domain.ErrNotFound
	}
	return &matches[0], nil
}

func (s *Store) FindUserByInvitationCode(ctx context.Context, code string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedUserIDs() {
		u := s.data.users[id]
		if code != "" && u.InvitationCode == code {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) FindUserByTgID(ctx context.Context, tgID int64) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.sortedUserIDs() {
		u := s.data.users[id]
		if tgID != 0 && u.TgID == tgID {
			return &u, nil
		}
	}
	return nil, domain.ErrNotFound
}

// CreateUser enforces the same unique columns as the users table.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.data.users {
		if (u.TgID != 0 && other.TgID == u.TgID) ||
			(u.InvitationCode != "" && other.InvitationCode == u.InvitationCode) ||
			(u.Email != "" && strings.EqualFold(other.Email, u.Email)) {
			return store.ErrConflict
		}
	}
	if u.Type == "" {
		u.Type = domain.UserClient
	}
	u.ID = s.data.nextID()
	u.CreatedAt = time.Now()
	s.data.users[u.ID] = *u
	return nil
}

func (s *Store) sortedUserIDs() []int64 {
	ids := make([]int64, 0, len(s.data.users))
	for id := range s.data.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Store) GetMerchant(ctx context.Context, id int64) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data.merchants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *Store) PendingEvents(ctx context.Context, maxAttempts, limit int) ([]domain.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.OutboxEvent
	for _, e := range s.data.outbox {
		if e.PublishedAt == nil && e.Attempts < maxAttempts {
			out = append(out, e)
		}
	}
	return truncate(out, limit), nil
}

func (s *Store) MarkEventPublished(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.outbox {
		if s.data.outbox[i].ID == id {
			now := time.Now()
			s.data.outbox[i].PublishedAt = &now
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) MarkEventFailed(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data.outbox {
		if s.data.outbox[i].ID == id {
			s.data.outbox[i].Attempts++
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) CreateAuditLog(ctx context.Context, log *domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = s.data.nextID()
	log.CreatedAt = time.Now()
	s.data.audit = append(s.data.audit, *log)
	return nil
}

func (s *Store) ListAuditLogs(ctx context.Context, category string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AuditLog
	for i := len(s.data.audit) - 1; i >= 0; i-- {
		if category == "" || s.data.audit[i].Category == category {
			out = append(out, s.data.audit[i])
		}
	}
	return truncate(out, limit), nil
}

func truncate[T any](s []T, limit int) []T {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}
