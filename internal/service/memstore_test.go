package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// memStore is an in-memory wallet store and ledger whose conditional updates
// run under one mutex, the way a row-level UPDATE ... WHERE serializes writers.
type memStore struct {
	mu      sync.Mutex
	wallets map[uuid.UUID]*domain.Wallet
	ledger  map[string]domain.AppliedTransaction
}

func newMemStore() *memStore {
	return &memStore{
		wallets: make(map[uuid.UUID]*domain.Wallet),
		ledger:  make(map[string]domain.AppliedTransaction),
	}
}

func (m *memStore) put(w *domain.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.wallets[w.ID] = &cp
}

func (m *memStore) balance(id uuid.UUID) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wallets[id].Balance
}

// memTx undoes its writes on rollback unless committed.
type memTx struct {
	pgx.Tx
	store     *memStore
	undo      []func()
	committed bool
}

func (m *memStore) Begin(_ context.Context) (pgx.Tx, error) {
	return &memTx{store: m}, nil
}

func (t *memTx) Commit(_ context.Context) error {
	t.committed = true
	t.undo = nil
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.committed {
		return pgx.ErrTxClosed
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

// --- ports.WalletRepository ---

func (m *memStore) Create(_ context.Context, w *domain.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.wallets {
		if existing.UserID == w.UserID {
			return domain.ErrWalletExists
		}
		if existing.Code == w.Code {
			return domain.ErrCodeTaken
		}
	}
	cp := *w
	m.wallets[w.ID] = &cp
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wallets[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, nil
}

func (m *memStore) GetByUserID(_ context.Context, userID string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) GetByCode(_ context.Context, code string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.wallets {
		if w.Code == code {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memStore) CodeExists(ctx context.Context, code string) (bool, error) {
	w, err := m.GetByCode(ctx, code)
	return w != nil, err
}

func (m *memStore) Search(_ context.Context, _ string, _ int) ([]domain.WalletSummary, error) {
	return nil, errors.New("not supported")
}

func (m *memStore) AdjustBalance(_ context.Context, tx pgx.Tx, id uuid.UUID, dir domain.Direction, amount int64) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, nil
	}
	delta := amount
	if dir == domain.DirectionDebit {
		if w.Balance < amount {
			return nil, nil
		}
		delta = -amount
	}
	w.Balance += delta
	w.UpdatedAt = time.Now()
	mt := tx.(*memTx)
	mt.undo = append(mt.undo, func() { w.Balance -= delta })
	cp := *w
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WalletStatus) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok {
		return nil, nil
	}
	w.Status = status
	cp := *w
	return &cp, nil
}

func (m *memStore) AddContact(_ context.Context, id uuid.UUID, ref domain.ContactRef) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || w.HasContact(ref.Code) {
		return nil, nil
	}
	w.Contacts = append(append([]domain.ContactRef{}, w.Contacts...), ref)
	cp := *w
	return &cp, nil
}

func (m *memStore) RemoveContact(_ context.Context, id uuid.UUID, code string) (*domain.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wallets[id]
	if !ok || !w.HasContact(code) {
		return nil, nil
	}
	kept := make([]domain.ContactRef, 0, len(w.Contacts))
	for _, c := range w.Contacts {
		if c.Code != code {
			kept = append(kept, c)
		}
	}
	w.Contacts = kept
	cp := *w
	return &cp, nil
}

// memLedger adapts memStore to ports.LedgerRepository.
type memLedger struct{ *memStore }

func (l memLedger) Insert(_ context.Context, tx pgx.Tx, entry *domain.AppliedTransaction) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.ledger[entry.TransactionID]; ok {
		return false, nil
	}
	// applied_transactions.wallet_id references wallets(id).
	if _, ok := l.wallets[entry.WalletID]; !ok {
		return false, domain.ErrUnknownWallet
	}
	l.ledger[entry.TransactionID] = *entry
	mt := tx.(*memTx)
	mt.undo = append(mt.undo, func() { delete(l.ledger, entry.TransactionID) })
	return true, nil
}

func (l memLedger) Exists(_ context.Context, transactionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.ledger[transactionID]
	return ok, nil
}

func (l memLedger) PurgeBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

// nopCache always misses.
type nopCache struct{}

func (nopCache) IsApplied(context.Context, string) (bool, error)          { return false, nil }
func (nopCache) MarkApplied(context.Context, string, time.Duration) error { return nil }
