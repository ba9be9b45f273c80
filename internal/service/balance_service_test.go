package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports/mocks"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const testCacheTTL = time.Hour

type balanceTestDeps struct {
	svc         *BalanceServiceImpl
	walletRepo  *mocks.MockWalletRepository
	ledgerRepo  *mocks.MockLedgerRepository
	ledgerCache *mocks.MockLedgerCache
	publisher   *mocks.MockUpdatePublisher
	transactor  *mocks.MockDBTransactor
	ctrl        *gomock.Controller
}

func setupBalanceService(t *testing.T) *balanceTestDeps {
	ctrl := gomock.NewController(t)
	d := &balanceTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		ledgerRepo:  mocks.NewMockLedgerRepository(ctrl),
		ledgerCache: mocks.NewMockLedgerCache(ctrl),
		publisher:   mocks.NewMockUpdatePublisher(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		ctrl:        ctrl,
	}
	d.svc = NewBalanceService(
		d.walletRepo, d.ledgerRepo, d.ledgerCache,
		d.publisher, d.transactor, testCacheTTL, newTestLogger(),
	)
	return d
}

func testWallet(id uuid.UUID, balance int64) *domain.Wallet {
	return &domain.Wallet{
		ID:        id,
		UserID:    "user-" + id.String()[:8],
		UserName:  "Ama Mensah",
		Code:      "AbCdEf123456",
		Balance:   balance,
		Currency:  "GHS",
		Status:    domain.WalletStatusActive,
		Contacts:  []domain.ContactRef{},
		UpdatedAt: time.Now(),
	}
}

// ==================== ApplyAdjustment ====================

func TestBalanceService_ApplyAdjustment_Credit(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionCredit, int64(2500)).
		Return(testWallet(walletID, 12500), nil)
	d.publisher.EXPECT().PublishWalletUpdated(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.WalletUpdatedEvent) error {
			assert.Equal(t, domain.EventTypeWalletUpdated, ev.Type)
			assert.Equal(t, "125.00", ev.Balance)
			assert.Equal(t, "25.00", ev.Amount)
			assert.Empty(t, ev.TransactionID)
			return nil
		},
	)

	w, err := d.svc.ApplyAdjustment(ctx, walletID, 2500, domain.DirectionCredit)
	require.NoError(t, err)
	assert.Equal(t, int64(12500), w.Balance)
	assert.True(t, tx.committed)
}

func TestBalanceService_ApplyAdjustment_InvalidAmount(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	for _, amount := range []int64{0, -100} {
		_, err := d.svc.ApplyAdjustment(context.Background(), uuid.New(), amount, domain.DirectionDebit)
		assertAppError(t, err, "WLT_004")
	}
}

func TestBalanceService_ApplyAdjustment_InvalidDirection(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.ApplyAdjustment(context.Background(), uuid.New(), 100, domain.Direction("refund"))
	assertAppError(t, err, "VAL_001")
}

func TestBalanceService_ApplyAdjustment_InsufficientBalance(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionDebit, int64(6000)).Return(nil, nil)
	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(testWallet(walletID, 4000), nil)

	_, err := d.svc.ApplyAdjustment(ctx, walletID, 6000, domain.DirectionDebit)
	assertAppError(t, err, "WLT_003")
	assert.False(t, tx.committed)
}

func TestBalanceService_ApplyAdjustment_DebitUnknownWallet(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionDebit, int64(100)).Return(nil, nil)
	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, err := d.svc.ApplyAdjustment(ctx, walletID, 100, domain.DirectionDebit)
	assertAppError(t, err, "WLT_001")
}

func TestBalanceService_ApplyAdjustment_CreditUnknownWallet(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionCredit, int64(100)).Return(nil, nil)

	_, err := d.svc.ApplyAdjustment(ctx, walletID, 100, domain.DirectionCredit)
	assertAppError(t, err, "WLT_001")
}

func TestBalanceService_ApplyAdjustment_PublishFailureKeepsMutation(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionDebit, int64(100)).
		Return(testWallet(walletID, 900), nil)
	d.publisher.EXPECT().PublishWalletUpdated(ctx, gomock.Any()).Return(errors.New("broker down"))

	w, err := d.svc.ApplyAdjustment(ctx, walletID, 100, domain.DirectionDebit)
	require.NoError(t, err)
	assert.Equal(t, int64(900), w.Balance)
	assert.True(t, tx.committed)
}

func TestBalanceService_ApplyAdjustment_BeginFails(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool exhausted"))

	_, err := d.svc.ApplyAdjustment(ctx, uuid.New(), 100, domain.DirectionCredit)
	assertAppError(t, err, "SYS_001")
}

// ==================== ApplyTransaction ====================

func TestBalanceService_ApplyTransaction_Applies(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}
	adj := domain.Adjustment{TransactionID: "tx-1", WalletID: walletID, Direction: domain.DirectionCredit, Amount: 1250}

	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-1").Return(false, nil)
	d.ledgerRepo.EXPECT().Exists(ctx, "tx-1").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Insert(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.AppliedTransaction) (bool, error) {
			assert.Equal(t, "tx-1", entry.TransactionID)
			assert.Equal(t, walletID, entry.WalletID)
			assert.Equal(t, int64(1250), entry.Amount)
			return true, nil
		},
	)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionCredit, int64(1250)).
		Return(testWallet(walletID, 1250), nil)
	d.ledgerCache.EXPECT().MarkApplied(ctx, "tx-1", testCacheTTL).Return(nil)
	d.publisher.EXPECT().PublishWalletUpdated(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, ev domain.WalletUpdatedEvent) error {
			assert.Equal(t, "tx-1", ev.TransactionID)
			return nil
		},
	)

	w, applied, err := d.svc.ApplyTransaction(ctx, adj)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(1250), w.Balance)
	assert.True(t, tx.committed)
}

func TestBalanceService_ApplyTransaction_CacheHit(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-2").Return(true, nil)

	w, applied, err := d.svc.ApplyTransaction(ctx, domain.Adjustment{
		TransactionID: "tx-2", WalletID: uuid.New(), Direction: domain.DirectionCredit, Amount: 1,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, w)
}

func TestBalanceService_ApplyTransaction_CacheErrorFallsThrough(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-3").Return(false, errors.New("redis down"))
	d.ledgerRepo.EXPECT().Exists(ctx, "tx-3").Return(true, nil)
	d.ledgerCache.EXPECT().MarkApplied(ctx, "tx-3", testCacheTTL).Return(errors.New("redis down"))

	_, applied, err := d.svc.ApplyTransaction(ctx, domain.Adjustment{
		TransactionID: "tx-3", WalletID: uuid.New(), Direction: domain.DirectionCredit, Amount: 1,
	})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestBalanceService_ApplyTransaction_InsertConflict(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-4").Return(false, nil)
	d.ledgerRepo.EXPECT().Exists(ctx, "tx-4").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, nil)
	d.ledgerCache.EXPECT().MarkApplied(ctx, "tx-4", testCacheTTL).Return(nil)

	_, applied, err := d.svc.ApplyTransaction(ctx, domain.Adjustment{
		TransactionID: "tx-4", WalletID: uuid.New(), Direction: domain.DirectionCredit, Amount: 1,
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, tx.committed)
}

func TestBalanceService_ApplyTransaction_InsufficientBalance(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-5").Return(false, nil)
	d.ledgerRepo.EXPECT().Exists(ctx, "tx-5").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(true, nil)
	d.walletRepo.EXPECT().AdjustBalance(ctx, tx, walletID, domain.DirectionDebit, int64(500)).Return(nil, nil)
	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(testWallet(walletID, 100), nil)

	_, applied, err := d.svc.ApplyTransaction(ctx, domain.Adjustment{
		TransactionID: "tx-5", WalletID: walletID, Direction: domain.DirectionDebit, Amount: 500,
	})
	assertAppError(t, err, "WLT_003")
	assert.False(t, applied)
	assert.False(t, tx.committed, "ledger row must roll back with the failed debit")
}

func TestBalanceService_ApplyTransaction_UnknownWalletIsPermanent(t *testing.T) {
	d := setupBalanceService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}

	d.ledgerCache.EXPECT().IsApplied(ctx, "tx-6").Return(false, nil)
	d.ledgerRepo.EXPECT().Exists(ctx, "tx-6").Return(false, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.ledgerRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(false, domain.ErrUnknownWallet)

	_, applied, err := d.svc.ApplyTransaction(ctx, domain.Adjustment{
		TransactionID: "tx-6", WalletID: uuid.New(), Direction: domain.DirectionCredit, Amount: 100,
	})
	assertAppError(t, err, "WLT_001")
	assert.True(t, apperror.IsPermanent(err), "unknown wallet must not be retried")
	assert.False(t, applied)
	assert.False(t, tx.committed)
}

// ==================== Properties over the in-memory store ====================

func newMemBalanceService(store *memStore) *BalanceServiceImpl {
	return NewBalanceService(store, memLedger{store}, nopCache{}, nil, store, testCacheTTL, newTestLogger())
}

func TestBalanceService_ConcurrentDebitRace(t *testing.T) {
	store := newMemStore()
	walletID := uuid.New()
	store.put(testWallet(walletID, 100))
	svc := newMemBalanceService(store)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
		rejected  atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.ApplyAdjustment(context.Background(), walletID, 60, domain.DirectionDebit)
			if err == nil {
				succeeded.Add(1)
				return
			}
			assertAppError(t, err, "WLT_003")
			rejected.Add(1)
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, int32(1), rejected.Load())
	assert.Equal(t, int64(40), store.balance(walletID))
}

func TestBalanceService_NeverNegative(t *testing.T) {
	store := newMemStore()
	walletID := uuid.New()
	store.put(testWallet(walletID, 1000))
	svc := newMemBalanceService(store)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			dir := domain.DirectionDebit
			if i%5 == 0 {
				dir = domain.DirectionCredit
			}
			_, _ = svc.ApplyAdjustment(context.Background(), walletID, 70, dir)
		}(i)
	}
	wg.Wait()

	assert.GreaterOrEqual(t, store.balance(walletID), int64(0))
}

func TestBalanceService_RedeliveryAppliesOnce(t *testing.T) {
	store := newMemStore()
	walletID := uuid.New()
	store.put(testWallet(walletID, 0))
	svc := newMemBalanceService(store)

	adj := domain.Adjustment{TransactionID: "dup-1", WalletID: walletID, Direction: domain.DirectionCredit, Amount: 500}

	var (
		wg      sync.WaitGroup
		applied atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := svc.ApplyTransaction(context.Background(), adj)
			assert.NoError(t, err)
			if ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), applied.Load())
	assert.Equal(t, int64(500), store.balance(walletID))
}

func TestBalanceService_EventForMissingWallet(t *testing.T) {
	store := newMemStore()
	svc := newMemBalanceService(store)

	_, applied, err := svc.ApplyTransaction(context.Background(), domain.Adjustment{
		TransactionID: "ghost-1", WalletID: uuid.New(), Direction: domain.DirectionCredit, Amount: 100,
	})

	assertAppError(t, err, "WLT_001")
	assert.True(t, apperror.IsPermanent(err))
	assert.False(t, applied)
	assert.Empty(t, store.ledger)
}

func TestBalanceService_FailedDebitLeavesNoLedgerRow(t *testing.T) {
	store := newMemStore()
	walletID := uuid.New()
	store.put(testWallet(walletID, 10))
	svc := newMemBalanceService(store)

	adj := domain.Adjustment{TransactionID: "wd-1", WalletID: walletID, Direction: domain.DirectionDebit, Amount: 50}

	_, _, err := svc.ApplyTransaction(context.Background(), adj)
	assertAppError(t, err, "WLT_003")

	exists, err := memLedger{store}.Exists(context.Background(), "wd-1")
	require.NoError(t, err)
	assert.False(t, exists)

	// A later top-up lets the same withdrawal through on redelivery.
	_, err = svc.ApplyAdjustment(context.Background(), walletID, 100, domain.DirectionCredit)
	require.NoError(t, err)
	_, applied, err := svc.ApplyTransaction(context.Background(), adj)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, int64(60), store.balance(walletID))
}
