package referral

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"refledger/entity"
	"refledger/impl/account"
	"refledger/impl/ledger"
)

// memStore backs the account, ledger and referral services in one place,
// with every conditional update atomic under the mutex.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*entity.Account
	edges    map[int64]*entity.ReferralEdge // keyed by referred id
	txs      []*entity.PointTransaction
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*entity.Account),
		edges:    make(map[int64]*entity.ReferralEdge),
	}
}

func (m *memStore) InsertAccount(_ context.Context, acc *entity.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[acc.IdentityId]; ok {
		return entity.ErrIdentityTaken
	}
	for _, other := range m.accounts {
		if other.ReferralCode == acc.ReferralCode {
			return entity.ErrCodeTaken
		}
		if acc.Phone != "" && other.Phone == acc.Phone {
			return entity.ErrPhoneTaken
		}
	}
	clone := *acc
	m.accounts[acc.IdentityId] = &clone
	return nil
}

func (m *memStore) AccountByIdentity(_ context.Context, id int64) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	clone := *acc
	return &clone, nil
}

func (m *memStore) AccountByPhone(_ context.Context, phone string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Phone == phone {
			clone := *acc
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) AccountByReferralCode(_ context.Context, code string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.ReferralCode == code {
			clone := *acc
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) AccountByUsername(_ context.Context, username string) (*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.Username == username {
			clone := *acc
			return &clone, nil
		}
	}
	return nil, nil
}

func (m *memStore) AllAccounts(_ context.Context) ([]*entity.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Account
	for _, acc := range m.accounts {
		clone := *acc
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memStore) SetReferrerIfUnset(_ context.Context, id, referrerId int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || acc.ReferrerId != 0 {
		return false, nil
	}
	acc.ReferrerId = referrerId
	return true, nil
}

func (m *memStore) SetActivatedIfNot(_ context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || acc.IsActivated {
		return false, nil
	}
	acc.IsActivated = true
	return true, nil
}

func (m *memStore) InsertEdge(_ context.Context, edge *entity.ReferralEdge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.edges[edge.ReferredId]; ok {
		return entity.ErrEdgeExists
	}
	clone := *edge
	m.edges[edge.ReferredId] = &clone
	return nil
}

func (m *memStore) ActivateEdgeIfPending(_ context.Context, referredId int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, ok := m.edges[referredId]
	if !ok || edge.Status != entity.EdgePending {
		return false, nil
	}
	edge.Status = entity.EdgeActivated
	edge.ActivatedAt = &at
	return true, nil
}

func (m *memStore) EdgeByReferred(_ context.Context, referredId int64) (*entity.ReferralEdge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	edge, ok := m.edges[referredId]
	if !ok {
		return nil, nil
	}
	clone := *edge
	return &clone, nil
}

func (m *memStore) IncrementPoints(_ context.Context, id, delta int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return false, nil
	}
	acc.Points += delta
	return true, nil
}

func (m *memStore) DecrementPointsIf(_ context.Context, id, amount int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || acc.Points < amount {
		return false, nil
	}
	acc.Points -= amount
	return true, nil
}

func (m *memStore) ZeroPointsIf(_ context.Context, id, observed int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok || acc.Points != observed {
		return false, nil
	}
	acc.Points = 0
	return true, nil
}

func (m *memStore) InsertTransaction(_ context.Context, tx *entity.PointTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *tx
	m.txs = append(m.txs, &clone)
	return nil
}

func (m *memStore) TransactionsByAccount(_ context.Context, id int64) ([]*entity.PointTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.PointTransaction
	for _, tx := range m.txs {
		if tx.AccountId == id {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (m *memStore) balance(id int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].Points
}

func (m *memStore) setDeadline(id int64, deadline time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id].CodeDeadline = deadline
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	store    *memStore
	accounts *account.Service
	service  *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	accounts := account.New(store, account.Config{NormalizeCodes: true}, testLogger())
	points := ledger.New(store, ledger.Config{}, testLogger())
	return &fixture{
		store:    store,
		accounts: accounts,
		service:  New(accounts, points, store, Config{}, testLogger()),
	}
}

func (f *fixture) register(t *testing.T, id int64) *entity.Account {
	t.Helper()
	acc, err := f.accounts.Create(context.Background(), &entity.CreateAccountParams{IdentityId: id})
	require.NoError(t, err)
	return acc
}

func TestRedeem(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	referrer := f.register(t, 1)
	referred := f.register(t, 2)

	// Case-insensitive: redeem the lowercased code.
	result, err := f.service.Redeem(ctx, referred.IdentityId, strings.ToLower(referrer.ReferralCode))
	require.NoError(t, err)
	require.NotNil(t, result.Referrer)
	assert.Equal(t, referrer.IdentityId, result.Referrer.IdentityId)
	assert.Equal(t, int64(100), result.ReferredAward)
	assert.Equal(t, int64(25), result.ReferrerAward)
	assert.False(t, result.Partial)

	linked, err := f.accounts.ByIdentity(ctx, referred.IdentityId)
	require.NoError(t, err)
	assert.Equal(t, referrer.IdentityId, linked.ReferrerId)

	edge, err := f.service.Edge(ctx, referred.IdentityId)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, entity.EdgePending, edge.Status)
	assert.Nil(t, edge.ActivatedAt)

	assert.Equal(t, int64(100), f.store.balance(referred.IdentityId))
	assert.Equal(t, int64(25), f.store.balance(referrer.IdentityId))
}

func TestRedeemUnknownCode(t *testing.T) {
	f := newFixture(t)
	referred := f.register(t, 2)

	_, err := f.service.Redeem(context.Background(), referred.IdentityId, "NOSUCH")
	assert.True(t, entity.IsKind(err, entity.KindNotFound))
}

func TestRedeemUnregisteredAccount(t *testing.T) {
	f := newFixture(t)
	referrer := f.register(t, 1)

	_, err := f.service.Redeem(context.Background(), 99, referrer.ReferralCode)
	assert.True(t, entity.IsKind(err, entity.KindNotFound))
}

func TestRedeemOwnCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, 1)

	_, err := f.service.Redeem(ctx, acc.IdentityId, acc.ReferralCode)
	assert.True(t, entity.IsKind(err, entity.KindValidation))

	// Nothing changed.
	after, err := f.accounts.ByIdentity(ctx, acc.IdentityId)
	require.NoError(t, err)
	assert.False(t, after.HasReferrer())
	assert.Equal(t, int64(0), f.store.balance(acc.IdentityId))
}

func TestRedeemAfterDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	referrer := f.register(t, 1)
	referred := f.register(t, 2)
	f.store.setDeadline(referred.IdentityId, time.Now().UTC().Add(-time.Second))

	_, err := f.service.Redeem(ctx, referred.IdentityId, referrer.ReferralCode)
	assert.True(t, entity.IsKind(err, entity.KindDeadlineExceeded))
}

func TestRedeemTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.register(t, 1)
	second := f.register(t, 2)
	referred := f.register(t, 3)

	_, err := f.service.Redeem(ctx, referred.IdentityId, first.ReferralCode)
	require.NoError(t, err)

	_, err = f.service.Redeem(ctx, referred.IdentityId, second.ReferralCode)
	assert.True(t, entity.IsKind(err, entity.KindConflict))
}

func TestRedeemConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.register(t, 1)
	second := f.register(t, 2)
	referred := f.register(t, 3)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, code := range []string{first.ReferralCode, second.ReferralCode} {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			_, errs[i] = f.service.Redeem(ctx, referred.IdentityId, code)
		}(i, code)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case entity.IsKind(err, entity.KindConflict):
			conflicts++
		default:
			t.Fatalf("unexpected redeem outcome: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	// Exactly one edge and one award regardless of who won.
	edge, err := f.service.Edge(ctx, referred.IdentityId)
	require.NoError(t, err)
	require.NotNil(t, edge)
	assert.Equal(t, int64(100), f.store.balance(referred.IdentityId))
}

func TestActivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	referrer := f.register(t, 1)
	referred := f.register(t, 2)

	_, err := f.service.Redeem(ctx, referred.IdentityId, referrer.ReferralCode)
	require.NoError(t, err)

	result, err := f.service.Activate(ctx, referred.IdentityId)
	require.NoError(t, err)
	assert.True(t, result.Account.IsActivated)
	assert.True(t, result.EdgeActivated)
	assert.Equal(t, int64(75), result.Bonus)
	require.NotNil(t, result.Referrer)
	assert.Equal(t, int64(25+75), result.Referrer.Points)
	assert.False(t, result.Partial)

	edge, err := f.service.Edge(ctx, referred.IdentityId)
	require.NoError(t, err)
	assert.Equal(t, entity.EdgeActivated, edge.Status)
	require.NotNil(t, edge.ActivatedAt)

	// Second activation conflicts and the bonus stays credited once.
	_, err = f.service.Activate(ctx, referred.IdentityId)
	assert.True(t, entity.IsKind(err, entity.KindConflict))
	assert.Equal(t, int64(100), f.store.balance(referrer.IdentityId))
}

func TestActivateWithoutReferrer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	acc := f.register(t, 1)

	result, err := f.service.Activate(ctx, acc.IdentityId)
	require.NoError(t, err)
	assert.True(t, result.Account.IsActivated)
	assert.False(t, result.EdgeActivated)
	assert.Nil(t, result.Referrer)
	assert.Equal(t, int64(0), result.Bonus)
}

func TestActivateUnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Activate(context.Background(), 99)
	assert.True(t, entity.IsKind(err, entity.KindNotFound))
}

func TestActivateConcurrentBonusOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	referrer := f.register(t, 1)
	referred := f.register(t, 2)

	_, err := f.service.Redeem(ctx, referred.IdentityId, referrer.ReferralCode)
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Activate(ctx, referred.IdentityId)
		}(i)
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, entity.IsKind(err, entity.KindConflict))
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, int64(25+75), f.store.balance(referrer.IdentityId), "activation bonus lands exactly once")
}

// failingLedger refuses every credit, standing in for a store outage
// after the referrer link committed.
type failingLedger struct{}

func (failingLedger) Credit(context.Context, int64, int64, string, int64) (*entity.PointTransaction, error) {
	return nil, entity.E(entity.KindStoreUnavailable, "ledger down")
}

func TestRedeemPartialOnCreditFailure(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	accounts := account.New(store, account.Config{NormalizeCodes: true}, testLogger())
	service := New(accounts, failingLedger{}, store, Config{}, testLogger())

	referrer, err := accounts.Create(ctx, &entity.CreateAccountParams{IdentityId: 1})
	require.NoError(t, err)
	referred, err := accounts.Create(ctx, &entity.CreateAccountParams{IdentityId: 2})
	require.NoError(t, err)

	result, err := service.Redeem(ctx, referred.IdentityId, referrer.ReferralCode)
	require.NoError(t, err, "the committed link is a success even when credits lag")
	assert.True(t, result.Partial)
	assert.Equal(t, int64(0), result.ReferredAward)
	assert.Equal(t, int64(0), result.ReferrerAward)

	// The link itself is durable and not rolled back.
	linked, err := accounts.ByIdentity(ctx, referred.IdentityId)
	require.NoError(t, err)
	assert.Equal(t, referrer.IdentityId, linked.ReferrerId)
}
