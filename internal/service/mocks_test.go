package service

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/HonoraryIndians/axon-sub001/internal/model"
	"github.com/HonoraryIndians/axon-sub001/pkg/database"
)

var testNow = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

func intPtr(i int) *int {
	return &i
}

func fixedClock() time.Time {
	return testNow
}

// activeActivity returns an ACTIVE first-come-first-serve activity open at testNow.
func activeActivity(limit int) *model.CampaignActivity {
	return &model.CampaignActivity{
		ID:             7,
		CampaignID:     1,
		ProductID:      3,
		Name:           "Spring drop",
		ActivityType:   model.ActivityTypeFirstComeFirstServe,
		LimitCount:     limit,
		RemainingCount: limit,
		Status:         model.ActivityStatusActive,
		StartDate:      testNow.Add(-time.Hour),
		EndDate:        testNow.Add(time.Hour),
		Price:          decimal.RequireFromString("19.90"),
		Filters:        []model.FilterDetail{},
	}
}

// mockTx is a mock implementation of pgx.Tx for testing transactions.
type mockTx struct {
	commitFn   func(ctx context.Context) error
	rollbackFn func(ctx context.Context) error

	mu         sync.Mutex
	committed  bool
	rolledBack bool
}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

func (m *mockTx) Commit(ctx context.Context) error {
	if m.commitFn != nil {
		return m.commitFn(ctx)
	}
	m.mu.Lock()
	m.committed = true
	m.mu.Unlock()
	return nil
}

func (m *mockTx) Rollback(ctx context.Context) error {
	if m.rollbackFn != nil {
		return m.rollbackFn(ctx)
	}
	m.mu.Lock()
	if !m.committed {
		m.rolledBack = true
	}
	m.mu.Unlock()
	return nil
}

func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	return nil
}

func (m *mockTx) LargeObjects() pgx.LargeObjects {
	return pgx.LargeObjects{}
}

func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (m *mockTx) Conn() *pgx.Conn {
	return nil
}

// mockTxBeginner is a mock implementation of TxBeginner.
type mockTxBeginner struct {
	beginFn func(ctx context.Context) (pgx.Tx, error)
	calls   atomic.Int32
}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	m.calls.Add(1)
	if m.beginFn != nil {
		return m.beginFn(ctx)
	}
	return &mockTx{}, nil
}

// mockActivityRepository is a mock implementation of ActivityRepositoryInterface.
type mockActivityRepository struct {
	insertFn             func(ctx context.Context, activity *model.CampaignActivity) error
	getByIDFn            func(ctx context.Context, id int64) (*model.CampaignActivity, error)
	updateStatusFn       func(ctx context.Context, id int64, from, to model.ActivityStatus) error
	decrementRemainingFn func(ctx context.Context, tx database.TxQuerier, id int64, quantity int) (int, error)
}

func (m *mockActivityRepository) Insert(ctx context.Context, activity *model.CampaignActivity) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, activity)
	}
	return nil
}

func (m *mockActivityRepository) GetByID(ctx context.Context, id int64) (*model.CampaignActivity, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockActivityRepository) UpdateStatus(ctx context.Context, id int64, from, to model.ActivityStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return nil
}

func (m *mockActivityRepository) DecrementRemaining(ctx context.Context, tx database.TxQuerier, id int64, quantity int) (int, error) {
	if m.decrementRemainingFn != nil {
		return m.decrementRemainingFn(ctx, tx, id, quantity)
	}
	return 0, nil
}

// mockParticipantRepository is a mock implementation of ParticipantRepositoryInterface.
type mockParticipantRepository struct {
	insertFn          func(ctx context.Context, tx database.TxQuerier, activityID, userID int64, quantity int) error
	countByActivityFn func(ctx context.Context, activityID int64) (int, error)
}

func (m *mockParticipantRepository) Insert(ctx context.Context, tx database.TxQuerier, activityID, userID int64, quantity int) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, activityID, userID, quantity)
	}
	return nil
}

func (m *mockParticipantRepository) CountByActivity(ctx context.Context, activityID int64) (int, error) {
	if m.countByActivityFn != nil {
		return m.countByActivityFn(ctx, activityID)
	}
	return 0, nil
}

// mockUserProfileRepository is a mock implementation of UserProfileRepositoryInterface.
type mockUserProfileRepository struct {
	getByUserIDFn func(ctx context.Context, userID int64) (*model.UserProfile, error)
	calls         atomic.Int32
}

func (m *mockUserProfileRepository) GetByUserID(ctx context.Context, userID int64) (*model.UserProfile, error) {
	m.calls.Add(1)
	if m.getByUserIDFn != nil {
		return m.getByUserIDFn(ctx, userID)
	}
	return nil, nil
}

// recordingRecorder collects activity log entries.
type recordingRecorder struct {
	mu      sync.Mutex
	entries []model.ActivityLogEntry
}

func (r *recordingRecorder) Record(entry model.ActivityLogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingRecorder) Entries() []model.ActivityLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

// mockTokenRepository is a mock implementation of TokenRepositoryInterface.
type mockTokenRepository struct {
	insertFn     func(ctx context.Context, tx database.TxQuerier, token *model.ReservationToken) error
	redeemFn     func(ctx context.Context, token string, redeemedAt, issuedAfter time.Time) (*model.ReservationToken, error)
	getByTokenFn func(ctx context.Context, token string) (*model.ReservationToken, error)
	getLatestFn  func(ctx context.Context, activityID, userID int64) (*model.ReservationToken, error)
	redeemCalls  atomic.Int32
}

func (m *mockTokenRepository) Insert(ctx context.Context, tx database.TxQuerier, token *model.ReservationToken) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, tx, token)
	}
	return nil
}

func (m *mockTokenRepository) Redeem(ctx context.Context, token string, redeemedAt, issuedAfter time.Time) (*model.ReservationToken, error) {
	m.redeemCalls.Add(1)
	if m.redeemFn != nil {
		return m.redeemFn(ctx, token, redeemedAt, issuedAfter)
	}
	return nil, nil
}

func (m *mockTokenRepository) GetByToken(ctx context.Context, token string) (*model.ReservationToken, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, nil
}

func (m *mockTokenRepository) GetByActivityAndUser(ctx context.Context, activityID, userID int64) (*model.ReservationToken, error) {
	if m.getLatestFn != nil {
		return m.getLatestFn(ctx, activityID, userID)
	}
	return nil, nil
}

// mockPurchaseRepository is a mock implementation of PurchaseRepositoryInterface.
type mockPurchaseRepository struct {
	insertIfAbsentFn func(ctx context.Context, p *model.Purchase) (*model.Purchase, error)
	calls            atomic.Int32
}

func (m *mockPurchaseRepository) InsertIfAbsent(ctx context.Context, p *model.Purchase) (*model.Purchase, error) {
	m.calls.Add(1)
	if m.insertIfAbsentFn != nil {
		return m.insertIfAbsentFn(ctx, p)
	}
	stored := *p
	stored.ID = 1
	return &stored, nil
}

// mockRetryQueue is a mock implementation of RetryQueueRepositoryInterface.
type mockRetryQueue struct {
	publishFn func(ctx context.Context, msg model.RetryMessage) error
	claimFn   func(ctx context.Context, limit int, visibility time.Duration) ([]model.RetryDelivery, error)
	ackFn     func(ctx context.Context, id int64) error

	mu        sync.Mutex
	published []model.RetryMessage
	acked     []int64
}

func (m *mockRetryQueue) Publish(ctx context.Context, msg model.RetryMessage) error {
	if m.publishFn != nil {
		if err := m.publishFn(ctx, msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.published = append(m.published, msg)
	m.mu.Unlock()
	return nil
}

func (m *mockRetryQueue) Claim(ctx context.Context, limit int, visibility time.Duration) ([]model.RetryDelivery, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, limit, visibility)
	}
	return []model.RetryDelivery{}, nil
}

func (m *mockRetryQueue) Ack(ctx context.Context, id int64) error {
	if m.ackFn != nil {
		if err := m.ackFn(ctx, id); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.acked = append(m.acked, id)
	m.mu.Unlock()
	return nil
}

func (m *mockRetryQueue) Published() []model.RetryMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.published)
}

func (m *mockRetryQueue) Acked() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.acked)
}

// mockFailureLogRepository is a mock implementation of FailureLogRepositoryInterface.
type mockFailureLogRepository struct {
	upsertFn       func(ctx context.Context, entry *model.FailureLogEntry) error
	listFn         func(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error)
	getByIDFn      func(ctx context.Context, id int64) (*model.FailureLogEntry, error)
	updateStatusFn func(ctx context.Context, id int64, from []model.FailureStatus, to model.FailureStatus) error
	updateByKeyFn  func(ctx context.Context, key string, from []model.FailureStatus, to model.FailureStatus) (int64, error)
}

func (m *mockFailureLogRepository) Upsert(ctx context.Context, entry *model.FailureLogEntry) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, entry)
	}
	return nil
}

func (m *mockFailureLogRepository) List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error) {
	if m.listFn != nil {
		return m.listFn(ctx, filter)
	}
	return []model.FailureLogEntry{}, nil
}

func (m *mockFailureLogRepository) GetByID(ctx context.Context, id int64) (*model.FailureLogEntry, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockFailureLogRepository) UpdateStatus(ctx context.Context, id int64, from []model.FailureStatus, to model.FailureStatus) error {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, from, to)
	}
	return nil
}

func (m *mockFailureLogRepository) UpdateStatusByIdentity(ctx context.Context, key string, from []model.FailureStatus, to model.FailureStatus) (int64, error) {
	if m.updateByKeyFn != nil {
		return m.updateByKeyFn(ctx, key, from, to)
	}
	return 0, nil
}

// memTx undoes the writes registered on it unless it was committed.
type memTx struct {
	mockTx
	undo []func()
}

func (t *memTx) onRollback(fn func()) {
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	if t.committed || t.rolledBack {
		t.mu.Unlock()
		return nil
	}
	t.rolledBack = true
	undo := t.undo
	t.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
	return nil
}

func memTxBeginner() *mockTxBeginner {
	return &mockTxBeginner{
		beginFn: func(ctx context.Context) (pgx.Tx, error) {
			return &memTx{}, nil
		},
	}
}

// memLedgerStore holds one activity and its participants in memory with the
// same conditional-decrement and unique-entry rules as the SQL schema.
type memLedgerStore struct {
	mu           sync.Mutex
	activity     model.CampaignActivity
	participants map[int64]int
}

func newMemLedgerStore(activity *model.CampaignActivity) *memLedgerStore {
	return &memLedgerStore{activity: *activity, participants: map[int64]int{}}
}

func (s *memLedgerStore) Insert(ctx context.Context, activity *model.CampaignActivity) error {
	return nil
}

func (s *memLedgerStore) GetByID(ctx context.Context, id int64) (*model.CampaignActivity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.activity.ID {
		return nil, nil
	}
	a := s.activity
	return &a, nil
}

func (s *memLedgerStore) UpdateStatus(ctx context.Context, id int64, from, to model.ActivityStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activity.Status != from {
		return ErrInvalidTransition
	}
	s.activity.Status = to
	return nil
}

func (s *memLedgerStore) DecrementRemaining(ctx context.Context, tx database.TxQuerier, id int64, quantity int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activity.Status != model.ActivityStatusActive || s.activity.RemainingCount < quantity {
		return 0, ErrCapacityExhausted
	}
	s.activity.RemainingCount -= quantity
	tx.(*memTx).onRollback(func() {
		s.mu.Lock()
		s.activity.RemainingCount += quantity
		s.mu.Unlock()
	})
	return s.activity.RemainingCount, nil
}

func (s *memLedgerStore) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.RemainingCount
}

// memParticipants enforces one entry per user.
type memParticipants struct {
	store *memLedgerStore
}

func (p memParticipants) Insert(ctx context.Context, tx database.TxQuerier, activityID, userID int64, quantity int) error {
	s := p.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[userID]; ok {
		return ErrDuplicateEntry
	}
	s.participants[userID] = quantity
	tx.(*memTx).onRollback(func() {
		s.mu.Lock()
		delete(s.participants, userID)
		s.mu.Unlock()
	})
	return nil
}

func (p memParticipants) CountByActivity(ctx context.Context, activityID int64) (int, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	return len(p.store.participants), nil
}

// memTokenStore redeems each token at most once.
type memTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*model.ReservationToken
}

func newMemTokenStore() *memTokenStore {
	return &memTokenStore{tokens: map[string]*model.ReservationToken{}}
}

func (s *memTokenStore) Insert(ctx context.Context, tx database.TxQuerier, token *model.ReservationToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := *token
	s.tokens[token.Token] = &t
	return nil
}

func (s *memTokenStore) Redeem(ctx context.Context, token string, redeemedAt, issuedAfter time.Time) (*model.ReservationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.RedeemedAt != nil || !t.IssuedAt.After(issuedAfter) {
		return nil, nil
	}
	at := redeemedAt
	t.RedeemedAt = &at
	out := *t
	return &out, nil
}

func (s *memTokenStore) GetByToken(ctx context.Context, token string) (*model.ReservationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, nil
	}
	out := *t
	return &out, nil
}

func (s *memTokenStore) GetByActivityAndUser(ctx context.Context, activityID, userID int64) (*model.ReservationToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *model.ReservationToken
	for _, t := range s.tokens {
		if t.Payload.CampaignActivityID != activityID || t.Payload.UserID != userID {
			continue
		}
		if latest == nil || t.IssuedAt.After(latest.IssuedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

// memFailureStore upserts on the identity key like the SQL table.
type memFailureStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[string]*model.FailureLogEntry
}

func newMemFailureStore() *memFailureStore {
	return &memFailureStore{entries: map[string]*model.FailureLogEntry{}}
}

func (s *memFailureStore) Upsert(ctx context.Context, entry *model.FailureLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.entries[entry.IdentityKey]; ok {
		existing.AttemptCount++
		existing.Status = model.FailureStatusPending
		existing.Payload = entry.Payload
		existing.Reason = entry.Reason
		existing.Kind = entry.Kind
		existing.RawBody = entry.RawBody
		existing.LastSeenAt = entry.LastSeenAt
		*entry = *existing
		return nil
	}
	s.nextID++
	e := *entry
	e.ID = s.nextID
	s.entries[entry.IdentityKey] = &e
	*entry = e
	return nil
}

func (s *memFailureStore) List(ctx context.Context, filter model.FailureLogFilter) ([]model.FailureLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.FailureLogEntry{}
	for _, e := range s.entries {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		out = append(out, *e)
	}
	slices.SortFunc(out, func(a, b model.FailureLogEntry) int { return int(a.ID - b.ID) })
	return out, nil
}

func (s *memFailureStore) GetByID(ctx context.Context, id int64) (*model.FailureLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id {
			out := *e
			return &out, nil
		}
	}
	return nil, nil
}

func (s *memFailureStore) UpdateStatus(ctx context.Context, id int64, from []model.FailureStatus, to model.FailureStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ID == id && slices.Contains(from, e.Status) {
			e.Status = to
			return nil
		}
	}
	return ErrFailureLogNotFound
}

func (s *memFailureStore) UpdateStatusByIdentity(ctx context.Context, key string, from []model.FailureStatus, to model.FailureStatus) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !slices.Contains(from, e.Status) {
		return 0, nil
	}
	e.Status = to
	return 1, nil
}

func (s *memFailureStore) All() []model.FailureLogEntry {
	out, _ := s.List(context.Background(), model.FailureLogFilter{})
	return out
}
