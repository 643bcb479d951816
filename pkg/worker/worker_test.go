package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-intake/internal/model"
	"github.com/jwalitptl/patient-intake/pkg/logger"
	"github.com/jwalitptl/patient-intake/pkg/messaging"
	"github.com/jwalitptl/patient-intake/pkg/metrics"
)

type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) ClaimPending(ctx context.Context, limit int, staleBefore time.Time) ([]*model.OutboxEvent, error) {
	args := m.Called(ctx, limit, staleBefore)
	if events := args.Get(0); events != nil {
		return events.([]*model.OutboxEvent), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockOutboxRepo) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	return m.Called(ctx, id, errorMessage).Error(0)
}

func (m *mockOutboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

type mockBroker struct {
	mock.Mock
}

func (m *mockBroker) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

func (m *mockBroker) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	args := m.Called(ctx, channel)
	return nil, args.Error(1)
}

func (m *mockBroker) Close() error {
	return nil
}

func newProcessor(t *testing.T, repo *mockOutboxRepo, broker *mockBroker) (*OutboxProcessor, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p, err := NewOutboxProcessor(repo, broker, OutboxProcessorConfig{
		BatchSize:     10,
		PollInterval:  time.Second,
		RetryAttempts: 2,
		RetryDelay:    time.Millisecond,
		Channel:       "events",
		ClaimTimeout:  time.Minute,
	}, logger.Nop(), m)
	require.NoError(t, err)
	return p, m
}

func TestNewOutboxProcessor_ValidatesConfig(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	_, err := NewOutboxProcessor(nil, nil, OutboxProcessorConfig{BatchSize: 1, PollInterval: time.Second, RetryAttempts: 1}, logger.Nop(), m)
	assert.EqualError(t, err, "channel is required")

	_, err = NewOutboxProcessor(nil, nil, OutboxProcessorConfig{PollInterval: time.Second, RetryAttempts: 1, Channel: "c"}, logger.Nop(), m)
	assert.Error(t, err)
}

func TestProcessBatch_PublishesAndMarksProcessed(t *testing.T) {
	repo := new(mockOutboxRepo)
	broker := new(mockBroker)
	p, m := newProcessor(t, repo, broker)

	event := &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: model.EventPatientRegistered,
		Payload:   json.RawMessage(`{"name":"Adam"}`),
	}
	repo.On("ClaimPending", mock.Anything, 10, mock.Anything).Return([]*model.OutboxEvent{event}, nil).Once()
	broker.On("Publish", mock.Anything, "events", messaging.Message{Type: event.EventType, Payload: event.Payload}).Return(nil).Once()
	repo.On("MarkProcessed", mock.Anything, event.ID).Return(nil).Once()

	require.NoError(t, p.ProcessBatch(context.Background()))

	repo.AssertExpectations(t)
	broker.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsProcessed))
}

func TestProcessBatch_RetriesThenMarksFailed(t *testing.T) {
	repo := new(mockOutboxRepo)
	broker := new(mockBroker)
	p, m := newProcessor(t, repo, broker)

	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventUserCreated}
	repo.On("ClaimPending", mock.Anything, 10, mock.Anything).Return([]*model.OutboxEvent{event}, nil).Once()
	broker.On("Publish", mock.Anything, "events", mock.Anything).Return(errors.New("redis down")).Twice()
	repo.On("MarkFailed", mock.Anything, event.ID, "redis down").Return(nil).Once()

	require.NoError(t, p.ProcessBatch(context.Background()))

	broker.AssertNumberOfCalls(t, "Publish", 2)
	repo.AssertNotCalled(t, "MarkProcessed", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.OutboxEventsFailed))
}

func TestProcessBatch_ClaimError(t *testing.T) {
	repo := new(mockOutboxRepo)
	p, m := newProcessor(t, repo, new(mockBroker))
	repo.On("ClaimPending", mock.Anything, 10, mock.Anything).Return(nil, errors.New("db down")).Once()

	err := p.ProcessBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.DatabaseOperations.WithLabelValues("claim_pending_events", "error")))
}

func TestCleanupWorker_RunOnce(t *testing.T) {
	repo := new(mockOutboxRepo)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.On("DeleteProcessedBefore", mock.Anything, now.Add(-48*time.Hour)).Return(int64(3), nil).Once()

	NewOutboxCleanupWorker(repo, 48*time.Hour, time.Hour, logger.Nop()).RunOnce(context.Background(), now)

	repo.AssertExpectations(t)
}

func TestRetry_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retry(ctx, 3, time.Hour, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestProcessBatch_ReclaimsExpiredClaims(t *testing.T) {
	repo := new(mockOutboxRepo)
	p, _ := newProcessor(t, repo, new(mockBroker))

	before := time.Now()
	repo.On("ClaimPending", mock.Anything, 10, mock.MatchedBy(func(staleBefore time.Time) bool {
		return !staleBefore.Before(before.Add(-time.Minute)) && staleBefore.Before(time.Now().Add(-59*time.Second))
	})).Return([]*model.OutboxEvent{}, nil).Once()

	require.NoError(t, p.ProcessBatch(context.Background()))
	repo.AssertExpectations(t)
}

func TestProcessBatch_CancelledPublishStillMarksFailed(t *testing.T) {
	repo := new(mockOutboxRepo)
	broker := new(mockBroker)
	p, _ := newProcessor(t, repo, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventPatientRegistered}
	second := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventPatientRegistered}
	repo.On("ClaimPending", mock.Anything, 10, mock.Anything).Return([]*model.OutboxEvent{first, second}, nil).Once()
	broker.On("Publish", mock.Anything, "events", mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(context.Canceled).Once()
	repo.On("MarkFailed", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), first.ID, context.Canceled.Error()).Return(nil).Once()

	err := p.ProcessBatch(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	repo.AssertExpectations(t)
	broker.AssertNumberOfCalls(t, "Publish", 1)
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, second.ID, mock.Anything)
}

func TestProcessBatch_MarkProcessedUsesLiveContext(t *testing.T) {
	repo := new(mockOutboxRepo)
	broker := new(mockBroker)
	p, _ := newProcessor(t, repo, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	event := &model.OutboxEvent{ID: uuid.New(), EventType: model.EventUserCreated}
	repo.On("ClaimPending", mock.Anything, 10, mock.Anything).Return([]*model.OutboxEvent{event}, nil).Once()
	broker.On("Publish", mock.Anything, "events", mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(nil).Once()
	repo.On("MarkProcessed", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), event.ID).Return(nil).Once()

	require.NoError(t, p.ProcessBatch(ctx))
	repo.AssertExpectations(t)
}
