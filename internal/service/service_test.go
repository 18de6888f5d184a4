package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/categorizer/internal/domain/event"
	"storefront/categorizer/internal/queue"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu         sync.Mutex
	messages   map[string]chan redis.XMessage
	acked      []string
	deliveries map[string]int64
}

func newFakeQueue() *fakeQueue {
	q := &fakeQueue{messages: map[string]chan redis.XMessage{}, deliveries: map[string]int64{}}
	for _, eventType := range event.Types {
		q.messages[queue.StreamName(eventType)] = make(chan redis.XMessage, 8)
	}
	return q
}

func (q *fakeQueue) Publish(ctx context.Context, e event.Event) (string, error) {
	data, err := e.EventValue()
	if err != nil {
		return "", err
	}
	id := e.EventType() + "-1"
	q.messages[queue.StreamName(e.EventType())] <- redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			queue.FieldEventType: e.EventType(),
			queue.FieldEventData: string(data),
		},
	}
	return id, nil
}

func (q *fakeQueue) Read(ctx context.Context, group, consumer, stream string) (*redis.XMessage, error) {
	select {
	case msg := <-q.messages[stream]:
		return &msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *fakeQueue) Ack(ctx context.Context, stream, group, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, msgID)
	return nil
}

func (q *fakeQueue) AutoClaim(ctx context.Context, group, consumer, stream string, minIdleTime time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

func (q *fakeQueue) DeliveryCount(ctx context.Context, stream, group, msgID string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.deliveries[msgID], nil
}

func (q *fakeQueue) EnsureStreamsExist(ctx context.Context) error {
	return nil
}

func (q *fakeQueue) ackedIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.acked...)
}

type fakeJournal struct {
	mu       sync.Mutex
	created  []*event.CategoryCreated
	assigned []*event.CategoryAssigned
	err      error
}

func (j *fakeJournal) Migrate(ctx context.Context) error {
	return nil
}

func (j *fakeJournal) SaveCategoryCreated(ctx context.Context, e *event.CategoryCreated) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.created = append(j.created, e)
	return nil
}

func (j *fakeJournal) SaveCategoryAssigned(ctx context.Context, e *event.CategoryAssigned) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	j.assigned = append(j.assigned, e)
	return nil
}

func (j *fakeJournal) counts() (int, int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.created), len(j.assigned)
}

func message(t *testing.T, e event.Event) *redis.XMessage {
	t.Helper()
	data, err := e.EventValue()
	require.NoError(t, err)
	return &redis.XMessage{
		ID: "1-0",
		Values: map[string]interface{}{
			queue.FieldEventType: e.EventType(),
			queue.FieldEventData: string(data),
		},
	}
}

func TestProcessMessageJournalsAndAcks(t *testing.T) {
	q := newFakeQueue()
	journal := &fakeJournal{}
	s := NewService(journal, q, "group", 30, 3)

	msg := message(t, &event.CategoryAssigned{ID: "e-1", TenantID: "t-1", ItemID: "i-1", CategoryID: "cat-9"})
	require.NoError(t, s.processMessage(context.Background(), queue.StreamName(event.TypeCategoryAssigned), msg))

	require.Len(t, journal.assigned, 1)
	assert.Equal(t, "cat-9", journal.assigned[0].CategoryID)
	assert.Equal(t, []string{"1-0"}, q.ackedIDs())
}

func TestProcessMessageLeavesFailuresPending(t *testing.T) {
	q := newFakeQueue()
	s := NewService(&fakeJournal{err: errors.New("db down")}, q, "group", 30, 3)

	msg := message(t, &event.CategoryCreated{ID: "e-2", CategoryID: "cat-1"})
	err := s.processMessage(context.Background(), queue.StreamName(event.TypeCategoryCreated), msg)
	require.Error(t, err)
	assert.Empty(t, q.ackedIDs())
}

func TestUnprocessableMessagesAreDropped(t *testing.T) {
	q := newFakeQueue()
	s := NewService(&fakeJournal{}, q, "group", 30, 3)

	msg := &redis.XMessage{ID: "1-0", Values: map[string]interface{}{
		queue.FieldEventType: "Unknown",
		queue.FieldEventData: "{}",
	}}
	require.ErrorIs(t, s.processMessage(context.Background(), "stream", msg), errUnprocessable)
	s.handle(context.Background(), "stream", msg)

	malformed := &redis.XMessage{ID: "2-0", Values: map[string]interface{}{
		queue.FieldEventType: event.TypeCategoryCreated,
		queue.FieldEventData: "{not json",
	}}
	s.handle(context.Background(), "stream", malformed)

	missing := &redis.XMessage{ID: "3-0", Values: map[string]interface{}{}}
	s.handle(context.Background(), "stream", missing)

	assert.Equal(t, []string{"1-0", "2-0", "3-0"}, q.ackedIDs())
}

func TestClaimedMessageRetriedUntilDeliveryLimit(t *testing.T) {
	q := newFakeQueue()
	journal := &fakeJournal{err: errors.New("not null violation")}
	s := NewService(journal, q, "group", 30, 3)
	stream := queue.StreamName(event.TypeCategoryCreated)
	msg := message(t, &event.CategoryCreated{ID: "e-1", CategoryID: "cat-1"})

	q.deliveries[msg.ID] = 3
	s.handleClaimed(context.Background(), stream, msg)
	assert.Empty(t, q.ackedIDs(), "journal failures are retried")

	q.deliveries[msg.ID] = 4
	s.handleClaimed(context.Background(), stream, msg)
	assert.Equal(t, []string{msg.ID}, q.ackedIDs())

	created, _ := journal.counts()
	assert.Zero(t, created)
}

func TestRunWorkersDrainsStreams(t *testing.T) {
	q := newFakeQueue()
	journal := &fakeJournal{}
	s := NewService(journal, q, "group", 30, 3)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.RunWorkers(ctx, 2) }()

	_, err := q.Publish(ctx, &event.CategoryCreated{ID: "e-1", CategoryID: "cat-1"})
	require.NoError(t, err)
	_, err = q.Publish(ctx, &event.CategoryAssigned{ID: "e-2", CategoryID: "cat-1"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		created, assigned := journal.counts()
		return created == 1 && assigned == 1
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, q.ackedIDs(), 2)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("workers did not stop")
	}
}
