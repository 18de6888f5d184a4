package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storefront/categorizer/internal/domain/event"
	"storefront/categorizer/internal/queue"
	"storefront/categorizer/internal/repository"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// errUnprocessable marks messages that can never be handled, whatever the number of attempts.
var errUnprocessable = errors.New("unprocessable message")

// Service drains the assignment event streams into the journal.
type Service struct {
	journal       repository.AssignmentJournal
	queue         queue.Queue
	groupName     string
	minIdleTime   time.Duration
	maxDeliveries int64
	retryDelay    time.Duration
}

func NewService(
	journal repository.AssignmentJournal,
	queue queue.Queue,
	groupName string,
	minIdleTime int,
	maxDeliveries int,
) *Service {
	return &Service{
		journal:       journal,
		queue:         queue,
		groupName:     groupName,
		minIdleTime:   time.Duration(minIdleTime) * time.Second,
		maxDeliveries: int64(maxDeliveries),
		retryDelay:    time.Second,
	}
}

func (s *Service) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	for _, eventType := range event.Types {
		s.runWorkersForStream(ctx, &wg, max(1, numWorkers), queue.StreamName(eventType), eventType)
	}

	wg.Wait()
	return nil
}

func (s *Service) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer for this stream
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(s.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s", workerType)
				claimedMessages, err := s.queue.AutoClaim(ctx, s.groupName, consumer, streamName, s.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						s.handleClaimed(ctx, streamName, &msg)
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
				}

				msg, err := s.queue.Read(ctx, s.groupName, consumer, streamName)
				if err != nil {
					if ctx.Err() != nil {
						continue
					}
					log.Errorf("❌ Failed to read from %s: %v", streamName, err)
					s.pause(ctx)
					continue
				}

				if msg != nil {
					// Unacked messages stay pending until the auto-claimer retries them
					s.handle(ctx, streamName, msg)
				}
			}
		}(i + 1)
	}
}

func (s *Service) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.retryDelay):
	}
}

// handleClaimed gives up on messages delivered more than maxDeliveries times.
func (s *Service) handleClaimed(ctx context.Context, streamName string, msg *redis.XMessage) {
	count, err := s.queue.DeliveryCount(ctx, streamName, s.groupName, msg.ID)
	if err != nil {
		log.Errorf("❌ Failed to get delivery count of message %s: %v", msg.ID, err)
	} else if count > s.maxDeliveries {
		log.Errorf("🗑️ Giving up on message %s from %s after %d deliveries", msg.ID, streamName, count)
		s.ack(ctx, streamName, msg.ID)
		return
	}

	s.handle(ctx, streamName, msg)
}

func (s *Service) handle(ctx context.Context, streamName string, msg *redis.XMessage) {
	err := s.processMessage(ctx, streamName, msg)
	switch {
	case err == nil:
	case errors.Is(err, errUnprocessable):
		log.Errorf("🗑️ Dropping message %s from %s: %v", msg.ID, streamName, err)
		s.ack(ctx, streamName, msg.ID)
	default:
		log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
	}
}

func (s *Service) ack(ctx context.Context, streamName, msgID string) {
	if err := s.queue.Ack(ctx, streamName, s.groupName, msgID); err != nil {
		log.Errorf("❌ Failed to ack message %s: %v", msgID, err)
	}
}

func (s *Service) processMessage(ctx context.Context, streamName string, msg *redis.XMessage) error {
	eventType, ok := msg.Values[queue.FieldEventType].(string)
	if !ok {
		return fmt.Errorf("%w: invalid event type in message %s", errUnprocessable, msg.ID)
	}

	eventData, ok := msg.Values[queue.FieldEventData].(string)
	if !ok {
		return fmt.Errorf("%w: invalid event data in message %s", errUnprocessable, msg.ID)
	}

	switch eventType {
	case event.TypeCategoryCreated:
		created, err := event.Unmarshal[*event.CategoryCreated]([]byte(eventData))
		if err != nil {
			return fmt.Errorf("%w: failed to unmarshal category created event: %v", errUnprocessable, err)
		}

		if err := s.journal.SaveCategoryCreated(ctx, created); err != nil {
			return err
		}
		log.Infof("📒 Journaled category %s (%s) for tenant %s", created.CategoryID, created.Name, created.TenantID)

	case event.TypeCategoryAssigned:
		assigned, err := event.Unmarshal[*event.CategoryAssigned]([]byte(eventData))
		if err != nil {
			return fmt.Errorf("%w: failed to unmarshal category assigned event: %v", errUnprocessable, err)
		}

		if err := s.journal.SaveCategoryAssigned(ctx, assigned); err != nil {
			return err
		}
		log.Infof("📒 Journaled assignment of %s to item %s for tenant %s", assigned.CategoryID, assigned.ItemID, assigned.TenantID)

	default:
		return fmt.Errorf("%w: unknown event type %s", errUnprocessable, eventType)
	}

	if err := s.queue.Ack(ctx, streamName, s.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}
