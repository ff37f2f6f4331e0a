package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/foodorder/internal/domain"
)

// timelineRepository хранит историю заказа: размещение и отмену.
type timelineRepository struct {
	db *sql.DB
}

// NewTimelineRepository создаёт PostgreSQL-реализацию TimelineRepository.
func NewTimelineRepository(store *Store) domain.TimelineRepository {
	return &timelineRepository{db: store.DB()}
}

func (r *timelineRepository) Append(ctx context.Context, event domain.TimelineEvent) error {
	if event.OrderID <= 0 {
		return domain.InvalidInput(domain.ErrOrderIDRequired)
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now()
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO timeline_events (order_id, type, reason, occurred) VALUES ($1,$2,$3,$4)`,
		event.OrderID, event.Type, event.Reason, event.Occurred.UTC())
	if err != nil {
		return fmt.Errorf("append timeline event %s for order %d: %w", event.Type, event.OrderID, err)
	}
	return nil
}

// List возвращает события в порядке записи.
func (r *timelineRepository) List(ctx context.Context, orderID int64) ([]domain.TimelineEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	return queryAll(ctx, r.db, "timeline events", scanTimelineEvent, `
		SELECT order_id, type, reason, occurred
		FROM timeline_events
		WHERE order_id = $1
		ORDER BY occurred, id
	`, orderID)
}

func scanTimelineEvent(row rowScanner) (domain.TimelineEvent, error) {
	var event domain.TimelineEvent
	if err := row.Scan(&event.OrderID, &event.Type, &event.Reason, &event.Occurred); err != nil {
		return domain.TimelineEvent{}, err
	}
	event.Occurred = event.Occurred.UTC()
	return event, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
