package maintenance

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	defaultOutboxRetention       = 30 * 24 * time.Hour
	defaultNotificationRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob removes outbox rows published longer ago than
// retention. Rows still waiting to publish, or parked after exhausting their
// attempts, are left alone.
func NewOutboxRetentionJob(db txRunner, repo outboxPruner, retention time.Duration) (Job, error) {
	if db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	return &outboxRetentionJob{db: db, repo: repo, retention: retention, now: time.Now}, nil
}

type outboxRetentionJob struct {
	db        txRunner
	repo      outboxPruner
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) (int64, error) {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("outbox retention: %w", err)
	}
	return deleted, nil
}

// NewNotificationCleanupJob removes notifications the recipient read longer
// ago than retention.
func NewNotificationCleanupJob(repo notificationPruner, retention time.Duration) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if retention <= 0 {
		retention = defaultNotificationRetention
	}
	return &notificationCleanupJob{repo: repo, retention: retention, now: time.Now}, nil
}

type notificationCleanupJob struct {
	repo      notificationPruner
	retention time.Duration
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

func (j *notificationCleanupJob) Run(ctx context.Context) (int64, error) {
	deleted, err := j.repo.DeleteReadBefore(ctx, j.now().UTC().Add(-j.retention))
	if err != nil {
		return 0, fmt.Errorf("notification cleanup: %w", err)
	}
	return deleted, nil
}
