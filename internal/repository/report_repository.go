package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/wims-bridge-api/internal/models"
	appErrors "github.com/noah-isme/wims-bridge-api/pkg/errors"
)

const (
	reportKeyPrefix = "wims-bridge:sync-run:"
	lastRunKey      = "wims-bridge:sync-run:last"
)

// ReportRepository keeps synchronisation run reports in Redis. Reports are
// operational breadcrumbs, not records: they expire after the configured
// TTL and losing them costs nothing but hindsight.
type ReportRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportRepository constructs the repository.
func NewReportRepository(client *redis.Client, ttl time.Duration) *ReportRepository {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &ReportRepository{client: client, ttl: ttl}
}

// SaveRun stores the report under its run id and marks it as the latest.
func (r *ReportRepository) SaveRun(ctx context.Context, report *models.SyncRunReport) error {
	if r.client == nil {
		return nil
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal sync run report: %w", err)
	}
	if err := r.client.Set(ctx, reportKeyPrefix+report.ID, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save sync run report: %w", err)
	}
	if err := r.client.Set(ctx, lastRunKey, report.ID, r.ttl).Err(); err != nil {
		return fmt.Errorf("mark last sync run: %w", err)
	}
	return nil
}

// FindRun returns one stored run report by id.
func (r *ReportRepository) FindRun(ctx context.Context, id string) (*models.SyncRunReport, error) {
	if r.client == nil {
		return nil, appErrors.ErrNotFound
	}
	raw, err := r.client.Get(ctx, reportKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get sync run report: %w", err)
	}
	var report models.SyncRunReport
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("unmarshal sync run report: %w", err)
	}
	return &report, nil
}

// LastRun returns the most recently saved run report.
func (r *ReportRepository) LastRun(ctx context.Context) (*models.SyncRunReport, error) {
	if r.client == nil {
		return nil, appErrors.ErrNotFound
	}
	id, err := r.client.Get(ctx, lastRunKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrNotFound
		}
		return nil, fmt.Errorf("get last sync run id: %w", err)
	}
	return r.FindRun(ctx, id)
}
