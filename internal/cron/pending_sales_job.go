package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/retaildesk/pkg/db/models"
	"github.com/angelmondragon/retaildesk/pkg/logger"
)

const defaultBatchSize = 100

type pendingSaleStore interface {
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Sale, error)
	Cancel(ctx context.Context, id int64) (bool, error)
}

type PendingSaleJobParams struct {
	Logger *logger.Logger
	Sales  pendingSaleStore
	// TTL is how long a QR sale may stay unpaid before it is cancelled.
	TTL       time.Duration
	BatchSize int
	Now       func() time.Time
}

// NewPendingSaleJob builds the job that cancels QR sales nobody paid in time.
// Stock is untouched: pending sales never decremented it.
func NewPendingSaleJob(params PendingSaleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales repository required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending sale ttl must be positive")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &pendingSaleJob{
		logg:  params.Logger,
		sales: params.Sales,
		ttl:   params.TTL,
		batch: batch,
		now:   now,
	}, nil
}

type pendingSaleJob struct {
	logg  *logger.Logger
	sales pendingSaleStore
	ttl   time.Duration
	batch int
	now   func() time.Time
}

func (j *pendingSaleJob) Name() string { return "pending-sale-expiry" }

func (j *pendingSaleJob) Run(ctx context.Context) (int, error) {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.sales.FindPendingBefore(ctx, cutoff, j.batch)
	if err != nil {
		return 0, fmt.Errorf("query pending sales: %w", err)
	}

	var errs error
	cancelled := 0
	for _, sale := range stale {
		ok, err := j.sales.Cancel(ctx, sale.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel sale %d: %w", sale.ID, err))
			continue
		}
		if !ok {
			// paid between the query and the update
			continue
		}
		cancelled++
		j.logg.Info(j.logg.WithSaleID(ctx, sale.ID), "pending sale expired")
	}
	return cancelled, errs
}
