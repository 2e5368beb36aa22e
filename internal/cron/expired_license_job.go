package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/tokenforge/licensecore/pkg/logger"
)

type expiredLicenseRepo interface {
	CountExpiredBefore(ctx context.Context, cutoff int64) (int64, error)
}

// ExpiredLicenseJobParams configure the expired license audit job.
type ExpiredLicenseJobParams struct {
	Logger     *logger.Logger
	Repository expiredLicenseRepo
}

// NewExpiredLicenseJob builds the job that reports how many time-bounded
// licenses have lapsed. Custody never changes on expiry; the count feeds
// operational dashboards only.
func NewExpiredLicenseJob(params ExpiredLicenseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("license repository required")
	}
	return &expiredLicenseJob{
		logg: params.Logger,
		repo: params.Repository,
		now:  time.Now,
	}, nil
}

type expiredLicenseJob struct {
	logg *logger.Logger
	repo expiredLicenseRepo
	now  func() time.Time
}

func (j *expiredLicenseJob) Name() string { return "expired-license-audit" }

func (j *expiredLicenseJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Unix()
	expired, err := j.repo.CountExpiredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("expired license audit: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":           cutoff,
		"expired_licenses": expired,
	})
	j.logg.Info(logCtx, "expired license audit complete")
	return nil
}
