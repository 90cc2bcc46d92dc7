package service

import (
	"bitwise74/fileshare-api/aws"
	"bitwise74/fileshare-api/internal/model"
	"bitwise74/fileshare-api/pkg/metrics"
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Keys are checked against the database in chunks of this size
const reconcileBatch = 500

// A slot is only swept this long after it expired. A finalize that passed
// its expiry check just in time still owns the object until it commits.
const slotSweepGrace = 5 * time.Minute

// Reconciler removes storage objects that no file record or live upload
// slot accounts for. Objects younger than Grace are left alone so uploads
// that are still in flight aren't touched.
type Reconciler struct {
	DB    *gorm.DB
	Store BucketStore
	Grace time.Duration

	now func() time.Time
}

func NewReconciler(db *gorm.DB, store BucketStore, grace time.Duration) *Reconciler {
	return &Reconciler{
		DB:    db,
		Store: store,
		Grace: grace,
		now:   time.Now,
	}
}

type Report struct {
	ExpiredSlots   int `json:"expiredSlots"`
	OrphansDeleted int `json:"orphansDeleted"`
	Scanned        int `json:"scanned"`
}

// Run does a single sweep
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var rep Report

	n, err := r.dropExpiredSlots(ctx)
	if err != nil {
		return rep, err
	}
	rep.ExpiredSlots = n

	cutoff := r.now().Add(-r.Grace)
	var candidates []string

	err = r.Store.List(ctx, "", func(o aws.Object) error {
		rep.Scanned++

		if o.LastModified.After(cutoff) {
			return nil
		}

		candidates = append(candidates, o.Key)
		return nil
	})
	if err != nil {
		return rep, err
	}

	for start := 0; start < len(candidates); start += reconcileBatch {
		end := min(start+reconcileBatch, len(candidates))

		orphans, err := r.orphans(ctx, candidates[start:end])
		if err != nil {
			return rep, err
		}

		if len(orphans) == 0 {
			continue
		}

		deleted, err := r.Store.DeleteMany(ctx, orphans)
		rep.OrphansDeleted += deleted
		metrics.Reconciled.WithLabelValues("orphan").Add(float64(deleted))
		if err != nil {
			return rep, err
		}
	}

	return rep, nil
}

// dropExpiredSlots deletes slots past their expiry and whatever object may
// have been uploaded for them
func (r *Reconciler) dropExpiredSlots(ctx context.Context) (int, error) {
	var slots []model.UploadSlot

	err := r.DB.WithContext(ctx).
		Where("expires_at < ?", r.now().Add(-slotSweepGrace)).
		Find(&slots).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to query expired upload slots, %w", err)
	}

	if len(slots) == 0 {
		return 0, nil
	}

	keys := make([]string, len(slots))
	ids := make([]string, len(slots))
	for i, s := range slots {
		keys[i] = s.StorageKey
		ids[i] = s.ID
	}

	deleted, err := r.Store.DeleteMany(ctx, keys)
	metrics.Reconciled.WithLabelValues("expired_slot").Add(float64(deleted))
	if err != nil {
		return 0, err
	}

	err = r.DB.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&model.UploadSlot{}).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired upload slots, %w", err)
	}

	return len(slots), nil
}

// orphans returns the keys that belong to neither a file nor a slot
func (r *Reconciler) orphans(ctx context.Context, keys []string) ([]string, error) {
	known := make(map[string]struct{}, len(keys))

	for _, m := range []any{model.File{}, model.UploadSlot{}} {
		var found []string

		err := r.DB.WithContext(ctx).
			Model(m).
			Where("storage_key IN ?", keys).
			Pluck("storage_key", &found).
			Error
		if err != nil {
			return nil, fmt.Errorf("failed to look up storage keys, %w", err)
		}

		for _, k := range found {
			known[k] = struct{}{}
		}
	}

	var out []string
	for _, k := range keys {
		if _, ok := known[k]; !ok {
			out = append(out, k)
		}
	}

	return out, nil
}

// Schedule runs the sweep on a cron spec until the returned cron is stopped
func (r *Reconciler) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		rep, err := r.Run(ctx)
		if err != nil {
			zap.L().Error("Reconciliation sweep failed", zap.Error(err))
			return
		}

		zap.L().Info("Reconciliation sweep finished",
			zap.Int("expired_slots", rep.ExpiredSlots),
			zap.Int("orphans_deleted", rep.OrphansDeleted),
			zap.Int("scanned", rep.Scanned),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule, %w", err)
	}

	c.Start()
	zap.L().Debug("Reconciliation attached", zap.String("schedule", spec))

	return c, nil
}
