package service

import (
	"bitwise74/fileshare-api/aws"
	"bitwise74/fileshare-api/internal/model"
	"bitwise74/fileshare-api/pkg/metrics"
	"bitwise74/fileshare-api/pkg/validators"
	"bitwise74/fileshare-api/pkg/vpath"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const compensationTimeout = 10 * time.Second

// Uploader runs the upload handshake. A slot is issued together with a
// presigned PUT URL, the client uploads straight to storage and then asks
// for the upload to be finalized into a file record. If finalizing fails
// the uploaded object is deleted again.
type Uploader struct {
	DB      *gorm.DB
	Store   ObjectStore
	SlotTTL time.Duration
	MaxSize int64
	Quota   int64 // used when a user has no stats row

	now func() time.Time
}

func NewUploader(db *gorm.DB, store ObjectStore, slotTTL time.Duration, maxSize, quota int64) *Uploader {
	return &Uploader{
		DB:      db,
		Store:   store,
		SlotTTL: slotTTL,
		MaxSize: maxSize,
		Quota:   quota,
		now:     time.Now,
	}
}

type SlotRequest struct {
	UserID      string
	Name        string
	Path        string
	ContentType string
	Size        int64
}

type Slot struct {
	FID       string    `json:"fid"`
	URL       string    `json:"presignedURL"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// IssueSlot reserves a fid for a new upload and returns the URL to PUT the
// bytes to. No file record exists until Finalize succeeds.
func (u *Uploader) IssueSlot(ctx context.Context, r SlotRequest) (*Slot, error) {
	if err := validators.FileNameValidator(r.Name); err != nil {
		return nil, invalid(err)
	}

	if err := vpath.Validate(r.Path); err != nil {
		return nil, invalid(err)
	}

	if err := validators.ContentTypeValidator(r.ContentType); err != nil {
		return nil, invalid(err)
	}

	if _, err := validators.SizeValidator(r.Size, u.MaxSize); err != nil {
		if errors.Is(err, validators.ErrFileTooLarge) {
			return nil, ErrFileTooLarge
		}

		return nil, invalid(err)
	}

	p := vpath.Clean(r.Path)

	if err := u.checkQuota(u.DB.WithContext(ctx), r.UserID, r.Size); err != nil {
		return nil, err
	}

	var taken bool
	err := u.DB.WithContext(ctx).
		Model(model.File{}).
		Select("count(*) > 0").
		Where("user_id = ? AND path = ?", r.UserID, p).
		Find(&taken).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to check path, %w", err)
	}

	if taken {
		return nil, ErrPathTaken
	}

	fid := uuid.NewString()
	now := u.now()

	slot := &model.UploadSlot{
		ID:          fid,
		UserID:      r.UserID,
		StorageKey:  model.StorageKeyFor(r.UserID, fid),
		Name:        r.Name,
		Path:        p,
		ContentType: r.ContentType,
		Size:        r.Size,
		ExpiresAt:   now.Add(u.SlotTTL),
		CreatedAt:   now,
	}

	if err := u.DB.WithContext(ctx).Create(slot).Error; err != nil {
		return nil, fmt.Errorf("failed to store upload slot, %w", err)
	}

	url, err := u.Store.PresignPut(ctx, slot.StorageKey, slot.ContentType)
	if err != nil {
		// No URL left the server, so nothing can have been uploaded
		if dErr := u.DB.WithContext(context.WithoutCancel(ctx)).Delete(slot).Error; dErr != nil {
			zap.L().Warn("Failed to drop unused upload slot", zap.String("fid", fid), zap.Error(dErr))
		}

		return nil, err
	}

	metrics.SlotsIssued.Inc()

	return &Slot{
		FID:       fid,
		URL:       url,
		ExpiresAt: slot.ExpiresAt,
	}, nil
}

type FinalizeRequest struct {
	UserID       string
	FID          string
	OriginalName string
	CustomName   string
	Path         string
	ContentType  string
	Size         int64
}

// Finalize turns an uploaded slot into a file record. Every failure after
// the slot has been found deletes the uploaded object, except a missing
// object, which keeps the slot so the client can retry once the PUT
// completes.
func (u *Uploader) Finalize(ctx context.Context, r FinalizeRequest) (*model.File, error) {
	var slot model.UploadSlot

	err := u.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", r.FID, r.UserID).
		First(&slot).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSlotNotFound
		}

		return nil, fmt.Errorf("failed to look up upload slot, %w", err)
	}

	now := u.now()

	if slot.Expired(now) {
		u.compensate(ctx, &slot, "expired")
		return nil, ErrSlotExpired
	}

	original := r.OriginalName
	if original == "" {
		original = slot.Name
	}

	display := r.CustomName
	if display == "" {
		display = original
	}

	p := r.Path
	if p == "" {
		p = slot.Path
	}

	for _, check := range []func() error{
		func() error { return validators.FileNameValidator(original) },
		func() error { return validators.FileNameValidator(display) },
		func() error { return vpath.Validate(p) },
	} {
		if err := check(); err != nil {
			u.compensate(ctx, &slot, "validation")
			return nil, invalid(err)
		}
	}

	size, err := u.Store.Stat(ctx, slot.StorageKey)
	if err != nil {
		if errors.Is(err, aws.ErrObjectNotFound) {
			return nil, ErrObjectMissing
		}

		u.compensate(ctx, &slot, "stat")
		return nil, err
	}

	// The declared size was only a hint, the stored object is what counts
	if size > u.MaxSize {
		u.compensate(ctx, &slot, "too_large")
		return nil, ErrFileTooLarge
	}

	file := &model.File{
		ID:          slot.ID,
		UserID:      slot.UserID,
		StoredName:  fmt.Sprintf("%s-%d", original, now.UnixMilli()),
		DisplayName: display,
		Path:        vpath.Clean(p),
		Type:        slot.ContentType,
		Size:        size,
		StorageKey:  slot.StorageKey,
	}

	raced := false

	err = u.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND user_id = ?", slot.ID, slot.UserID).Delete(&model.UploadSlot{})
		if res.Error != nil {
			return res.Error
		}

		// Someone else finalized this slot first and owns the object now
		if res.RowsAffected != 1 {
			raced = true
			return ErrSlotNotFound
		}

		if err := u.checkQuota(tx, slot.UserID, size); err != nil {
			return err
		}

		if err := tx.Create(file).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrPathTaken
			}

			return err
		}

		return tx.
			Model(model.Stats{}).
			Where("user_id = ?", slot.UserID).
			Updates(map[string]any{
				"used_storage":   gorm.Expr("used_storage + ?", size),
				"uploaded_files": gorm.Expr("uploaded_files + ?", 1),
			}).
			Error
	})
	if err != nil {
		if raced {
			return nil, ErrSlotNotFound
		}

		u.compensate(ctx, &slot, "transaction")

		if errors.Is(err, ErrPathTaken) || errors.Is(err, ErrQuotaExceeded) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to store file record, %w", err)
	}

	metrics.UploadsFinalized.Inc()

	return file, nil
}

// checkQuota fails with ErrQuotaExceeded if adding size bytes would push
// the user over their storage limit
func (u *Uploader) checkQuota(db *gorm.DB, userID string, size int64) error {
	var stats model.Stats

	err := db.Where("user_id = ?", userID).First(&stats).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to fetch user stats, %w", err)
		}

		stats.MaxStorage = u.Quota
	}

	if stats.UsedStorage+size > stats.MaxStorage {
		return ErrQuotaExceeded
	}

	return nil
}

// compensate deletes the object of a slot and the slot itself. It runs
// even if the request was cancelled, a dangling object would otherwise
// only be found by the reconciliation sweep.
func (u *Uploader) compensate(ctx context.Context, slot *model.UploadSlot, reason string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	log := zap.L().With(zap.String("fid", slot.ID), zap.String("key", slot.StorageKey), zap.String("reason", reason))

	if err := u.Store.Delete(ctx, slot.StorageKey); err != nil {
		metrics.Compensations.WithLabelValues("failed").Inc()
		log.Error("Failed to delete object of failed upload", zap.Error(err))
	} else {
		metrics.Compensations.WithLabelValues("ok").Inc()
		log.Debug("Deleted object of failed upload")
	}

	err := u.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", slot.ID, slot.UserID).
		Delete(&model.UploadSlot{}).
		Error
	if err != nil {
		log.Error("Failed to delete upload slot", zap.Error(err))
	}
}
