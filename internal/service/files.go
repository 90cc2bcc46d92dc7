package service

import (
	"bitwise74/fileshare-api/internal/model"
	"bitwise74/fileshare-api/pkg/util"
	"bitwise74/fileshare-api/pkg/validators"
	"bitwise74/fileshare-api/pkg/vpath"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Files handles finalized file records
type Files struct {
	DB    *gorm.DB
	Store ObjectStore

	now func() time.Time
}

func NewFiles(db *gorm.DB, store ObjectStore) *Files {
	return &Files{
		DB:    db,
		Store: store,
		now:   time.Now,
	}
}

// List returns every file of the user. Upload slots are never included.
func (f *Files) List(ctx context.Context, userID string) ([]model.File, error) {
	files := []model.File{}

	err := f.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("path asc").
		Find(&files).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to list files, %w", err)
	}

	return files, nil
}

// Directory returns the folders and files directly inside dir. A folder
// that no file path runs through doesn't exist.
func (f *Files) Directory(ctx context.Context, userID, dir string) (vpath.Listing[model.File], error) {
	files, err := f.List(ctx, userID)
	if err != nil {
		return vpath.Listing[model.File]{}, err
	}

	if !vpath.Exists(dir, vpath.FoldersOf(files)) {
		return vpath.Listing[model.File]{}, ErrDirNotFound
	}

	return vpath.List(dir, files), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Search returns a page of files whose display name contains query,
// ignoring case. Newest first.
func (f *Files) Search(ctx context.Context, userID, query string, limit, page int) ([]model.File, error) {
	files := []model.File{}
	pattern := "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"

	err := f.DB.WithContext(ctx).
		Where("user_id = ? AND LOWER(display_name) LIKE ? ESCAPE '\\'", userID, pattern).
		Order("created_at desc").
		Offset(page * limit).
		Limit(limit).
		Find(&files).
		Error
	if err != nil {
		return nil, fmt.Errorf("failed to search files, %w", err)
	}

	return files, nil
}

func (f *Files) Get(ctx context.Context, userID, fid string) (*model.File, error) {
	var file model.File

	err := f.DB.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, fid).
		First(&file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFileNotFound
		}

		return nil, fmt.Errorf("failed to fetch file, %w", err)
	}

	return &file, nil
}

type RenameRequest struct {
	UserID string
	FID    string
	Name   string
	Path   string
}

// Rename moves a file to a new name and path. The storage object is never
// touched since its key only depends on the fid. The returned bool is false
// when the file already had that name and path.
func (f *Files) Rename(ctx context.Context, r RenameRequest) (*model.File, bool, error) {
	if err := validators.FileNameValidator(r.Name); err != nil {
		return nil, false, invalid(err)
	}

	if err := vpath.Validate(r.Path); err != nil {
		return nil, false, invalid(err)
	}

	file, err := f.Get(ctx, r.UserID, r.FID)
	if err != nil {
		return nil, false, err
	}

	p := vpath.Clean(r.Path)
	if file.DisplayName == r.Name && file.Path == p {
		return file, false, nil
	}

	file.DisplayName = r.Name
	file.StoredName = fmt.Sprintf("%s-%d", r.Name, f.now().UnixMilli())
	file.Path = p

	err = f.DB.WithContext(ctx).
		Model(file).
		Select("display_name", "stored_name", "path", "updated_at").
		Updates(file).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, false, ErrPathTaken
		}

		return nil, false, fmt.Errorf("failed to update file, %w", err)
	}

	return file, true, nil
}

// Delete removes the file record and then its object. The record goes
// first, an object left behind by a failed delete is picked up by the
// reconciliation sweep.
func (f *Files) Delete(ctx context.Context, userID, fid string) (*model.Stats, error) {
	file, err := f.Get(ctx, userID, fid)
	if err != nil {
		return nil, err
	}

	var stats model.Stats

	err = f.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND id = ?", userID, fid).Delete(&model.File{})
		if res.Error != nil {
			return res.Error
		}

		if res.RowsAffected == 0 {
			return ErrFileNotFound
		}

		err := tx.
			Model(model.Stats{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"used_storage":   gorm.Expr("used_storage - ?", file.Size),
				"uploaded_files": gorm.Expr("uploaded_files - ?", 1),
			}).
			Error
		if err != nil {
			return err
		}

		err = tx.Where("user_id = ?", userID).First(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}

		return err
	})
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to delete file, %w", err)
	}

	if err := f.Store.Delete(context.WithoutCancel(ctx), file.StorageKey); err != nil {
		zap.L().Error("Failed to delete object of deleted file", zap.String("key", file.StorageKey), zap.Error(err))
	}

	return &stats, nil
}

// ViewURL returns a presigned download URL for the file
func (f *Files) ViewURL(ctx context.Context, userID, fid string) (string, *model.File, error) {
	file, err := f.Get(ctx, userID, fid)
	if err != nil {
		return "", nil, err
	}

	url, err := f.Store.PresignGet(ctx, file.StorageKey, util.DownloadName(file.DisplayName, file.Type))
	if err != nil {
		return "", nil, err
	}

	return url, file, nil
}

// Stats returns the storage usage of a user
func (f *Files) Stats(ctx context.Context, userID string) (*model.Stats, error) {
	var stats model.Stats

	err := f.DB.WithContext(ctx).Where("user_id = ?", userID).First(&stats).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to fetch stats, %w", err)
	}

	stats.UserID = userID
	return &stats, nil
}
