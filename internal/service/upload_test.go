package service

import (
	"bitwise74/fileshare-api/internal/model"
	"bitwise74/fileshare-api/internal/testutil"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testMaxSize = 10 << 20
	testQuota   = 50 << 20
)

type env struct {
	db       *gorm.DB
	store    *testutil.FakeStore
	uploader *Uploader
	files    *Files
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db := testutil.NewDB(t)
	store := testutil.NewFakeStore()

	return &env{
		db:       db,
		store:    store,
		uploader: NewUploader(db, store, time.Hour, testMaxSize, testQuota),
		files:    NewFiles(db, store),
	}
}

func (e *env) user(t *testing.T, id string) {
	t.Helper()

	require.NoError(t, e.db.Create(&model.User{
		ID:           id,
		Name:         id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Stats:        model.Stats{UserID: id, MaxStorage: testQuota},
	}).Error)
}

func (e *env) stats(t *testing.T, id string) model.Stats {
	t.Helper()

	var s model.Stats
	require.NoError(t, e.db.Where("user_id = ?", id).First(&s).Error)
	return s
}

func (e *env) slotCount(t *testing.T) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(model.UploadSlot{}).Count(&n).Error)
	return n
}

// upload runs the whole handshake and returns the finalized file
func (e *env) upload(t *testing.T, userID, path string, size int64) *model.File {
	t.Helper()
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID:      userID,
		Name:        "file.txt",
		Path:        path,
		ContentType: "text/plain",
		Size:        size,
	})
	require.NoError(t, err)

	e.store.Put(model.StorageKeyFor(userID, slot.FID), size)

	f, err := e.uploader.Finalize(ctx, FinalizeRequest{
		UserID:       userID,
		FID:          slot.FID,
		OriginalName: "file.txt",
		CustomName:   "file.txt",
		Path:         path,
		ContentType:  "text/plain",
		Size:         size,
	})
	require.NoError(t, err)

	return f
}

func TestUpload_FinalizeThenListContainsFile(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID:      "u1",
		Name:        "report.pdf",
		Path:        "/Documents/report.pdf",
		ContentType: "application/pdf",
		Size:        1234,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, slot.FID)
	assert.Contains(t, slot.URL, "u1/"+slot.FID)

	// Nothing is listed before the upload is finalized
	files, err := e.files.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, files)

	e.store.Put("u1/"+slot.FID, 1234)

	f, err := e.uploader.Finalize(ctx, FinalizeRequest{
		UserID:       "u1",
		FID:          slot.FID,
		OriginalName: "report.pdf",
		CustomName:   "Q3 report",
		Path:         "/Documents/report.pdf",
		ContentType:  "application/pdf",
		Size:         1234,
	})
	require.NoError(t, err)

	assert.Equal(t, slot.FID, f.ID)
	assert.Equal(t, "u1/"+slot.FID, f.StorageKey)
	assert.Regexp(t, `^report\.pdf-\d+$`, f.StoredName)

	files, err = e.files.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, slot.FID, files[0].ID)
	assert.Equal(t, "/Documents/report.pdf", files[0].Path)
	assert.Equal(t, "Q3 report", files[0].DisplayName)
	assert.Equal(t, "application/pdf", files[0].Type)

	assert.Zero(t, e.slotCount(t))

	s := e.stats(t, "u1")
	assert.Equal(t, int64(1234), s.UsedStorage)
	assert.Equal(t, 1, s.UploadedFiles)
}

func TestUpload_AbandonedSlotIsNeverListed(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	_, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)

	files, err := e.files.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, e.store.Deleted)
}

func TestFinalize_UnknownFIDIsRejectedWithoutCompensation(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")

	_, err := e.uploader.Finalize(context.Background(), FinalizeRequest{
		UserID: "u1", FID: "never-issued", OriginalName: "a.txt", Path: "/a.txt",
	})

	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.Empty(t, e.store.Deleted)
}

func TestFinalize_ForeignSlotIsRejected(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	e.user(t, "u2")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)
	e.store.Put("u1/"+slot.FID, 10)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{
		UserID: "u2", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt",
	})
	assert.ErrorIs(t, err, ErrSlotNotFound)
	assert.True(t, e.store.Has("u1/"+slot.FID))
	assert.Equal(t, int64(1), e.slotCount(t))
}

func TestFinalize_ValidationFailureCompensates(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)
	e.store.Put("u1/"+slot.FID, 10)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{
		UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/docs/../a.txt",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)

	assert.False(t, e.store.Has("u1/"+slot.FID))
	assert.Contains(t, e.store.Deleted, "u1/"+slot.FID)
	assert.Zero(t, e.slotCount(t))

	// The slot is gone, a retry can't finalize it anymore
	_, err = e.uploader.Finalize(ctx, FinalizeRequest{
		UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt",
	})
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestFinalize_DuplicatePathCompensatesLoser(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	first, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)
	second, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)

	e.store.Put("u1/"+first.FID, 10)
	e.store.Put("u1/"+second.FID, 10)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: first.FID, OriginalName: "a.txt", Path: "/a.txt"})
	require.NoError(t, err)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: second.FID, OriginalName: "a.txt", Path: "/a.txt"})
	assert.ErrorIs(t, err, ErrPathTaken)

	assert.True(t, e.store.Has("u1/"+first.FID))
	assert.False(t, e.store.Has("u1/"+second.FID))

	files, err := e.files.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Equal(t, 1, e.stats(t, "u1").UploadedFiles)
}

func TestFinalize_MissingObjectKeepsSlot(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt"})
	assert.ErrorIs(t, err, ErrObjectMissing)
	assert.Equal(t, int64(1), e.slotCount(t))

	e.store.Put("u1/"+slot.FID, 10)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt"})
	assert.NoError(t, err)
}

func TestFinalize_ExpiredSlotCompensates(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)
	e.store.Put("u1/"+slot.FID, 10)

	e.uploader.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt"})
	assert.ErrorIs(t, err, ErrSlotExpired)
	assert.False(t, e.store.Has("u1/"+slot.FID))
	assert.Zero(t, e.slotCount(t))
}

func TestFinalize_StoredObjectSizeIsChecked(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)

	// The client declared 10 bytes but uploaded more than allowed
	e.store.Put("u1/"+slot.FID, testMaxSize+1)

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, OriginalName: "a.txt", Path: "/a.txt"})
	assert.ErrorIs(t, err, ErrFileTooLarge)
	assert.False(t, e.store.Has("u1/"+slot.FID))
}

func TestFinalize_CompensationFailureStillReturnsError(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	require.NoError(t, err)
	e.store.Put("u1/"+slot.FID, 10)
	e.store.FailDelete = true

	_, err = e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, OriginalName: "", CustomName: "a/b", Path: "/a.txt"})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, e.store.Has("u1/"+slot.FID))
}

func TestFinalize_UsesSlotDefaults(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	slot, err := e.uploader.IssueSlot(ctx, SlotRequest{
		UserID: "u1", Name: "photo.jpg", Path: "/Pictures/photo.jpg", ContentType: "image/jpeg", Size: 10,
	})
	require.NoError(t, err)
	e.store.Put("u1/"+slot.FID, 10)

	f, err := e.uploader.Finalize(ctx, FinalizeRequest{UserID: "u1", FID: slot.FID, ContentType: "text/html"})
	require.NoError(t, err)

	assert.Equal(t, "photo.jpg", f.DisplayName)
	assert.Equal(t, "/Pictures/photo.jpg", f.Path)
	assert.Equal(t, "image/jpeg", f.Type)
}

func TestIssueSlot_Rejections(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	ctx := context.Background()

	base := SlotRequest{UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10}

	tooBig := base
	tooBig.Size = testMaxSize + 1
	_, err := e.uploader.IssueSlot(ctx, tooBig)
	assert.ErrorIs(t, err, ErrFileTooLarge)

	empty := base
	empty.Size = 0
	_, err = e.uploader.IssueSlot(ctx, empty)
	assert.ErrorIs(t, err, ErrInvalidInput)

	badPath := base
	badPath.Path = "/"
	_, err = e.uploader.IssueSlot(ctx, badPath)
	assert.ErrorIs(t, err, ErrInvalidInput)

	badType := base
	badType.ContentType = "what is this"
	_, err = e.uploader.IssueSlot(ctx, badType)
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, e.db.Model(model.Stats{}).Where("user_id = ?", "u1").Update("used_storage", testQuota-5).Error)
	_, err = e.uploader.IssueSlot(ctx, base)
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	assert.Zero(t, e.slotCount(t))
}

func TestIssueSlot_PathAlreadyTaken(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	e.upload(t, "u1", "/a.txt", 10)

	_, err := e.uploader.IssueSlot(context.Background(), SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "a.txt", ContentType: "text/plain", Size: 10,
	})
	assert.ErrorIs(t, err, ErrPathTaken)
}

func TestIssueSlot_PresignFailureLeavesNothing(t *testing.T) {
	e := newEnv(t)
	e.user(t, "u1")
	e.store.FailPresign = true

	_, err := e.uploader.IssueSlot(context.Background(), SlotRequest{
		UserID: "u1", Name: "a.txt", Path: "/a.txt", ContentType: "text/plain", Size: 10,
	})
	assert.ErrorIs(t, err, testutil.ErrStoreDown)
	assert.Zero(t, e.slotCount(t))
	assert.Empty(t, e.store.Deleted)
}
