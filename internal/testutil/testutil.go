// Package testutil has the fakes shared by the package tests
package testutil

import (
	"bitwise74/fileshare-api/aws"
	"bitwise74/fileshare-api/db"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var ErrStoreDown = errors.New("object store unavailable")

type object struct {
	size     int64
	modified time.Time
}

// FakeStore is an in-memory object store. Presigned URLs are fake but
// deterministic, Put simulates the client side upload.
type FakeStore struct {
	mu      sync.Mutex
	objects map[string]object

	FailPresign bool
	FailDelete  bool
	FailStat    bool

	Deleted []string
}

func NewFakeStore() *FakeStore {
	return &FakeStore{objects: make(map[string]object)}
}

func (s *FakeStore) Put(key string, size int64) {
	s.PutAt(key, size, time.Now())
}

func (s *FakeStore) PutAt(key string, size int64, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = object{size: size, modified: modified}
}

func (s *FakeStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *FakeStore) PresignPut(_ context.Context, key, contentType string) (string, error) {
	if s.FailPresign {
		return "", ErrStoreDown
	}

	return fmt.Sprintf("https://storage.test/%s?method=PUT&content-type=%s", key, contentType), nil
}

func (s *FakeStore) PresignGet(_ context.Context, key, filename string) (string, error) {
	if s.FailPresign {
		return "", ErrStoreDown
	}

	return fmt.Sprintf("https://storage.test/%s?method=GET&filename=%s", key, filename), nil
}

func (s *FakeStore) Stat(_ context.Context, key string) (int64, error) {
	if s.FailStat {
		return 0, ErrStoreDown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.objects[key]
	if !ok {
		return 0, aws.ErrObjectNotFound
	}

	return o.size, nil
}

func (s *FakeStore) Delete(_ context.Context, key string) error {
	if s.FailDelete {
		return ErrStoreDown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, key)
	s.Deleted = append(s.Deleted, key)
	return nil
}

func (s *FakeStore) DeleteMany(ctx context.Context, keys []string) (int, error) {
	for i, k := range keys {
		if err := s.Delete(ctx, k); err != nil {
			return i, err
		}
	}

	return len(keys), nil
}

func (s *FakeStore) List(_ context.Context, prefix string, fn func(aws.Object) error) error {
	s.mu.Lock()
	var objs []aws.Object
	for k, o := range s.objects {
		if strings.HasPrefix(k, prefix) {
			objs = append(objs, aws.Object{Key: k, Size: o.size, LastModified: o.modified})
		}
	}
	s.mu.Unlock()

	sort.Slice(objs, func(i, j int) bool { return objs[i].Key < objs[j].Key })

	for _, o := range objs {
		if err := fn(o); err != nil {
			return err
		}
	}

	return nil
}

// NewDB returns a migrated in-memory SQLite database
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	d, err := db.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))

	t.Cleanup(func() {
		if sqlDB, err := d.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return d
}

// NewRedis starts a miniredis server and returns it with a client
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return mr, rdb
}
