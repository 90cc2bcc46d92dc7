package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/redis/go-redis/v9"
)

const (
	shareKeyPrefix     = "share:"
	defaultShareHours  = 24
	maxShareHours      = 24 * 7
	unlimitedViews     = -1
	shareTokenLength   = 21
	maxShareViewsLimit = 10000
)

var (
	ErrShareExpiry = errors.New("expireHours must be between 1 and 168")
	ErrShareViews  = errors.New("maxViews must be between 0 and 10000")
)

// redeemScript atomically consumes one view of a share link. The link is
// deleted together with its last view. Unlimited links store -1.
var redeemScript = redis.NewScript(`
local v = redis.call('HMGET', KEYS[1], 'user_id', 'fid', 'views')
if not v[1] then
	return nil
end

local views = tonumber(v[3])
if views == 0 then
	redis.call('DEL', KEYS[1])
	return nil
end

if views > 0 then
	views = views - 1
	if views == 0 then
		redis.call('DEL', KEYS[1])
	else
		redis.call('HSET', KEYS[1], 'views', views)
	end
end

return {v[1], v[2]}
`)

// Shares stores public share links in Redis. A link only points at a fid,
// the file record and its object stay owned by the user.
type Shares struct {
	Redis redis.Cmdable
	Files *Files

	now func() time.Time
}

func NewShares(rdb redis.Cmdable, files *Files) *Shares {
	return &Shares{
		Redis: rdb,
		Files: files,
		now:   time.Now,
	}
}

type ShareOptions struct {
	ViewOnce    bool
	ExpireHours int // 0 picks the default of 24 hours
	MaxViews    int // 0 means unlimited
}

type Share struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	MaxViews  int       `json:"maxViews"` // -1 for unlimited
}

// Create makes a share link for a file the user owns
func (s *Shares) Create(ctx context.Context, userID, fid string, o ShareOptions) (*Share, error) {
	if o.ExpireHours == 0 {
		o.ExpireHours = defaultShareHours
	}

	if o.ExpireHours < 1 || o.ExpireHours > maxShareHours {
		return nil, invalid(ErrShareExpiry)
	}

	if o.MaxViews < 0 || o.MaxViews > maxShareViewsLimit {
		return nil, invalid(ErrShareViews)
	}

	views := o.MaxViews
	switch {
	case o.ViewOnce:
		views = 1
	case views == 0:
		views = unlimitedViews
	}

	if _, err := s.Files.Get(ctx, userID, fid); err != nil {
		return nil, err
	}

	token, err := gonanoid.New(shareTokenLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate share token, %w", err)
	}

	ttl := time.Duration(o.ExpireHours) * time.Hour
	key := shareKeyPrefix + token

	_, err = s.Redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, map[string]any{
			"user_id": userID,
			"fid":     fid,
			"views":   views,
		})
		p.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store share link, %w", err)
	}

	return &Share{
		Token:     token,
		ExpiresAt: s.now().Add(ttl),
		MaxViews:  views,
	}, nil
}

// Redeem consumes one view of the link and returns the owner and fid it
// points at
func (s *Shares) Redeem(ctx context.Context, token string) (string, string, error) {
	if token == "" {
		return "", "", ErrShareNotFound
	}

	res, err := redeemScript.Run(ctx, s.Redis, []string{shareKeyPrefix + token}).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", "", ErrShareNotFound
		}

		return "", "", fmt.Errorf("failed to redeem share link, %w", err)
	}

	if len(res) != 2 {
		return "", "", ErrShareNotFound
	}

	return res[0], res[1], nil
}

// Open redeems a link and presigns a download of the file behind it
func (s *Shares) Open(ctx context.Context, token string) (string, string, error) {
	owner, fid, err := s.Redeem(ctx, token)
	if err != nil {
		return "", "", err
	}

	url, file, err := s.Files.ViewURL(ctx, owner, fid)
	if err != nil {
		// The file was deleted after the link was made
		if errors.Is(err, ErrFileNotFound) {
			return "", "", ErrShareNotFound
		}

		return "", "", err
	}

	return url, file.DisplayName, nil
}
