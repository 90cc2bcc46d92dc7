package internal

import (
	"bitwise74/fileshare-api/aws"
	"bitwise74/fileshare-api/internal/service"
	"bitwise74/fileshare-api/pkg/security"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is handed to every handler
type Deps struct {
	DB         *gorm.DB
	Redis      redis.Cmdable
	Argon      *security.ArgonHash
	Tokens     *security.TokenIssuer
	S3         *aws.S3Client
	Uploader   *service.Uploader
	Files      *service.Files
	Shares     *service.Shares
	Reconciler *service.Reconciler

	// Sets the Secure flag on the session cookie
	SecureCookies bool
	// Base of the share URLs handed to clients, may be empty
	PublicURL string
	// Storage quota given to new accounts
	MaxStorage int64
}
