// Package app contains the route table and the setup of everything the
// handlers depend on
package app

import (
	"bitwise74/fileshare-api/app/file"
	"bitwise74/fileshare-api/app/root"
	"bitwise74/fileshare-api/app/share"
	"bitwise74/fileshare-api/app/user"
	"bitwise74/fileshare-api/aws"
	"bitwise74/fileshare-api/db"
	"bitwise74/fileshare-api/internal"
	"bitwise74/fileshare-api/internal/service"
	"bitwise74/fileshare-api/pkg/metrics"
	"bitwise74/fileshare-api/pkg/middleware"
	"bitwise74/fileshare-api/pkg/security"
	"bitwise74/fileshare-api/pkg/validators"
	"fmt"
	"strings"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"

	// JSON bodies only, file bytes go straight to storage
	maxBodySize = 1 << 20
)

// NewRouter connects to the database, Redis and S3 and returns the
// router together with the dependencies it was built on
func NewRouter() (*gin.Engine, *internal.Deps, error) {
	makeLogger()

	conn, err := db.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	s3, err := aws.NewS3()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}

	d := NewDeps(conn, db.NewRedis(), s3)
	d.S3 = s3

	return Routes(d), d, nil
}

// NewDeps builds the services on top of already opened connections
func NewDeps(conn *gorm.DB, rdb redis.Cmdable, store service.BucketStore) *internal.Deps {
	maxUsage := viper.GetInt64("storage.max_usage")
	files := service.NewFiles(conn, store)

	return &internal.Deps{
		DB:    conn,
		Redis: rdb,
		Argon: security.New(),
		Tokens: security.NewTokenIssuer(
			viper.GetString("jwt.secret"),
			time.Duration(viper.GetInt("jwt.expiry_days"))*24*time.Hour,
		),
		Uploader: service.NewUploader(
			conn,
			store,
			time.Duration(viper.GetInt("upload.slot_ttl_minutes"))*time.Minute,
			viper.GetInt64("upload.max_size"),
			maxUsage,
		),
		Files:  files,
		Shares: service.NewShares(rdb, files),
		Reconciler: service.NewReconciler(
			conn,
			store,
			time.Duration(viper.GetInt("reconcile.grace_hours"))*time.Hour,
		),
		SecureCookies: viper.GetBool("host.ssl.enabled"),
		PublicURL:     viper.GetString("host.public_url"),
		MaxStorage:    maxUsage,
	}
}

// Routes registers every endpoint on a new engine
func Routes(d *internal.Deps) *gin.Engine {
	validators.RegisterBindings()

	router := gin.New()

	// Nobody is trusted by default so X-Forwarded-For can't pick the rate
	// limiter key
	if err := router.SetTrustedProxies(listSetting("host.trusted_proxies")); err != nil {
		zap.L().Warn("Invalid trusted proxies, falling back to none", zap.Error(err))
		router.SetTrustedProxies(nil)
	}

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     corsOrigins(),
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
		metrics.Middleware(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewJWTMiddleware(d.Tokens)
	rateLimiter := middleware.RateLimiterMiddleware(d.Redis, middleware.RateLimiterConfig{
		Limit:    viper.GetInt("ratelimit.limit"),
		Window:   time.Duration(viper.GetInt("ratelimit.window_seconds")) * time.Second,
		FailMode: middleware.FailMode(viper.GetString("ratelimit.fail_mode")),
	})

	// HEAD /heartbeat		-> Used to check if the server is alive
	router.HEAD("/heartbeat", root.Heartbeat)

	// GET /metrics			-> Prometheus scrape endpoint
	router.GET("/metrics", metrics.Handler())

	m := router.Group("", rateLimiter, middleware.BodySizeLimiter(maxBodySize))
	{
		// POST /signup			-> Registers a new user
		m.POST("/signup", func(c *gin.Context) { user.UserRegister(c, d) })

		// POST /login			-> Logs in a user and sets the session cookie
		m.POST("/login", func(c *gin.Context) { user.UserLogin(c, d) })

		// POST /verify			-> Returns who a session token belongs to
		m.POST("/verify", func(c *gin.Context) { user.UserVerify(c, d) })

		// POST /logout			-> Clears the session cookie
		m.POST("/logout", func(c *gin.Context) { user.UserLogout(c, d) })

		// GET /share/:token		-> Opens a share link, no session needed
		m.GET("/share/:token", func(c *gin.Context) { share.ShareOpen(c, d) })
	}

	api := m.Group("/api", jwt)
	{
		// GET /api/user		-> Returns the identity and stats of the user
		api.GET("/user", func(c *gin.Context) { user.UserFetch(c, d) })

		// GET /api/getAllFiles		-> Returns every file of the user
		api.GET("/getAllFiles", func(c *gin.Context) { file.FileFetchBulk(c, d) })

		// GET /api/listDirectory	-> Returns the folders and files inside ?path=
		api.GET("/listDirectory", func(c *gin.Context) { file.FileListDir(c, d) })

		// GET /api/searchFiles		-> Searches files by name
		api.GET("/searchFiles", func(c *gin.Context) { file.FileSearch(c, d) })

		// POST /api/uploadFile		-> Issues an upload slot with a presigned PUT URL
		api.POST("/uploadFile", func(c *gin.Context) { file.FileUpload(c, d) })

		// POST /api/uploadFileSucess	-> Finalizes an upload slot into a file
		api.POST("/uploadFileSucess", func(c *gin.Context) { file.FileUploadSuccess(c, d) })
		api.POST("/uploadFileSuccess", func(c *gin.Context) { file.FileUploadSuccess(c, d) })

		// POST /api/updateFile		-> Renames or moves a file
		api.POST("/updateFile", func(c *gin.Context) { file.FileEdit(c, d) })

		// POST /api/deleteFile		-> Deletes a file and its object
		api.POST("/deleteFile", func(c *gin.Context) { file.FileDelete(c, d) })

		// GET /api/viewFile		-> Returns a presigned download URL
		api.GET("/viewFile", cacheView(d), func(c *gin.Context) { file.FileView(c, d) })

		// POST /api/shareFile		-> Creates a public share link
		api.POST("/shareFile", func(c *gin.Context) { share.ShareCreate(c, d) })
	}

	return router
}

func makeLogger() {
	var cfg zap.Config

	if viper.GetString("app.log_format") == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
	}

	if lvl, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

// listSetting accepts both a list and a comma separated string, which is
// what an env var gives
func listSetting(key string) []string {
	var out []string

	for _, o := range viper.GetStringSlice(key) {
		for _, part := range strings.Split(o, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}

	return out
}

func corsOrigins() []string {
	out := listSetting("host.cors_origins")
	if len(out) == 0 {
		out = []string{"http://localhost:5173"}
	}

	return out
}

// cacheView caches presigned download URLs per user and file. Entries live
// well below the URL expiry so a cached URL is never close to dying.
func cacheView(d *internal.Deps) gin.HandlerFunc {
	ttl := time.Minute
	if d.S3 != nil {
		ttl = min(ttl, d.S3.Expiry/2)
	}

	store := persist.NewMemoryStore(ttl)

	return cache.Cache(store, ttl, cache.WithCacheStrategyByRequest(func(c *gin.Context) (bool, cache.Strategy) {
		return true, cache.Strategy{
			CacheKey: "view:" + c.GetString("userID") + ":" + c.Query("fid"),
		}
	}))
}
