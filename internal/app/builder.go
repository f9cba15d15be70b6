package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/advent259141/Astrbook/internal/auth/blacklist"
	"github.com/advent259141/Astrbook/internal/auth/password"
	"github.com/advent259141/Astrbook/internal/auth/token"
	"github.com/advent259141/Astrbook/internal/cache"
	"github.com/advent259141/Astrbook/internal/config"
	"github.com/advent259141/Astrbook/internal/counter"
	"github.com/advent259141/Astrbook/internal/domain"
	"github.com/advent259141/Astrbook/internal/forum"
	redisx "github.com/advent259141/Astrbook/internal/infra/cache/redis"
	"github.com/advent259141/Astrbook/internal/infra/database/postgres"
	s3storage "github.com/advent259141/Astrbook/internal/infra/storage/s3"
	"github.com/advent259141/Astrbook/internal/realtime"
	"github.com/advent259141/Astrbook/internal/transport/web"
)

type App struct {
	config *config.Config
	log    *log.Logger

	server   *web.Server
	repo     *postgres.PGRepo
	kv       domain.KV
	counters *counter.Engine
	hub      *realtime.Hub
	resync   *forum.Resync
}

func Build(ctx context.Context) (*App, error) {
	base := log.New(os.Stdout, "[app] ", log.LstdFlags)

	serverLog := log.New(base.Writer(), base.Prefix()+"[server] ", base.Flags())
	pgLog := log.New(base.Writer(), base.Prefix()+"[postgres] ", base.Flags())
	redisLog := log.New(base.Writer(), base.Prefix()+"[redis] ", base.Flags())
	cacheLog := log.New(base.Writer(), base.Prefix()+"[cache] ", base.Flags())
	counterLog := log.New(base.Writer(), base.Prefix()+"[counter] ", base.Flags())
	hubLog := log.New(base.Writer(), base.Prefix()+"[realtime] ", base.Flags())
	forumLog := log.New(base.Writer(), base.Prefix()+"[forum] ", base.Flags())

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed load config: %w", err)
	}
	base.Printf("\n  configuration: %s-------------------", cfg)

	base.Println("init PostgreSQL")
	pgRepo, err := postgres.NewPGRepo(ctx, pgLog, cfg.GetDSN(), cfg.DBScheme)
	if err != nil {
		return nil, fmt.Errorf("failed init postgres: %w", err)
	}
	base.Println("PostgreSQL is initialized")

	// Redis if configured; a cache-less deploy runs on the in-process KV.
	var kv domain.KV
	if cfg.RedisAddr != "" {
		base.Println("init Redis")
		rc := redisx.New(redisx.Config{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		}, redisLog)
		if err := rc.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed init redis: %w", err)
		}
		kv = rc
		base.Println("Redis is initialized")
	} else {
		base.Println("REDIS_ADDR empty, using in-process cache")
		kv = cache.NewMemory()
	}

	cacheLayer := cache.New(kv, cacheLog, cfg.CacheNegativeTTL)
	counters := counter.New(pgRepo, kv, counterLog, cfg.ViewFlushInterval, cfg.ViewFlushMax)
	hub := realtime.NewHub(hubLog, cfg.RealtimeQueueCap, cfg.HeartbeatInterval)

	// Auth primitives
	hasher := password.NewDefault()
	tm := token.New(cfg.AuthJWTSecret, cfg.AuthIssuer, cfg.AuthTokenTTL)
	bl := blacklist.NewStore(kv)

	svc := forum.New(forum.Config{
		UserTTL:     cfg.CacheUserTTL,
		BlocksTTL:   cfg.CacheBlocksTTL,
		SettingsTTL: cfg.CacheSettingsTTL,
		TrendingTTL: cfg.CacheTrendingTTL,
	}, forum.Deps{
		Logger:        forumLog,
		Users:         pgRepo,
		Threads:       pgRepo,
		Replies:       pgRepo,
		Likes:         pgRepo,
		Notifications: pgRepo,
		Blocks:        pgRepo,
		Settings:      pgRepo,
		Counters:      counters,
		Cache:         cacheLayer,
		Hub:           hub,
	})
	resync := forum.NewResync(svc, hub, cfg.ResyncInterval)

	deps := web.Deps{
		Forum: svc,
		Hub:   hub,
		Users: pgRepo,
		Auth:  web.AuthDeps{Hasher: hasher, Tokens: tm, Blacklist: bl},
		DB:    pgRepo,
		Cache: kv,
	}

	if cfg.S3Endpoint != "" {
		base.Println("init avatar storage")
		avatars, err := s3storage.New(ctx, s3storage.Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			UseSSL:    cfg.S3UseSSL,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed init s3: %w", err)
		}
		deps.Avatars = avatars
	} else {
		base.Println("S3_ENDPOINT empty, avatar routes disabled")
	}

	base.Println("init Server")
	server := web.New(serverLog, cfg, deps)
	base.Println("build ended")

	return &App{
		config:   cfg,
		log:      base,
		server:   server,
		repo:     pgRepo,
		kv:       kv,
		counters: counters,
		hub:      hub,
		resync:   resync,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	a.log.Println("start application...")
	go a.server.Run()
	go a.resync.Run()
	<-ctx.Done()
	a.log.Println("stop application...")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.server.Close(stopCtx)
	a.resync.Close()
	a.hub.Close()
	a.counters.Close()
	a.repo.Close()
	a.kv.Close()

	return nil
}
