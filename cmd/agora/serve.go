package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	// Drivers
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	// Instrumentation
	"github.com/exaring/otelpgx"
	"github.com/redis/go-redis/extra/redisotel/v9"

	// Interne
	"github.com/jupiterclapton/agora/config"
	"github.com/jupiterclapton/agora/internal/adapters/primary/events"
	httpadapter "github.com/jupiterclapton/agora/internal/adapters/primary/http"
	"github.com/jupiterclapton/agora/internal/adapters/primary/scheduler"
	"github.com/jupiterclapton/agora/internal/adapters/primary/ws"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/eventbroker"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/live"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/mailer"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/media"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/push"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/repository"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/security"
	"github.com/jupiterclapton/agora/internal/adapters/secondary/timeline"
	"github.com/jupiterclapton/agora/internal/core/services"
	"github.com/jupiterclapton/agora/pkg/telemetry"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Run the HTTP API, the realtime hub, the feed fan-out consumer and the story archiver",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "migrate",
			Usage: "apply pending migrations before serving",
		},
	},
	Action: func(ctx context.Context, c *cli.Command) error {
		cfg, err := setup(c)
		if err != nil {
			return err
		}
		return serve(ctx, cfg, c.Bool("migrate"))
	},
}

func serve(ctx context.Context, cfg *config.Config, migrateFirst bool) error {
	logger := slog.Default()
	logger.Info("🚀 Starting Agora", "env", cfg.Env, "version", version)

	// 1. Télémétrie (Tracing)
	tp, err := telemetry.InitTracer(ctx, telemetry.TracerConfig{
		ServiceName: cfg.ServiceName,
		Version:     version,
		Env:         cfg.Env,
		Endpoint:    cfg.OtelEndpoint,
	})
	if err != nil {
		logger.Error("Failed to init tracer", "error", err)
	} else {
		defer func() { _ = tp.Shutdown(context.Background()) }()
	}

	// 2. Migrations (optionnel)
	if migrateFirst {
		m, err := repository.NewMigrator(cfg.DBUrl, logger)
		if err != nil {
			return err
		}
		err = m.Up(ctx)
		_ = m.Close()
		if err != nil {
			return err
		}
	}

	// 3. Infrastructure: Base de données (Postgres)
	dbConfig, err := pgxpool.ParseConfig(cfg.DBUrl)
	if err != nil {
		return fmt.Errorf("unable to parse DB config: %w", err)
	}
	// Instrumentation SQL (Pour voir les requêtes dans Jaeger)
	dbConfig.ConnConfig.Tracer = otelpgx.NewTracer()

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %w", err)
	}
	defer dbPool.Close()
	logger.Info("✅ Connected to Postgres")

	// 4. Infrastructure: Redis (timelines, révocation, temps réel)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisotel.InstrumentTracing(rdb); err != nil {
		logger.Warn("Failed to instrument redis", "error", err)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("unable to connect to redis: %w", err)
	}
	logger.Info("✅ Connected to Redis")

	// 5. Infrastructure: Event Broker (NATS JetStream)
	nc, err := nats.Connect(cfg.NatsUrl, nats.Name(cfg.ServiceName))
	if err != nil {
		return fmt.Errorf("unable to connect to NATS: %w", err)
	}
	defer nc.Close()
	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("unable to init JetStream: %w", err)
	}
	broker, err := eventbroker.NewNatsBroker(ctx, js, logger)
	if err != nil {
		return err
	}
	logger.Info("✅ Connected to NATS")

	// 6. Initialisation des Adapters (Driven)
	store := repository.NewStore(dbPool)

	tokens, err := loadTokenProvider(cfg)
	if err != nil {
		return err
	}
	uploader, err := media.NewCloudinaryUploader(cfg.CloudinaryURL, "agora")
	if err != nil {
		return err
	}
	smtp, err := mailer.NewSMTPMailer(mailer.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
	if err != nil {
		return err
	}
	hasher, err := security.NewArgon2Hasher(security.PasswordCost{
		MemoryKiB:   cfg.Argon2.MemoryKiB,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
	})
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	pushSender := push.NewWebPushSender(push.Config{
		VAPIDPublicKey:  cfg.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.VAPIDPrivateKey,
		Subscriber:      cfg.VAPIDSubscriber,
	}, &http.Client{Timeout: cfg.PushTimeout})

	dispatcher := services.NewDispatcher(store, pushSender, cfg.PushTimeout, logger)
	// Les envois push en vol se terminent avant la fermeture des connexions.
	defer dispatcher.Wait()

	// 7. Initialisation du Core (Domain Logic)
	identity := services.NewIdentityService(store, hasher, tokens,
		security.NewRedisRevoker(rdb), smtp, broker, logger)
	chat := services.NewChatService(store, uploader, dispatcher, live.NewRedisBroadcaster(rdb), logger)
	feed := services.NewFeedService(timeline.NewRedisTimelineRepo(rdb), store, logger)
	stories := services.NewStoryService(store, uploader, cfg.StoryTTL, logger)

	svc := httpadapter.Services{
		Identity: identity,
		Profiles: services.NewProfileService(store, uploader, logger),
		Graph:    services.NewGraphService(store, dispatcher, broker, logger),
		Posts:    services.NewPostService(store, uploader, dispatcher, broker, logger),
		Comments: services.NewCommentService(store, uploader, dispatcher, logger),
		Likes:    services.NewLikeService(store, dispatcher, logger),
		Stories:  stories,
		Chat:     chat,
		Feed:     feed,
	}

	// 8. Initialisation des Primary Adapters
	hub := ws.NewHub(chat, live.NewRedisSessions(rdb), cfg.CORSOrigins, logger)
	server := httpadapter.NewServer(svc, httpadapter.Options{
		CORSOrigins:   cfg.CORSOrigins,
		AuthRateLimit: cfg.AuthRateLimit,
		AuthBurst:     cfg.AuthBurst,
		PublicURL:     cfg.PublicURL,
		SecureCookies: cfg.IsProd(),
	}, logger, hub,
		httpadapter.HealthCheck{Name: "postgres", Check: store.Ping},
		httpadapter.HealthCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		httpadapter.HealthCheck{Name: "nats", Check: func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New(nc.Status().String())
			}
			return nil
		}},
	)
	consumer := events.NewFeedConsumer(js, feed, logger)
	archiver, err := scheduler.NewStoryArchiver(stories, cfg.StoryArchiveSchedule, logger)
	if err != nil {
		return err
	}

	// 9. Démarrage : le premier composant en erreur arrête les autres
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx, ":"+cfg.HTTPPort) })
	g.Go(func() error { return hub.Run(gctx, rdb) })
	g.Go(func() error { return consumer.Run(gctx) })
	g.Go(func() error { return archiver.Run(gctx) })

	err = g.Wait()
	logger.Info("👋 Agora exited")
	return err
}

func loadTokenProvider(cfg *config.Config) (*security.JWTProvider, error) {
	privPEM, err := os.ReadFile(cfg.RSAPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}
	pubPEM, err := os.ReadFile(cfg.RSAPublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}
	return security.NewJWTProvider(privPEM, pubPEM)
}
