package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	authhandler "chronostamp/internal/auth/handler"
	authservice "chronostamp/internal/auth/service"
	challengestore "chronostamp/internal/auth/store/challenge"
	"chronostamp/internal/auth/token"
	collectionhandler "chronostamp/internal/collection/handler"
	collectionmetrics "chronostamp/internal/collection/metrics"
	collectionservice "chronostamp/internal/collection/service"
	collectionmemory "chronostamp/internal/collection/store/memory"
	collectionpostgres "chronostamp/internal/collection/store/postgres"
	"chronostamp/internal/events"
	"chronostamp/internal/events/relay"
	eventsmemory "chronostamp/internal/events/store/memory"
	eventspostgres "chronostamp/internal/events/store/postgres"
	"chronostamp/internal/platform/config"
	"chronostamp/internal/platform/httpserver"
	"chronostamp/internal/platform/logger"
	"chronostamp/internal/platform/metrics"
	"chronostamp/internal/platform/postgres"
	"chronostamp/internal/platform/redis"
	registryhandler "chronostamp/internal/registry/handler"
	registrymetrics "chronostamp/internal/registry/metrics"
	registryservice "chronostamp/internal/registry/service"
	registrymemory "chronostamp/internal/registry/store/memory"
	registrypostgres "chronostamp/internal/registry/store/postgres"
	httptransport "chronostamp/internal/transport/http"
	authmw "chronostamp/pkg/platform/middleware/auth"
	"chronostamp/pkg/platform/middleware/ratelimit"
	txcontext "chronostamp/pkg/platform/tx"
)

const (
	tokenIssuer   = "chronostamp"
	tokenAudience = "chronostamp-api"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	collections collectionservice.Store
	registries  registryservice.Store
	events      events.Store
	tx          txcontext.Runner
	db          *sql.DB
}

func run(log *slog.Logger) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.UsesDevSigningKey() {
		log.Warn("JWT_SIGNING_KEY not set; using development key")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checks := map[string]httptransport.HealthCheck{}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
		checks["postgres"] = st.db.PingContext
	}

	publisher := events.NewPublisher(st.events)

	collections, err := collectionservice.New(st.collections, st.tx,
		collectionservice.WithLogger(log),
		collectionservice.WithMetrics(collectionmetrics.New(reg)),
		collectionservice.WithEvents(publisher),
	)
	if err != nil {
		return err
	}
	registry, err := registryservice.New(cfg.Registry.Address, st.registries, collections, st.tx,
		registryservice.WithLogger(log),
		registryservice.WithMetrics(registrymetrics.New(reg)),
		registryservice.WithEvents(publisher),
		registryservice.WithOwnerPolicy(cfg.Registry.OwnerPolicy),
	)
	if err != nil {
		return err
	}
	if _, err := registry.Bootstrap(ctx, cfg.Registry.Owner); err != nil {
		return fmt.Errorf("bootstrap registry: %w", err)
	}
	log.Info("registry ready",
		"registry", cfg.Registry.Address.Hex(),
		"owner_policy", string(cfg.Registry.OwnerPolicy),
	)

	var challenges authservice.ChallengeStore = challengestore.NewInMemory()
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		challenges = challengestore.NewRedis(redisClient.Client)
		checks["redis"] = redisClient.Health
	}

	jwt := token.NewJWTService(cfg.JWTSigningKey, tokenIssuer, tokenAudience)
	auth, err := authservice.New(challenges, jwt,
		authservice.WithLogger(log),
		authservice.WithChallengeTTL(cfg.ChallengeTTL),
		authservice.WithTokenTTL(cfg.TokenTTL),
	)
	if err != nil {
		return err
	}

	requireCaller := authmw.RequireCaller(jwt, log)
	var collectionOpts []collectionhandler.Option
	if cfg.ClaimRateLimit > 0 {
		limiter := ratelimit.New(cfg.ClaimRateLimit, cfg.ClaimBurst)
		collectionOpts = append(collectionOpts,
			collectionhandler.WithClaimLimit(ratelimit.Middleware(limiter, ratelimit.ByCaller, log)))
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:   log,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
		Checks:   checks,
	},
		authhandler.New(auth, log),
		registryhandler.New(registry, log, requireCaller),
		collectionhandler.New(collections, log, requireCaller, collectionOpts...),
	)
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	if len(cfg.Kafka.Brokers) > 0 {
		if err := startRelay(gctx, g, cfg, log); err != nil {
			return err
		}
	}

	g.Go(func() error {
		log.Info("starting chronostamp", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStores(ctx context.Context, cfg config.Server, log *slog.Logger) (stores, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; state is kept in memory and lost on restart")
		return stores{
			collections: collectionmemory.New(),
			registries:  registrymemory.New(),
			events:      eventsmemory.NewInMemoryStore(),
			tx:          txcontext.NewSharded(cfg.TxTimeout),
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, err
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return stores{}, err
	}
	return stores{
		collections: collectionpostgres.New(db),
		registries:  registrypostgres.New(db),
		events:      eventspostgres.New(db),
		tx:          txcontext.NewSQL(db, cfg.TxTimeout),
		db:          db,
	}, nil
}

// startRelay publishes the Postgres outbox to Kafka until ctx ends.
func startRelay(ctx context.Context, g *errgroup.Group, cfg config.Server, log *slog.Logger) error {
	if cfg.DatabaseURL == "" {
		log.Warn("KAFKA_BROKERS set without DATABASE_URL; events are not relayed")
		return nil
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Kafka.Brokers...),
		kgo.ClientID("chronostamp"),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return fmt.Errorf("kafka client: %w", err)
	}
	if err := relay.EnsureTopic(ctx, client, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.Replicas); err != nil {
		client.Close()
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		client.Close()
		return fmt.Errorf("outbox pool: %w", err)
	}

	r, err := relay.New(relay.NewPgxOutbox(pool), client, cfg.Kafka.Topic,
		relay.WithLogger(log),
		relay.WithInterval(cfg.Kafka.RelayInterval),
	)
	if err != nil {
		pool.Close()
		client.Close()
		return err
	}

	g.Go(func() error {
		defer client.Close()
		defer pool.Close()
		log.Info("event relay started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
		return r.Run(ctx)
	})
	return nil
}
