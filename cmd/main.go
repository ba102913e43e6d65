package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dtroode/hasura-webhook/internal/api/http/handler"
	"github.com/dtroode/hasura-webhook/internal/api/http/router"
	httpServer "github.com/dtroode/hasura-webhook/internal/api/http/server"
	redisCache "github.com/dtroode/hasura-webhook/internal/cache/redis"
	"github.com/dtroode/hasura-webhook/internal/config"
	"github.com/dtroode/hasura-webhook/internal/identity"
	"github.com/dtroode/hasura-webhook/internal/logger"
	"github.com/dtroode/hasura-webhook/internal/metrics"
	"github.com/dtroode/hasura-webhook/internal/model"
	"github.com/dtroode/hasura-webhook/internal/repository/postgres"
	"github.com/dtroode/hasura-webhook/internal/server"
	"github.com/dtroode/hasura-webhook/internal/service"
	storage "github.com/dtroode/hasura-webhook/internal/storage/minio"
	"github.com/dtroode/hasura-webhook/internal/token"
)

var (
	buildVersion = "N/A" // set by ldflags
	buildDate    = "N/A" // set by ldflags
	buildCommit  = "N/A" // set by ldflags
)

const devTokenTTL = time.Hour

func main() {
	devSubject := flag.String("dev-token", "", "print an HS256 token for the given subject and exit (requires IDENTITY_JWT_SECRET)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	if *devSubject != "" {
		printDevToken(logger, cfg.Identity.JWTSecret, *devSubject)
		return
	}

	m := metrics.New()

	db, err := postgres.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("failed to initialize database", "error", err)
	}
	defer db.Close()

	checks := map[string]handler.Pinger{"postgres": db}

	var userStore model.UserStore = postgres.NewUserRepository(db, cfg.Database.Timeout)
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		cached := redisCache.NewUserStore(userStore, rdb, cfg.Redis.TTL, logger)
		checks["redis"] = cached
		userStore = cached
		logger.Info("subject cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.TTL)
	}

	verifier, err := newVerifier(ctx, cfg.Identity, logger)
	if err != nil {
		logger.Fatal("failed to initialize identity verifier", "error", err)
	}

	resolution := service.NewResolution(verifier, userStore, m, logger)

	fileHandler, err := newFileHandler(ctx, cfg, m, logger)
	if err != nil {
		logger.Fatal("failed to initialize storage client", "error", err)
	}

	r := router.New(
		handler.NewWebhook(resolution, logger),
		fileHandler,
		handler.NewHealth(checks, cfg.Database.Timeout, logger),
		m,
		logger,
	)
	srv := httpServer.NewHTTPServer(r.Register(), fmt.Sprintf(":%s", cfg.Port))
	sl := server.NewSecurityLayer(cfg.HTTP)

	var wg sync.WaitGroup
	wg.Add(1)
	go func(s model.Server) {
		defer wg.Done()
		logger.Info("Starting server on", "address", s.Address())
		if err := s.Start(sl); err != nil {
			logger.Error("failed to start server", "error", err)
			stop()
		}
	}(srv)

	logAppVersion()

	<-ctx.Done()
	logger.Info("received interruption signal, shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("error during server shutdown", "error", err, "address", srv.Address())
	}

	wg.Wait()
	logger.Info("shutdown complete")
}

// newVerifier uses the shared-secret verifier when a secret is configured
// and the OIDC issuer otherwise.
func newVerifier(ctx context.Context, cfg config.Identity, logger *logger.Logger) (model.IdentityVerifier, error) {
	if cfg.JWTSecret != "" {
		logger.Warn("identity: using HS256 shared-secret verifier")
		return token.NewJWT(cfg.JWTSecret), nil
	}

	v, err := identity.NewOIDC(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("identity: verifying OIDC tokens", "issuer", cfg.IssuerURL(), "audience", cfg.ExpectedAudience())
	return v, nil
}

// newFileHandler returns nil when no bucket is configured; the storage proxy
// routes then answer with a 400 status body.
func newFileHandler(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *logger.Logger) (*handler.File, error) {
	if cfg.Storage.Bucket == "" {
		logger.Warn("storage: no bucket configured, file routes disabled")
		return nil, nil
	}

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	storageClient, err := storage.NewClient(ctx, minioClient, storage.Options{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		PublicBaseURL: cfg.Storage.PublicURL,
		EnsureBucket:  cfg.Storage.CreateBucket,
	})
	if err != nil {
		return nil, err
	}

	files := service.NewFile(storageClient, cfg.Storage.AppPrefix, m, logger)
	return handler.NewFile(files, cfg.Upload.MaxBytes, logger), nil
}

func printDevToken(logger *logger.Logger, secret, subject string) {
	if secret == "" {
		logger.Fatal("IDENTITY_JWT_SECRET is required to issue development tokens")
	}

	tok, err := token.NewJWT(secret).Issue(subject, devTokenTTL)
	if err != nil {
		logger.Fatal("failed to issue token", "error", err)
	}
	fmt.Println(tok)
}

func logAppVersion() {
	tmpl := `
Build version: %s
Build date: %s
Build commit: %s
`

	fmt.Printf(tmpl, buildVersion, buildDate, buildCommit)
}
