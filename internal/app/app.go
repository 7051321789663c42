package app

import (
	"context"
	"log"
	"time"

	"github.com/okonkwo-dev/Ingesta/internal/config"
	"github.com/okonkwo-dev/Ingesta/internal/core"
	db "github.com/okonkwo-dev/Ingesta/internal/core/database"
	"github.com/okonkwo-dev/Ingesta/internal/core/notify"
	objectclient "github.com/okonkwo-dev/Ingesta/internal/core/object-client"
	vectorclient "github.com/okonkwo-dev/Ingesta/internal/core/vector-client"
	"github.com/okonkwo-dev/Ingesta/internal/services"
)

type App struct {
	DBClient    *db.DatabaseClient
	BlobStore   *objectclient.S3Client
	VectorIndex *vectorclient.PgVectorIndex
	Notifier    *notify.RedisNotifier
	Server      *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	blobStore, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	vectorIndex, err := vectorclient.NewPgVectorIndex(appCtx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	// The notifier is a best-effort wake-up channel; workers poll the job
	// table regardless, so a missing redis only costs latency.
	var notifier core.JobNotifier
	redisNotifier, err := notify.NewRedisNotifier(appCtx, cfg.RedisAddr, cfg.JobChannel)
	if err != nil {
		log.Printf("WARN: redis notifier unavailable, job notifications disabled: %v", err)
	} else {
		notifier = redisNotifier
	}

	policy := &services.UploadPolicy{
		MaxSizeBytes:      cfg.MaxUploadBytes,
		AllowedMediaTypes: cfg.AllowedMediaTypes,
		Bucket:            cfg.BucketName,
		ReadTimeout:       cfg.UploadReadTimeout,
	}
	authz := services.AuthorizationPolicy{RequireOwnership: true}

	userService := services.NewUserService(dbClient)
	ingestService := services.NewIngestService(dbClient, dbClient, blobStore, notifier, policy, authz, cfg.QueueName)
	documentService := services.NewDocumentService(dbClient, dbClient, blobStore, vectorIndex, authz, cfg.SignedURLTTL)

	server := NewServer(cfg, userService, ingestService, documentService)

	return &App{
		DBClient:    dbClient,
		BlobStore:   blobStore,
		VectorIndex: vectorIndex,
		Notifier:    redisNotifier,
		Server:      server,
	}, nil
}

func (a *App) Close() {
	if a.Notifier != nil {
		_ = a.Notifier.Close()
	}
	if a.VectorIndex != nil {
		_ = a.VectorIndex.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
