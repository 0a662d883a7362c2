package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/ratethiscrow/crowapi/internal/config"
	"github.com/ratethiscrow/crowapi/internal/db"
	"github.com/ratethiscrow/crowapi/internal/repository"
	"github.com/ratethiscrow/crowapi/internal/service"
	"github.com/ratethiscrow/crowapi/internal/storage"
)

type App struct {
	Cfg             *config.Config
	DB              *sqlx.DB
	CrowService     *service.CrowService
	CrowmailService *service.CrowmailService
	UploadGate      *service.UploadGate
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Run database migrations
	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Storage is optional; without a bucket only img_url uploads work
	var imageStorage storage.Storage
	if cfg.StorageEnabled() {
		imageStorage, err = storage.New(ctx, cfg)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
	}

	emailService := service.NewEmailService(service.EmailConfig{
		APIKey:    cfg.ResendAPIKey,
		FromEmail: cfg.EmailFrom,
		AppURL:    cfg.AppURL,
		SiteURL:   cfg.SiteURL,
		AppName:   cfg.AppName,
		KeyTTL:    cfg.VerificationKeyExpiry,
		IsDev:     cfg.IsDevelopment(),
	})

	return Wire(cfg, database, emailService, imageStorage), nil
}

// Wire builds the services over an open database. The mailer and storage
// are passed in so tests can substitute them.
func Wire(cfg *config.Config, database *sqlx.DB, mailer service.Mailer, imageStorage storage.Storage) *App {
	// Repositories
	crowRepository := repository.NewCrowRepository(database)
	nameRepository := repository.NewNameRepository(database)
	keyRepository := repository.NewVerificationKeyRepository(database)
	subscriberRepository := repository.NewSubscriberRepository(database)

	// Services
	crowService := service.NewCrowService(crowRepository, nameRepository, imageStorage, service.CrowServiceConfig{
		RatingMin:           cfg.RatingMin,
		RatingMax:           cfg.RatingMax,
		LeaderboardFraction: cfg.LeaderboardFraction,
	})
	crowmailService := service.NewCrowmailService(keyRepository, subscriberRepository, mailer, cfg.VerificationKeyExpiry)
	uploadGate := service.NewUploadGate(cfg.UploadPass, cfg.UploadTokenSecret, cfg.UploadTokenExpiry, cfg.IsProduction())

	return &App{
		Cfg:             cfg,
		DB:              database,
		CrowService:     crowService,
		CrowmailService: crowmailService,
		UploadGate:      uploadGate,
	}
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
