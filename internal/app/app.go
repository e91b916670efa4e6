package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goalnest/goalnest/internal/appstate"
	"github.com/goalnest/goalnest/internal/config"
	"github.com/goalnest/goalnest/internal/db"
	"github.com/goalnest/goalnest/internal/repository"
	"github.com/goalnest/goalnest/internal/service"
	"github.com/goalnest/goalnest/internal/sharing"
	"github.com/goalnest/goalnest/internal/storage"
	"github.com/jmoiron/sqlx"
)

type App struct {
	Cfg                  *config.Config
	DB                   *sqlx.DB
	State                *appstate.State
	ProfileService       *service.ProfileService
	EmailService         *service.EmailService
	HintService          *service.HintService
	GoalService          *service.GoalService
	CollaborationService *service.CollaborationService
	BackupService        *service.BackupService
	Scheduler            *service.SchedulerService
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	a, err := Build(ctx, cfg, database)
	if err != nil {
		database.Close()
		return nil, err
	}
	return a, nil
}

// Build wires repositories and services over an open, migrated database.
func Build(ctx context.Context, cfg *config.Config, database *sqlx.DB) (*App, error) {
	// Repositories
	goalRepository := repository.NewGoalRepository(database)
	contactRepository := repository.NewContactRepository(database)
	hintRepository := repository.NewHintRepository(database)
	trashRepository := repository.NewTrashRepository(database)
	sharedGoalRepository := repository.NewSharedGoalRepository(database)
	settingsRepository := repository.NewSettingsRepository(database)

	// Storage (optional)
	var backupStorage storage.Storage
	if cfg.BackupsEnabled() {
		s3Storage, err := storage.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize storage: %w", err)
		}
		backupStorage = s3Storage
	}

	// Services
	state := appstate.New()
	relay := sharing.NewClient(cfg.RelayURL, cfg.RelayTimeout)

	emailService := service.NewEmailService(
		cfg.ResendAPIKey,
		cfg.EmailFrom,
		cfg.AppName,
		cfg.IsDevelopment(),
	)
	profileService := service.NewProfileService(settingsRepository, cfg.DisplayName)
	hintService := service.NewHintService(database, hintRepository, goalRepository, relay, state, nil)
	goalService := service.NewGoalService(
		database,
		goalRepository,
		trashRepository,
		sharedGoalRepository,
		hintService,
		state,
		cfg.TrashRetention,
		nil,
	)
	collaborationService := service.NewCollaborationService(
		database,
		relay,
		contactRepository,
		goalRepository,
		sharedGoalRepository,
		settingsRepository,
		goalService,
		profileService,
		emailService,
		state,
		cfg.AppURL,
		nil,
	)
	backupService := service.NewBackupService(
		database,
		goalRepository,
		trashRepository,
		contactRepository,
		sharedGoalRepository,
		hintRepository,
		profileService,
		backupStorage,
		emailService,
		cfg.BackupEmail,
		cfg.BackupRetention,
		nil,
	)

	return &App{
		Cfg:                  cfg,
		DB:                   database,
		State:                state,
		ProfileService:       profileService,
		EmailService:         emailService,
		HintService:          hintService,
		GoalService:          goalService,
		CollaborationService: collaborationService,
		BackupService:        backupService,
	}, nil
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

// StartScheduler registers the periodic jobs and starts them. Close stops
// the scheduler.
func (a *App) StartScheduler() error {
	scheduler := service.NewSchedulerService(time.UTC, 5*time.Minute)

	jobs := []job{
		{"hint_recheck", a.Cfg.HintSweepSchedule, func(ctx context.Context) error {
			n, err := a.HintService.RecheckDue(ctx)
			if n > 0 {
				slog.Info("hints rechecked", "records", n)
			}
			return err
		}},
		{"trash_purge", a.Cfg.TrashPurgeSchedule, func(ctx context.Context) error {
			n, err := a.GoalService.PurgeExpired(ctx)
			if n > 0 {
				slog.Info("trash purged", "goals", n)
			}
			return err
		}},
		{"share_poll", a.Cfg.SharePollSchedule, func(ctx context.Context) error {
			_, err := a.CollaborationService.Refresh(ctx)
			return err
		}},
	}
	if a.Cfg.BackupsEnabled() {
		jobs = append(jobs, job{"backup", a.Cfg.BackupSchedule, func(ctx context.Context) error {
			_, err := a.BackupService.Run(ctx)
			return err
		}})
	}

	for _, j := range jobs {
		_, err := scheduler.Schedule(j.name, j.spec, j.run)
		if err != nil {
			return err
		}
	}

	scheduler.Start()
	a.Scheduler = scheduler
	slog.Info("scheduler started", "jobs", scheduler.Entries())
	return nil
}

func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
