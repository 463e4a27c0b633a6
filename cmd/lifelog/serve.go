package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/bigkaa/lifelog/internal/api/handlers"
	"github.com/bigkaa/lifelog/internal/api/middleware"
	"github.com/bigkaa/lifelog/internal/config"
	"github.com/bigkaa/lifelog/internal/database"
	"github.com/bigkaa/lifelog/internal/domain/model"
	"github.com/bigkaa/lifelog/internal/repository"
	"github.com/bigkaa/lifelog/internal/server"
	"github.com/bigkaa/lifelog/internal/service"
	"github.com/bigkaa/lifelog/internal/storage/blobstore"
)

// runMigrate применяет миграции и завершается.
func runMigrate(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	return database.Migrate(cfg, logger)
}

// runServe собирает зависимости и запускает HTTP-сервер.
func runServe(cmd *cobra.Command, _ []string) error {
	// 1. Конфигурация и логирование
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	logger := config.SetupLogger(cfg)
	logger.Info("lifelog запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)
	if os.Getenv("LL_DEPHEALTH_GROUP") == "" {
		logger.Warn("LL_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 2. Миграции БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		return fmt.Errorf("ошибка миграций БД: %w", err)
	}

	// 3. PostgreSQL (pgxpool)
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 4. Файловое хранилище
	blobs, err := blobstore.New(cfg.StorageDir, cfg.MaxFileSize, cfg.AllowedExtensions)
	if err != nil {
		return fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	logger.Info("Файловое хранилище готово",
		slog.String("dir", blobs.Root()),
		slog.Int64("max_file_size", blobs.MaxSize()),
	)

	// 5. Repositories
	foodRepo := repository.NewRecords[model.FoodRecord](pool, repository.FoodSchema, cfg.MaxPageSize)
	movieRepo := repository.NewRecords[model.MovieRecord](pool, repository.MovieSchema, cfg.MaxPageSize)
	noteRepo := repository.NewRecords[model.CalendarNote](pool, repository.NoteSchema, cfg.MaxPageSize)
	fileRepo := repository.NewRecords[model.FileRecord](pool, repository.FileSchema, cfg.MaxPageSize)
	txRunner := repository.NewTxRunner(pool)

	// 6. Services
	statsCache := service.NewStatsCache(cfg.StatsCacheSize, cfg.StatsCacheTTL)
	foodSvc := service.NewRecordService[model.FoodRecord]("food", foodRepo, service.FoodStats, statsCache, logger)
	movieSvc := service.NewRecordService[model.MovieRecord]("movies", movieRepo, service.MovieStats, statsCache, logger)
	noteSvc := service.NewNoteService(noteRepo, statsCache, logger)
	fileSvc := service.NewFileService(fileRepo, service.NewPgFileTx(txRunner, fileRepo), blobs, statsCache, logger)

	// 7. Фоновые задачи: сверка хранилища и мониторинг зависимостей
	reconciler := service.NewBlobReconciler(fileRepo, blobs, cfg.ReconcileInterval, cfg.ReconcileGrace, logger)
	reconciler.Start(ctx)
	defer reconciler.Stop()

	dephealthSvc, err := service.NewDephealthService(
		"lifelog",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL("postgres"),
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания dephealth: %w", err)
	}
	if err := dephealthSvc.Start(ctx); err != nil {
		return fmt.Errorf("ошибка запуска dephealth: %w", err)
	}
	defer dephealthSvc.Stop()

	// 8. Handlers
	h := server.Handlers{
		Health: handlers.NewHealthHandler(database.NewReadinessChecker(pool), blobs),
		Food: handlers.NewRecordHandler[model.FoodRecord, model.FoodInput, model.FoodPatch](
			"food", foodSvc, handlers.FoodFilters, cfg.DefaultPageSize, logger),
		Movies: handlers.NewRecordHandler[model.MovieRecord, model.MovieInput, model.MoviePatch](
			"movies", movieSvc, handlers.MovieFilters, cfg.DefaultPageSize, logger),
		Calendar: handlers.NewCalendarHandler(noteSvc, cfg.DefaultPageSize, logger),
		Files:    handlers.NewFilesHandler(fileSvc, cfg.MaxFileSize, cfg.DefaultPageSize, logger),
	}

	// 9. HTTP-сервер (блокирующий вызов с graceful shutdown)
	srv := server.New(cfg, logger, h,
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	)
	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("сервер завершился с ошибкой: %w", err)
	}

	logger.Info("lifelog остановлен")
	return nil
}
