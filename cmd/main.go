package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"vaultdrive/internal/config"
	"vaultdrive/internal/handler"
	"vaultdrive/internal/preview"
	"vaultdrive/internal/queue"
	"vaultdrive/internal/repository"
	"vaultdrive/internal/service"
	"vaultdrive/internal/service/s3"
	"vaultdrive/internal/service/scanner"
)

func connectWithRetry(dsn string, dbName string, maxAttempts int, delay time.Duration) (*sqlx.DB, error) {
	// Сначала подключаемся к базе postgres (системная база, которая всегда существует)
	pgDSN := strings.Replace(dsn, "dbname="+dbName, "dbname=postgres", 1)
	pgDB, err := sqlx.Connect("postgres", pgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres database: %v", err)
	}
	defer pgDB.Close()

	// Проверяем, существует ли рабочая база данных
	var exists bool
	err = pgDB.Get(&exists, "SELECT EXISTS(SELECT datname FROM pg_catalog.pg_database WHERE datname = $1)", dbName)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %v", err)
	}

	// Если базы нет, создаем её
	if !exists {
		log.Printf("Database %s does not exist, creating...", dbName)
		_, err = pgDB.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName))
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %v", err)
		}
	}

	var db *sqlx.DB
	for i := 0; i < maxAttempts; i++ {
		db, err = sqlx.Connect("postgres", dsn)
		if err == nil {
			return db, nil
		}

		log.Printf("Failed to connect to database (attempt %d/%d): %v", i+1, maxAttempts, err)
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %v", maxAttempts, err)
}

func runMigrations(cfg *config.Config) error {
	var m *migrate.Migrate
	var err error

	for i := 0; i < 5; i++ {
		m, err = migrate.New("file://migrations", cfg.Database.URL())
		if err == nil {
			break
		}
		log.Printf("Failed to create migrate instance (attempt %d/5): %v", i+1, err)
		time.Sleep(time.Second * 5)
	}

	if err != nil {
		return fmt.Errorf("failed to create migrate instance after retries: %w", err)
	}
	defer m.Close()

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return fmt.Errorf("failed to get migration version: %w", err)
	}

	if dirty {
		log.Printf("Found dirty database state at version %d, attempting to force version", version)
		if err := m.Force(int(version)); err != nil {
			return fmt.Errorf("failed to force version: %w", err)
		}
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func main() {
	// Загружаем конфигурации
	appConfig, err := config.NewConfig(".app.env")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Подключаемся к базе данных
	db, err := connectWithRetry(appConfig.Database.DSN(), appConfig.Database.Name, 5, time.Second*5)
	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	if err := runMigrations(appConfig); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Инициализация S3 клиента
	s3Config, err := s3.NewConfig(".s3.env")
	if err != nil {
		log.Fatalf("Failed to load S3 config: %v", err)
	}

	s3Client, err := s3.NewClient(s3Config)
	if err != nil {
		log.Fatalf("Failed to create S3 client: %v", err)
	}
	storage := s3.NewRetryingStorage(s3Client, nil)

	// Подключение к антивирусному демону
	virusScanner, err := scanner.NewClamdScanner(appConfig.Scanner.ClamdAddr, appConfig.Scanner.Timeout)
	if err != nil {
		log.Fatalf("Failed to connect to clamd: %v", err)
	}

	// Инициализация репозиториев
	fileRepo := repository.NewFileRepository(db)
	userRepo := repository.NewUserRepository(db)
	shareRepo := repository.NewShareRepository(db)
	jobRepo := repository.NewJobRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Инициализация сервисов
	auditService := service.NewAuditService(auditRepo)
	defer auditService.Close()

	quotaService := service.NewQuotaService(userRepo, fileRepo)
	uploadService := service.NewUploadService(
		fileRepo,
		quotaService,
		storage,
		auditService,
		appConfig.Upload.MaxFileSizeBytes,
		time.Duration(appConfig.Upload.URLTTLMinutes)*time.Minute,
	)
	previewService := preview.NewService()
	processingService := service.NewProcessingService(
		fileRepo,
		storage,
		virusScanner,
		previewService,
		auditService,
		appConfig.Upload.DedupEnabled,
	)
	fileService := service.NewFileService(fileRepo, userRepo, storage, auditService)
	shareService := service.NewShareService(shareRepo, fileRepo, userRepo, auditService)

	// Пул воркеров обработки
	pool, err := queue.NewPool(jobRepo, processingService.Process, processingService.HandleExhausted, queue.Config{
		Workers:        appConfig.Queue.Workers,
		MaxAttempts:    appConfig.Queue.MaxAttempts,
		BaseDelay:      appConfig.Queue.BaseDelay,
		PollInterval:   appConfig.Queue.PollInterval,
		LockTTL:        appConfig.Queue.LockTTL,
		ProcessTimeout: appConfig.Queue.ProcessTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to create worker pool: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}
	defer pool.Stop()

	// Периодическая чистка истекших ссылок
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if removed, err := shareRepo.CleanupExpired(ctx); err != nil {
				log.Printf("Failed to cleanup expired shares: %v", err)
			} else if removed > 0 {
				log.Printf("Removed %d expired shares", removed)
			}
			cancel()
		}
	}()

	// Инициализация хендлеров
	fileHandler := handler.NewFileHandler(uploadService, fileService, quotaService)
	shareHandler := handler.NewShareHandler(shareService, fileService)
	adminHandler := handler.NewAdminHandler(jobRepo)

	// Настройка HTTP роутера
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-Id", "X-User-Role"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// HTTP маршруты
	r.Route("/api", func(r chi.Router) {
		r.Post("/files/initiate", fileHandler.InitiateUpload)
		r.Get("/files", fileHandler.ListFiles)

		r.Route("/files/{uuid}", func(r chi.Router) {
			r.Post("/complete", fileHandler.CompleteUpload)
			r.Get("/", fileHandler.GetFile)
			r.Get("/download", fileHandler.DownloadFile)
			r.Delete("/", fileHandler.DeleteFile)
			r.Post("/override", fileHandler.OverrideQuarantine)
		})

		r.Get("/quota", fileHandler.GetQuota)

		r.Route("/shares", func(r chi.Router) {
			r.Post("/", shareHandler.CreateShare)
			r.Get("/{token}", shareHandler.ResolveShare)
		})

		r.Get("/admin/dead-letters", adminHandler.ListDeadLetters)
	})

	// Создаем HTTP сервер
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", appConfig.Server.Port),
		Handler: r,
	}

	// Канал для сигналов завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем HTTP сервер
	go func() {
		log.Printf("Starting HTTP server on port %s", appConfig.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down servers...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	pool.Stop()
	log.Println("Servers stopped")
}
