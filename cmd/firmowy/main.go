package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"firmowy/internal/admin"
	"firmowy/internal/auth"
	"firmowy/internal/bills"
	"firmowy/internal/config"
	"firmowy/internal/db"
	"firmowy/internal/employees"
	"firmowy/internal/glossary"
	"firmowy/internal/httpserver"
	"firmowy/internal/logging"
	"firmowy/internal/seed"
	"firmowy/internal/tasks"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	ctx := context.Background()

	cfg, err := config.Load(args)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer closer.Close()

	if cfg.InsecureSecret() {
		logger.Warn("using the built-in development JWT secret, set FIRMOWY_JWT_SECRET")
	}

	dbConn, err := db.Open(ctx, cfg.DBDSN, db.Pool{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer dbConn.Close()

	if err := db.RunMigrations(ctx, dbConn); err != nil {
		return err
	}

	userStore := auth.NewStore(dbConn)
	taskStore := tasks.NewStore(dbConn)
	billStore := bills.NewStore(dbConn)
	definitionStore := glossary.NewStore(dbConn)
	employeeStore := employees.NewStore(dbConn)

	seeder := &seed.Seeder{
		Users:       userStore,
		Bills:       billStore,
		Definitions: definitionStore,
		Employees:   employeeStore,
		Logger:      logger,
	}
	if err := seeder.Run(ctx, cfg.SeedPath); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	authSvc := auth.NewService(userStore, cfg.JWTSecret, cfg.TokenTTL)
	taskSvc := tasks.NewService(taskStore)

	backend, err := admin.New(admin.Config{
		Auth:         authSvc,
		SessionTTL:   cfg.SessionTTL,
		SecureCookie: cfg.SecureCookies,
		Views: []admin.View{
			admin.NewTasksView(taskSvc, userStore),
			admin.NewBillsView(billStore),
			admin.NewEmployeesView(employeeStore),
			admin.NewDefinitionsView(definitionStore),
			admin.NewUsersView(userStore),
			admin.NewRolesView(userStore),
		},
		Workloads: taskSvc,
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Logger:         logger,
		DB:             dbConn,
		Auth:           authSvc,
		Users:          userStore,
		Tasks:          taskSvc,
		Bills:          billStore,
		Definitions:    definitionStore,
		Employees:      employeeStore,
		Admin:          backend,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	server := httpserver.New(cfg.HTTPAddr, handler, logger)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := server.Run(ctx, 10*time.Second); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("stopped")
	return nil
}
