package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/mert/schoolhub/internal/app/controllers"
	appMigrations "github.com/mert/schoolhub/internal/app/migrations"
	appRepos "github.com/mert/schoolhub/internal/app/repositories"
	appRoutes "github.com/mert/schoolhub/internal/app/routes"
	appServices "github.com/mert/schoolhub/internal/app/services"
	"github.com/mert/schoolhub/internal/config"
	"github.com/mert/schoolhub/internal/db"
	appMiddleware "github.com/mert/schoolhub/internal/middleware"
	pkgAuth "github.com/mert/schoolhub/internal/pkg/auth"
	"github.com/mert/schoolhub/internal/pkg/filestorage"
	"github.com/mert/schoolhub/internal/pkg/helpers"
	"github.com/mert/schoolhub/internal/pkg/logger"
	"github.com/mert/schoolhub/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	ImportService      *appServices.ImportService
	AuthService        *appServices.AuthService
	IdentityService    *appServices.IdentityService
	AuthController     *appControllers.AuthController
	ImportController   *appControllers.ImportController
	IdentityController *appControllers.IdentityController
	AuthMiddleware     *appMiddleware.AuthMiddleware
	Repos              *appRepos.Repositories
	JWTService         *pkgAuth.JWTService
	FileStorage        *filestorage.LocalStorage
	Logger             zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection, runs migrations and
// seeds the default school
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool, lgr)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		dbPool.Close()
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}

	if err := migrator.MigrateFromDirectory(context.Background(), migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		dbPool.Close()
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if err := seed.CreateDefaultSchool(context.Background(), dbPool, cfg, lgr); err != nil {
		lgr.Error().Err(err).Msg("Failed to seed default school, proceeding anyway...")
	}

	return dbPool, nil
}

// BuildDependencies initializes repositories, services and controllers
func BuildDependencies(cfg *config.Config, dbPool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(dbPool)

	var err error
	deps.FileStorage, err = filestorage.NewLocalStorage(cfg.Import.ArchiveDir)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to initialize roster archive")
		return nil, fmt.Errorf("failed to initialize roster archive: %w", err)
	}

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:       cfg.JWT.Secret,
		AccessTokenExp:  helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, 1*time.Hour),
		RefreshTokenExp: helpers.ParseDuration(cfg.JWT.RefreshTokenExpiration, 720*time.Hour),
		TokenIssuer:     cfg.JWT.Issuer,
	})

	deps.ImportService = appServices.NewImportService(
		deps.Repos.IdentityRepository,
		deps.Repos.CredentialRepository,
		deps.Repos.RoleRecordRepository,
		deps.Repos.UploadAuditRepository,
		appServices.ImportConfig{
			Workers:         cfg.Import.Workers,
			MaxStoredErrors: cfg.Import.MaxStoredErrors,
			PasswordPrefix:  cfg.Import.PasswordPrefix,
		},
		lgr,
	)

	deps.AuthService = appServices.NewAuthService(
		deps.Repos.SchoolRepository,
		deps.Repos.IdentityRepository,
		deps.Repos.CredentialRepository,
		deps.Repos.TokenRepository,
		deps.JWTService,
		cfg.Import.PasswordPrefix,
		lgr,
	)

	deps.IdentityService = appServices.NewIdentityService(
		deps.Repos.IdentityRepository,
		deps.Repos.CredentialRepository,
		deps.Repos.RoleRecordRepository,
		lgr,
	)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService)

	deps.AuthController = appControllers.NewAuthController(deps.AuthService, lgr)
	deps.ImportController = appControllers.NewImportController(deps.ImportService, deps.FileStorage, lgr)
	deps.IdentityController = appControllers.NewIdentityController(deps.IdentityService, lgr)

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	appMiddleware.RegisterCustomValidators()

	router := gin.New()
	router.Use(appMiddleware.RequestLogger(lgr), gin.Recovery())

	appRoutes.SetupRouter(router,
		deps.AuthController,
		deps.ImportController,
		deps.IdentityController,
		deps.AuthMiddleware,
	)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong", "status": "success"})
	})

	return router
}
