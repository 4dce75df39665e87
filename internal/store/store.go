package store

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// schema lists every table the store owns, in migration order.
var schema = []any{
	&models.User{},
	&models.OAuthClient{},
	&models.AuthorizationCode{},
	&models.AccessToken{},
	&models.AppConnection{},
	&models.AuditLog{},
}

// Store is the relational credential store. It persists users, OAuth clients,
// authorization codes, tokens, third-party connections and audit logs.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

func New(ctx context.Context, driver, dsn string, cfg *config.Config, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}

	dialect, err := dialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialect, &gorm.Config{
		Logger:         gormLogger(log),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// SQLite allows one writer; :memory: databases are also per-connection.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.WithContext(ctx).AutoMigrate(schema...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	store := &Store{db: db, log: log}

	if err := store.seedData(ctx, cfg); err != nil {
		log.Warn("failed to seed data", zap.Error(err))
	}

	return store, nil
}

// gormLogger routes gorm's warnings and SQL errors into zap. Lookups that
// miss are normal control flow and stay quiet.
func gormLogger(log *zap.Logger) logger.Interface {
	return logger.New(zap.NewStdLog(log.Named("gorm")), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// initialAdminPassword is printed once in the log when no
// DEFAULT_ADMIN_PASSWORD is configured.
func initialAdminPassword() (string, error) {
	b, err := util.RandomBytes(12)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *Store) seedData(ctx context.Context, cfg *config.Config) error {
	var userCount int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&userCount).Error; err != nil {
		return err
	}
	if userCount > 0 {
		return nil
	}

	password := ""
	if cfg != nil {
		password = strings.TrimSpace(cfg.DefaultAdminPassword)
	}
	generated := password == ""
	if generated {
		var err error
		if password, err = initialAdminPassword(); err != nil {
			return err
		}
	}

	user := &models.User{
		ID:       uuid.New().String(),
		Username: "admin",
		Email:    "admin@localhost",
		Role:     models.RoleAdmin,
	}
	if err := user.SetPassword(password); err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return err
	}

	if generated {
		s.log.Info("created default admin user", zap.String("username", "admin"), zap.String("password", password))
	} else {
		s.log.Info("created default admin user", zap.String("username", "admin"))
	}
	return nil
}

// Health checks the database connection
func (s *Store) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// DB returns the underlying GORM handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}
