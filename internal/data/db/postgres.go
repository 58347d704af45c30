package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/freightdesk/rulelearn-backend/internal/platform/envutil"
	"github.com/freightdesk/rulelearn-backend/internal/platform/logger"
)

type Service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the configured database. Postgres is the production driver; the
// sqlite driver exists for local development (DB_DRIVER=sqlite). Ids are
// generated application-side so both drivers share one schema.
func New(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	driver := strings.ToLower(envutil.String("DB_DRIVER", "postgres"))
	switch driver {
	case "sqlite":
		path := envutil.String("SQLITE_PATH", "rulelearn.db")
		gdb, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
		}
		return &Service{db: gdb, log: serviceLog}, nil
	case "postgres":
		host := envutil.String("POSTGRES_HOST", "localhost")
		port := envutil.String("POSTGRES_PORT", "5432")
		user := envutil.String("POSTGRES_USER", "postgres")
		password := envutil.String("POSTGRES_PASSWORD", "")
		name := envutil.String("POSTGRES_NAME", "rulelearn")

		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			user, password, host, port, name,
		)
		gdb, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		return &Service{db: gdb, log: serviceLog}, nil
	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func (s *Service) DB() *gorm.DB { return s.db }
