package database

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/xelth-com/spectraq/internal/config"
	"github.com/xelth-com/spectraq/internal/models"
)

// embeddedPassword is set on the bundled server's superuser
const embeddedPassword = "postgres"

// DB wraps gorm.DB and the embedded server when Connect started one
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// Connect opens the configured PostgreSQL. For a localhost target without a
// password it first starts the bundled server in cfg.DataDir on cfg.EmbeddedPort.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	var embedded *embeddedpostgres.EmbeddedPostgres
	port, password := cfg.Port, cfg.Password

	if cfg.Embedded() {
		var err error
		if embedded, err = startEmbedded(cfg); err != nil {
			return nil, err
		}
		port, password = strconv.Itoa(cfg.EmbeddedPort), embeddedPassword
	} else {
		log.Printf("🌐 Mode: [External PostgreSQL] - Connecting to %s:%s", cfg.Host, cfg.Port)
	}

	db, err := Open(postgres.Open(dsn(cfg, port, password)), cfg.Quiet)
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, err
	}
	db.embedded = embedded

	log.Println("✅ Database connection established")
	return db, nil
}

// Open builds a DB on any gorm dialector. Connect uses it with postgres.
func Open(dialector gorm.Dialector, quiet bool) (*DB, error) {
	logLevel := logger.Info
	if quiet {
		logLevel = logger.Silent
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// archive jobs, audits and summaries are low volume
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db}, nil
}

func dsn(cfg config.DatabaseConfig, port, password string) string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, port, cfg.Username, password, cfg.Database,
	)
}

func startEmbedded(cfg config.DatabaseConfig) (*embeddedpostgres.EmbeddedPostgres, error) {
	log.Printf("📦 Mode: [Embedded PostgreSQL] - data in %s, port %d", cfg.DataDir, cfg.EmbeddedPort)

	if err := clearStalePID(cfg.DataDir); err != nil {
		return nil, err
	}
	if portInUse(cfg.EmbeddedPort) {
		return nil, fmt.Errorf("port %d is already in use, set PG_EMBEDDED_PORT", cfg.EmbeddedPort)
	}

	pg := embeddedpostgres.NewDatabase(embeddedpostgres.DefaultConfig().
		DataPath(cfg.DataDir).
		Port(uint32(cfg.EmbeddedPort)).
		Database(cfg.Database).
		Username(cfg.Username).
		Password(embeddedPassword))

	if err := pg.Start(); err != nil {
		return nil, fmt.Errorf("failed to start embedded database: %w", err)
	}
	log.Printf("✅ Embedded PostgreSQL started on port %d", cfg.EmbeddedPort)
	return pg, nil
}

// clearStalePID removes the postmaster.pid a crashed run leaves in dataDir,
// which would otherwise stop the embedded server from starting. A pid file
// whose process is still alive is an error: another server owns the data.
func clearStalePID(dataDir string) error {
	pidFile := filepath.Join(dataDir, "postmaster.pid")
	data, err := os.ReadFile(pidFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", pidFile, err)
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Scan()
	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || pid <= 0 {
		return fmt.Errorf("unreadable PID in %s", pidFile)
	}

	if processAlive(pid) {
		return fmt.Errorf("PostgreSQL (PID %d) is still running on %s", pid, dataDir)
	}

	log.Printf("🧹 Removing stale postmaster.pid (PID %d not running)", pid)
	if err := os.Remove(pidFile); err != nil {
		return fmt.Errorf("remove %s: %w", pidFile, err)
	}
	return nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 only probes; EPERM means it exists under another user
	err = process.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func portInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Close closes the pool, then stops the embedded server if Connect started one
func (db *DB) Close() error {
	var errs []error
	if sqlDB, err := db.DB.DB(); err != nil {
		errs = append(errs, err)
	} else if err := sqlDB.Close(); err != nil {
		errs = append(errs, err)
	}

	if db.embedded != nil {
		log.Println("🛑 Stopping Embedded PostgreSQL process...")
		if err := db.embedded.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop embedded database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Migrate creates the archive, audit and summary tables
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(
		&models.ReportArchive{},
		&models.AICallLog{},
		&models.ShiftSummary{},
	); err != nil {
		return fmt.Errorf("auto-migrate failed: %w", err)
	}
	log.Println("✅ Database schema synchronized")
	return nil
}
