package db

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// Migrator оборачивает golang-migrate над каталогом с SQL-файлами.
type Migrator struct {
	m   *migrate.Migrate
	log *slog.Logger
}

func NewMigrator(dsn, migrationsPath string, log *slog.Logger) (*Migrator, error) {
	const op = "db.NewMigrator"

	switch {
	case dsn == "":
		return nil, fmt.Errorf("%s: пустой DSN", op)
	case migrationsPath == "":
		return nil, fmt.Errorf("%s: не задан каталог миграций", op)
	}

	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	m.Log = migrateLogger{log: log}

	return &Migrator{m: m, log: log}, nil
}

// Up накатывает все непримененные миграции. Отсутствие изменений не ошибка.
func (mg *Migrator) Up() (uint, error) {
	if err := mg.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("db.Migrator.Up: %w", err)
	}
	return mg.Version()
}

// Down откатывает steps последних миграций.
func (mg *Migrator) Down(steps int) (uint, error) {
	if steps <= 0 {
		return 0, fmt.Errorf("db.Migrator.Down: steps должен быть положительным, получено %d", steps)
	}
	if err := mg.m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("db.Migrator.Down: %w", err)
	}
	return mg.Version()
}

// Version возвращает текущую версию схемы, 0 для пустой базы.
// Схема в состоянии dirty считается ошибкой: её надо чинить руками через force.
func (mg *Migrator) Version() (uint, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("db.Migrator.Version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("db.Migrator.Version: миграция %d в состоянии dirty", version)
	}
	return version, nil
}

func (mg *Migrator) Close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil || dbErr != nil {
		mg.log.Warn("ошибка при закрытии мигратора",
			slog.Any("source_error", srcErr),
			slog.Any("db_error", dbErr))
	}
}

// RunMigrations накатывает схему при старте сервиса.
func RunMigrations(dsn, migrationsPath string, log *slog.Logger) (uint, error) {
	mg, err := NewMigrator(dsn, migrationsPath, log)
	if err != nil {
		return 0, err
	}
	defer mg.Close()

	version, err := mg.Up()
	if err != nil {
		return version, err
	}
	log.Info("миграции применены", slog.Uint64("version", uint64(version)))
	return version, nil
}

type migrateLogger struct {
	log *slog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "migrate"))
}

func (l migrateLogger) Verbose() bool { return false }
