// Package migrations применяет миграции MongoDB (индексы коллекций).
package migrations

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mongodb"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.mongodb.org/mongo-driver/mongo"
)

// Run применяет миграции из каталога sourceURL (например, file://migrations)
// к базе database. Повторный запуск без новых миграций не считается ошибкой.
func Run(client *mongo.Client, database, sourceURL string) error {
	const op = "migrations.Run"

	driver, err := mongodb.WithInstance(client, &mongodb.Config{
		DatabaseName:         database,
		TransactionMode:      false,
		MigrationsCollection: "schema_migrations",
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, database, driver)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
