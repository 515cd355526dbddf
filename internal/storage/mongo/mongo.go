// Package mongo реализует хранилище документов на MongoDB.
//
// Repository - обобщённый репозиторий коллекции. У каждой коллекции есть
// scope: фильтр, который добавляется ко всем операциям чтения (Find, FindByID,
// Get, FindOne, Count) и к операциям, ищущим документ перед изменением.
// UpdateFields и DeleteMany работают без scope.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/magabrotheeeer/tour-booking/internal/config"
)

// Имена коллекций.
const (
	CollectionTours   = "tours"
	CollectionUsers   = "users"
	CollectionReviews = "reviews"
)

// Storage держит клиент MongoDB и базу данных сервиса.
type Storage struct {
	Client *mongo.Client
	DB     *mongo.Database
}

// New подключается к MongoDB и проверяет соединение.
func New(ctx context.Context, cfg config.Mongo) (*Storage, error) {
	const op = "storage.mongo.New"

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout).SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{
		Client: client,
		DB:     client.Database(cfg.Database),
	}, nil
}

// Collection возвращает коллекцию базы сервиса.
func (s *Storage) Collection(name string) *mongo.Collection {
	return s.DB.Collection(name)
}

// Ping проверяет доступность сервера.
func (s *Storage) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx, readpref.Primary())
}

// Close отключается от сервера.
func (s *Storage) Close(ctx context.Context) error {
	const op = "storage.mongo.Close"
	if err := s.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
