package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gw-fraud-scoring/internal/config"
	"gw-fraud-scoring/internal/custom_err"
	"gw-fraud-scoring/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AlertStorage журнал отправленных оповещений о мошенничестве.
type AlertStorage interface {
	SaveAlert(ctx context.Context, alert *models.FraudAlertNotification) error
	GetAlertByTransactionID(ctx context.Context, transactionID string) (*models.FraudAlertNotification, error)
	Close() error
}

type MongoAlertStorage struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

func NewMongoAlertStorage(ctx context.Context, cfg config.MongoDBConfig) (*MongoAlertStorage, error) {
	const op = "mongodb.NewMongoAlertStorage"

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("%s: connect: %w", op, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	coll := client.Database(cfg.Database).Collection(cfg.Collection)

	indexCtx, cancelIndex := context.WithTimeout(ctx, cfg.Timeout)
	defer cancelIndex()
	_, err = coll.Indexes().CreateOne(indexCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "transaction_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s: create index: %w", op, err)
	}

	return &MongoAlertStorage{
		client:     client,
		collection: coll,
		timeout:    cfg.Timeout,
	}, nil
}

// SaveAlert идемпотентна: повторная доставка той же задачи не создаёт дубль.
func (s *MongoAlertStorage) SaveAlert(ctx context.Context, alert *models.FraudAlertNotification) error {
	if alert.SentAt.IsZero() {
		alert.SentAt = time.Now().UTC()
	}

	_, err := s.collection.InsertOne(ctx, alert)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("mongodb.SaveAlert: %w", err)
	}
	return nil
}

func (s *MongoAlertStorage) GetAlertByTransactionID(ctx context.Context, transactionID string) (*models.FraudAlertNotification, error) {
	var alert models.FraudAlertNotification

	err := s.collection.FindOne(ctx, bson.M{"transaction_id": transactionID}).Decode(&alert)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, custom_err.ErrNotFound
		}
		return nil, fmt.Errorf("mongodb.GetAlertByTransactionID: %w", err)
	}
	return &alert, nil
}

func (s *MongoAlertStorage) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
