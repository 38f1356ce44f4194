package repository

import (
	"ChatRelay/internal/config"
	"ChatRelay/internal/lib/sl"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"log/slog"
)

const (
	chatMessagesCollection = "chat-messages"
	profilesCollection     = "profiles"
	performanceCollection  = "performance"
	apiKeysCollection      = "api-keys"
)

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
	log           *slog.Logger
}

func NewMongoClient(conf *config.Config, logger *slog.Logger) *MongoDB {
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
		log:           logger.With(sl.Module("mongodb")),
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect error: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	_ = connection.Disconnect(ctx)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find error: %w", err)
}

// EnsureIndexes creates the indexes the queries rely on. Existing indexes are kept.
func (m *MongoDB) EnsureIndexes(ctx context.Context) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	db := connection.Database(m.database)
	indexes := map[string]mongo.IndexModel{
		chatMessagesCollection: {
			Keys: bson.D{{"user_id", 1}, {"_id", 1}},
		},
		profilesCollection: {
			Keys:    bson.D{{"user_id", 1}},
			Options: options.Index().SetUnique(true),
		},
		performanceCollection: {
			Keys:    bson.D{{"day", 1}, {"agent", 1}},
			Options: options.Index().SetUnique(true),
		},
		apiKeysCollection: {
			Keys:    bson.D{{"key", 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	for name, model := range indexes {
		if _, err = db.Collection(name).Indexes().CreateOne(ctx, model); err != nil {
			return fmt.Errorf("mongodb create index on %s: %w", name, err)
		}
	}
	m.log.Debug("indexes ensured")
	return nil
}

// CheckApiKey returns the agent the key was issued to.
func (m *MongoDB) CheckApiKey(ctx context.Context, key string) (string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)
	filter := bson.D{{"key", key}}

	var result struct {
		Username string `bson:"username"`
		Key      string `bson:"key"`
	}
	err = collection.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return "", err
	}

	if result.Username == "" {
		return "", fmt.Errorf("api key not found")
	}

	return result.Username, nil
}

func (m *MongoDB) getKeyByUsername(ctx context.Context, username string) (string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)
	filter := bson.D{{"username", username}}

	var result struct {
		Key string `bson:"key"`
	}
	err = collection.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return "", m.findError(err)
	}

	return result.Key, nil
}

// GenerateApiKey issues a key for an agent, or returns the one already issued.
func (m *MongoDB) GenerateApiKey(ctx context.Context, username string) (string, error) {
	k, err := m.getKeyByUsername(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to get existing API key: %w", err)
	}
	if k != "" {
		return k, nil
	}

	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(apiKeysCollection)
	key := uuid.NewString()

	doc := bson.D{
		{"username", username},
		{"key", key},
	}

	_, err = collection.InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("mongodb insert error: %w", err)
	}

	return key, nil
}
