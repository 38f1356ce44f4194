package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DisplayName returns the persisted display name override, or "" if none.
func (m *MongoDB) DisplayName(ctx context.Context, userID string) (string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(profilesCollection)
	filter := bson.D{{"user_id", userID}}

	var result struct {
		DisplayName string `bson:"display_name"`
	}
	err = collection.FindOne(ctx, filter).Decode(&result)
	if err != nil {
		return "", m.findError(err)
	}
	return result.DisplayName, nil
}

func (m *MongoDB) SetDisplayName(ctx context.Context, userID, displayName string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(profilesCollection)
	filter := bson.D{{"user_id", userID}}
	update := bson.D{{"$set", bson.D{{"display_name", displayName}}}}

	_, err = collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongodb upsert profile: %w", err)
	}
	return nil
}
