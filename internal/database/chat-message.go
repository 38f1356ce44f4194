package repository

import (
	"ChatRelay/entity"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type messageRecord struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	entity.Message `bson:",inline"`
}

// Append inserts a message. Insertion order is the history order.
func (m *MongoDB) Append(ctx context.Context, msg *entity.Message) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	record := messageRecord{ID: primitive.NewObjectID(), Message: *msg}
	_, err = collection.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("mongodb insert chat message: %w", err)
	}
	msg.ID = record.ID.Hex()

	return nil
}

// Find returns the full history of a user, oldest first.
func (m *MongoDB) Find(ctx context.Context, userID string) ([]entity.Message, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	filter := bson.D{{"user_id", userID}}
	opts := options.Find().SetSort(bson.D{{"_id", 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find chat messages: %w", err)
	}
	defer cursor.Close(ctx)

	var records []messageRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("mongodb decode chat messages: %w", err)
	}

	messages := make([]entity.Message, 0, len(records))
	for _, record := range records {
		msg := record.Message
		msg.ID = record.ID.Hex()
		messages = append(messages, msg)
	}
	return messages, nil
}

// DeleteWhere deletes messages of userID matching filter; an empty userID
// matches every user.
func (m *MongoDB) DeleteWhere(ctx context.Context, userID string, filter entity.MessageFilter) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	query := bson.D{}
	if userID != "" {
		query = append(query, bson.E{Key: "user_id", Value: userID})
	}
	if filter.Status != "" {
		query = append(query, bson.E{Key: "status", Value: filter.Status})
	}
	if !filter.Before.IsZero() {
		query = append(query, bson.E{Key: "created_at", Value: bson.D{{"$lt", filter.Before}}})
	}

	result, err := collection.DeleteMany(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("mongodb delete chat messages: %w", err)
	}
	return result.DeletedCount, nil
}

// RenameUser rewrites the denormalized display name on every message of a user.
func (m *MongoDB) RenameUser(ctx context.Context, userID, displayName string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	filter := bson.D{{"user_id", userID}}
	update := bson.D{{"$set", bson.D{{"display_name", displayName}}}}
	if _, err = collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("mongodb rename chat messages: %w", err)
	}
	return nil
}

// Digests folds every history into a ChatDigest in one aggregation. The
// result matches entity.Digest applied to Find.
func (m *MongoDB) Digests(ctx context.Context) ([]entity.ChatDigest, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(chatMessagesCollection)

	countsAsActivity := bson.D{{"$and", bson.A{
		bson.D{{"$ne", bson.A{bson.D{{"$ifNull", bson.A{"$status", ""}}}, entity.StatusClosed}}},
		bson.D{{"$ne", bson.A{bson.D{{"$ifNull", bson.A{"$marker", ""}}}, string(entity.MarkerOpened)}}},
	}}}
	lastText := bson.D{{"$cond", bson.A{
		bson.D{{"$gt", bson.A{bson.D{{"$strLenCP", bson.D{{"$ifNull", bson.A{"$image", ""}}}}}, 0}}},
		"[image]",
		bson.D{{"$ifNull", bson.A{"$text", ""}}},
	}}}
	isLifecycle := bson.D{{"$in", bson.A{
		bson.D{{"$ifNull", bson.A{"$marker", ""}}},
		bson.A{string(entity.MarkerStarted), string(entity.MarkerReopened), string(entity.MarkerClosed)},
	}}}

	pipeline := mongo.Pipeline{
		{{Key: "$sort", Value: bson.D{{"_id", 1}}}},
		{{Key: "$group", Value: bson.D{
			{"_id", "$user_id"},
			{"first_id", bson.D{{"$first", "$_id"}}},
			{"first_at", bson.D{{"$first", "$created_at"}}},
			{"names", bson.D{{"$push", bson.D{{"$cond", bson.A{
				bson.D{{"$gt", bson.A{bson.D{{"$strLenCP", bson.D{{"$ifNull", bson.A{"$display_name", ""}}}}}, 0}}},
				"$display_name",
				"$$REMOVE",
			}}}}}},
			{"activity", bson.D{{"$push", bson.D{{"$cond", bson.A{
				countsAsActivity,
				bson.D{{"at", "$created_at"}, {"text", lastText}},
				"$$REMOVE",
			}}}}}},
			{"lifecycle", bson.D{{"$push", bson.D{{"$cond", bson.A{
				isLifecycle,
				"$marker",
				"$$REMOVE",
			}}}}}},
		}}},
		{{Key: "$sort", Value: bson.D{{"first_id", 1}}}},
		{{Key: "$project", Value: bson.D{
			{"_id", 0},
			{"user_id", "$_id"},
			{"first_at", 1},
			{"display_name", bson.D{{"$arrayElemAt", bson.A{"$names", -1}}}},
			{"last_activity", bson.D{{"$arrayElemAt", bson.A{"$activity.at", -1}}}},
			{"last_text", bson.D{{"$arrayElemAt", bson.A{"$activity.text", -1}}}},
			{"last_lifecycle", bson.D{{"$arrayElemAt", bson.A{"$lifecycle", -1}}}},
		}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("mongodb aggregate chat digests: %w", err)
	}
	defer cursor.Close(ctx)

	var digests []entity.ChatDigest
	if err = cursor.All(ctx, &digests); err != nil {
		return nil, fmt.Errorf("mongodb decode chat digests: %w", err)
	}

	return digests, nil
}
