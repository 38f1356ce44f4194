package repository

import (
	"ChatRelay/entity"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// IncrementClosures adds one closure to the agent's counter for day and
// returns the new value.
func (m *MongoDB) IncrementClosures(ctx context.Context, agent, day string) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(performanceCollection)
	filter := bson.D{{"day", day}, {"agent", agent}}
	update := bson.D{{"$inc", bson.D{{"count", 1}}}}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter entity.PerformanceCounter
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("mongodb increment performance: %w", err)
	}
	return counter.Count, nil
}

// Performance lists the counters of day, highest first.
func (m *MongoDB) Performance(ctx context.Context, day string) ([]entity.PerformanceCounter, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(performanceCollection)
	filter := bson.D{{"day", day}}
	opts := options.Find().SetSort(bson.D{{"count", -1}, {"agent", 1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find performance: %w", err)
	}
	defer cursor.Close(ctx)

	counters := make([]entity.PerformanceCounter, 0)
	if err = cursor.All(ctx, &counters); err != nil {
		return nil, fmt.Errorf("mongodb decode performance: %w", err)
	}
	return counters, nil
}
