package repositories

import (
	"context"
	"fmt"

	"github.com/bionicotaku/lingo-services-listing/internal/repositories/mappers"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// EnsureMongoIndexes 创建列表排序、前缀搜索与反应计数所需的索引。
// CreateMany 对已存在的同名索引是幂等的。
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	plan := map[string][]mongo.IndexModel{
		CollectionVideos: {
			{Keys: bson.D{{Key: mappers.FieldCreatedAt, Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: mappers.FieldTitleLower, Value: 1}}},
			{Keys: bson.D{{Key: mappers.FieldCategoryLower, Value: 1}}},
			{Keys: bson.D{{Key: mappers.FieldActorLower, Value: 1}}},
			{Keys: bson.D{{Key: mappers.FieldTagsLower, Value: 1}}},
		},
		CollectionUsers: {
			{Keys: bson.D{{Key: mappers.FieldLikedVideos, Value: 1}}},
			{Keys: bson.D{{Key: mappers.FieldDislikedVideos, Value: 1}}},
		},
		CollectionAdDailyStats: {
			{Keys: bson.D{{Key: mappers.FieldDate, Value: 1}}},
		},
		CollectionVisitorDaily: {
			{Keys: bson.D{{Key: mappers.FieldDate, Value: 1}, {Key: mappers.FieldTimestamp, Value: -1}}},
		},
	}
	for collection, models := range plan {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
