package repository

import (
	"context"
	"errors"

	"campus_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ItemRepository read side of the marketplace items collection, items are
// written by the marketplace service
type ItemRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Item, error)
}

type itemRepository struct {
	coll *mongo.Collection
}

// NewMongoItemRepository create an ItemRepository
func NewMongoItemRepository(db *mongo.Database) ItemRepository {
	return &itemRepository{coll: db.Collection("items")}
}

func (r *itemRepository) FindByID(ctx context.Context, id string) (*domain.Item, error) {
	var item domain.Item
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.Status == "" {
		item.Status = domain.ItemActive
	}
	return &item, nil
}
