package repository

import (
	"context"
	"errors"
	"time"

	"campus_chat/internal/chat/domain"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrDuplicateConversation pair_key unique index violated, another request created it first
var ErrDuplicateConversation = errors.New("conversation already exists")

// ConversationRepository definition conversation storage
type ConversationRepository interface {
	// Create insert a conversation, ErrDuplicateConversation when the pair already has one
	Create(ctx context.Context, conv *domain.Conversation) error
	FindByID(ctx context.Context, id string) (*domain.Conversation, error)
	// FindByPairKey the one conversation of (item, buyer, seller)
	FindByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error)
	// ListByParticipant conversations of userID, latest activity first
	ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error)
	// NextSeq allocate the next message seq and record the latest message preview
	NextSeq(ctx context.Context, id string, preview domain.MessagePreview) (int64, error)
}

type conversationRepository struct {
	coll *mongo.Collection
}

// NewMongoConversationRepository create a ConversationRepository
func NewMongoConversationRepository(db *mongo.Database) ConversationRepository {
	return &conversationRepository{
		coll: db.Collection("conversations"),
	}
}

// EnsureConversationIndexes pair_key unique 保證同一組 (item, buyer, seller) 只有一個對話
func EnsureConversationIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection("conversations").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "participants._id", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	})
	return err
}

func (r *conversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.coll.InsertOne(ctx, conv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateConversation
	}
	return err
}

func (r *conversationRepository) FindByID(ctx context.Context, id string) (*domain.Conversation, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *conversationRepository) FindByPairKey(ctx context.Context, pairKey string) (*domain.Conversation, error) {
	return r.findOne(ctx, bson.M{"pair_key": pairKey})
}

func (r *conversationRepository) findOne(ctx context.Context, filter bson.M) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.coll.FindOne(ctx, filter).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepository) ListByParticipant(ctx context.Context, userID string) ([]domain.Conversation, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}})
	cursor, err := r.coll.Find(ctx, bson.M{"participants._id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	convs := []domain.Conversation{}
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// NextSeq 以 $inc 原子遞增 message_seq, 同時更新 latest_message
func (r *conversationRepository) NextSeq(ctx context.Context, id string, preview domain.MessagePreview) (int64, error) {
	update := bson.M{
		"$inc": bson.M{"message_seq": 1},
		"$set": bson.M{"latest_message": preview, "updated_at": time.Now().UTC()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv domain.Conversation
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return conv.MessageSeq, nil
}
