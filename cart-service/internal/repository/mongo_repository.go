package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/legacyxi/shopcart/cart-service/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// lines are stored as an array so product ids never become field names
type cartDocument struct {
	SessionID string         `bson:"_id"`
	UserID    string         `bson:"user_id,omitempty"`
	Items     []lineDocument `bson:"items"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID string `bson:"product_id"`
	Size      string `bson:"size"`
	Quantity  int    `bson:"quantity"`
}

type mongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m mongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.CartState, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return fromDocument(doc), nil
}

func (m mongoRepository) SaveCart(ctx context.Context, state *domain.CartState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}
	doc := toDocument(state)

	filter := bson.M{"_id": doc.SessionID}
	update := bson.M{"$set": bson.M{
		"user_id":    doc.UserID,
		"items":      doc.Items,
		"updated_at": doc.UpdatedAt,
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	return nil
}

func (m mongoRepository) DeleteCart(ctx context.Context, sessionID string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}
	return nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // 90 days TTL
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes is a no-op for repositories that are not Mongo backed.
func CreateIndexes(ctx context.Context, repo CartRepository) error {
	if mr, ok := repo.(*mongoRepository); ok {
		return mr.CreateIndexes(ctx)
	}
	return nil
}

func toDocument(state *domain.CartState) cartDocument {
	doc := cartDocument{
		SessionID: state.SessionID,
		UserID:    state.UserID,
		Items:     make([]lineDocument, 0, len(state.Items)),
		UpdatedAt: state.UpdatedAt,
	}
	for productID, sizes := range state.Items {
		for size, q := range sizes {
			doc.Items = append(doc.Items, lineDocument{ProductID: productID, Size: size, Quantity: q})
		}
	}
	return doc
}

func fromDocument(doc cartDocument) *domain.CartState {
	state := &domain.CartState{
		SessionID: doc.SessionID,
		UserID:    doc.UserID,
		Items:     make(map[string]map[string]int, len(doc.Items)),
		UpdatedAt: doc.UpdatedAt,
	}
	for _, l := range doc.Items {
		sizes, ok := state.Items[l.ProductID]
		if !ok {
			sizes = make(map[string]int)
			state.Items[l.ProductID] = sizes
		}
		sizes[l.Size] += l.Quantity
	}
	return state
}
