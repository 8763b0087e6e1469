package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eshop_back_end/internal/models"
	"eshop_back_end/internal/repository"
)

type orderItemDocument struct {
	ID       primitive.ObjectID `bson:"_id"`
	Product  string             `bson:"product"`
	Quantity int                `bson:"quantity"`
}

type orderDocument struct {
	ID               primitive.ObjectID   `bson:"_id"`
	OrderItems       []primitive.ObjectID `bson:"orderItems"`
	ShippingAddress1 string               `bson:"shippingAddress1"`
	ShippingAddress2 string               `bson:"shippingAddress2,omitempty"`
	City             string               `bson:"city"`
	Zip              string               `bson:"zip"`
	Country          string               `bson:"country"`
	Phone            string               `bson:"phone"`
	Status           string               `bson:"status"`
	TotalPrice       primitive.Decimal128 `bson:"totalPrice"`
	User             primitive.ObjectID   `bson:"user"`
	DateOrdered      time.Time            `bson:"dateOrdered"`
	IdempotencyKey   string               `bson:"idempotencyKey,omitempty"`
}

func (d orderDocument) toModel() (models.Order, error) {
	total, err := decimal.NewFromString(d.TotalPrice.String())
	if err != nil {
		return models.Order{}, fmt.Errorf("mongostore: decode totalPrice of %s: %w", d.ID.Hex(), err)
	}
	return models.Order{
		ID:         d.ID.Hex(),
		OrderItems: hexIDs(d.OrderItems),
		ShippingAddress: models.ShippingAddress{
			ShippingAddress1: d.ShippingAddress1,
			ShippingAddress2: d.ShippingAddress2,
			City:             d.City,
			Zip:              d.Zip,
			Country:          d.Country,
			Phone:            d.Phone,
		},
		Status:         d.Status,
		TotalPrice:     total,
		User:           d.User.Hex(),
		DateOrdered:    d.DateOrdered,
		IdempotencyKey: d.IdempotencyKey,
	}, nil
}

// OrderStore keeps orders and order items in two collections.
type OrderStore struct {
	client       *mongo.Client
	orders       *mongo.Collection
	items        *mongo.Collection
	transactions bool
}

var _ repository.OrderStore = (*OrderStore)(nil)

// NewOrderStore builds the store. With transactions enabled the cascade delete runs
// in a multi-document transaction, which requires a replica set.
func NewOrderStore(client *mongo.Client, db *mongo.Database, transactions bool) *OrderStore {
	return &OrderStore{
		client:       client,
		orders:       db.Collection(ordersCollection),
		items:        db.Collection(orderItemsCollection),
		transactions: transactions,
	}
}

func (s *OrderStore) InsertOrderItem(ctx context.Context, item models.OrderItem) (models.OrderItem, error) {
	doc := orderItemDocument{
		ID:       primitive.NewObjectID(),
		Product:  item.Product,
		Quantity: item.Quantity,
	}
	if _, err := s.items.InsertOne(ctx, doc); err != nil {
		return models.OrderItem{}, fmt.Errorf("mongostore: insert order item: %w", err)
	}
	item.ID = doc.ID.Hex()
	return item, nil
}

func (s *OrderStore) FindOrderItems(ctx context.Context, ids []string) ([]models.OrderItem, error) {
	oids, err := parseIDs(ids)
	if err != nil {
		return nil, err
	}
	if len(oids) == 0 {
		return nil, nil
	}

	cur, err := s.items.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("mongostore: find order items: %w", err)
	}
	var docs []orderItemDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode order items: %w", err)
	}

	out := make([]models.OrderItem, len(docs))
	for i, d := range docs {
		out[i] = models.OrderItem{ID: d.ID.Hex(), Product: d.Product, Quantity: d.Quantity}
	}
	return out, nil
}

func (s *OrderStore) DeleteOrderItems(ctx context.Context, ids []string) (int64, error) {
	oids, err := parseIDs(ids)
	if err != nil {
		return 0, err
	}
	if len(oids) == 0 {
		return 0, nil
	}
	res, err := s.items.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: delete order items: %w", err)
	}
	return res.DeletedCount, nil
}

func (s *OrderStore) InsertOrder(ctx context.Context, order models.Order) (models.Order, error) {
	userID, err := parseID(order.User)
	if err != nil {
		return models.Order{}, err
	}
	itemIDs, err := parseIDs(order.OrderItems)
	if err != nil {
		return models.Order{}, err
	}
	total, err := primitive.ParseDecimal128(order.TotalPrice.String())
	if err != nil {
		return models.Order{}, fmt.Errorf("mongostore: encode totalPrice: %w", err)
	}

	doc := orderDocument{
		ID:               primitive.NewObjectID(),
		OrderItems:       itemIDs,
		ShippingAddress1: order.ShippingAddress1,
		ShippingAddress2: order.ShippingAddress2,
		City:             order.City,
		Zip:              order.Zip,
		Country:          order.Country,
		Phone:            order.Phone,
		Status:           order.Status,
		TotalPrice:       total,
		User:             userID,
		DateOrdered:      order.DateOrdered.UTC(),
		IdempotencyKey:   order.IdempotencyKey,
	}
	if _, err := s.orders.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Order{}, repository.ErrDuplicate
		}
		return models.Order{}, fmt.Errorf("mongostore: insert order: %w", err)
	}
	return doc.toModel()
}

func (s *OrderStore) FindOrder(ctx context.Context, id string) (models.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return models.Order{}, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *OrderStore) FindOrderByIdempotencyKey(ctx context.Context, key string) (models.Order, error) {
	if key == "" {
		return models.Order{}, repository.ErrNotFound
	}
	return s.findOne(ctx, bson.M{"idempotencyKey": key})
}

func (s *OrderStore) findOne(ctx context.Context, filter bson.M) (models.Order, error) {
	var doc orderDocument
	if err := s.orders.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Order{}, repository.ErrNotFound
		}
		return models.Order{}, fmt.Errorf("mongostore: find order: %w", err)
	}
	return doc.toModel()
}

func (s *OrderStore) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	filter := bson.M{}
	if userID != "" {
		oid, err := parseID(userID)
		if err != nil {
			return nil, err
		}
		filter["user"] = oid
	}

	opts := options.Find().SetSort(bson.D{{Key: "dateOrdered", Value: -1}})
	cur, err := s.orders.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: list orders: %w", err)
	}
	var docs []orderDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("mongostore: decode orders: %w", err)
	}

	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		order, err := d.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func (s *OrderStore) UpdateOrderStatus(ctx context.Context, id, status string) (models.Order, error) {
	oid, err := parseID(id)
	if err != nil {
		return models.Order{}, err
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc orderDocument
	err = s.orders.FindOneAndUpdate(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": status}}, opts).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Order{}, repository.ErrNotFound
		}
		return models.Order{}, fmt.Errorf("mongostore: update order status: %w", err)
	}
	return doc.toModel()
}

// DeleteOrderCascade deletes the items recorded on the order first, then the order.
func (s *OrderStore) DeleteOrderCascade(ctx context.Context, id string) (int64, error) {
	oid, err := parseID(id)
	if err != nil {
		return 0, err
	}
	if !s.transactions {
		return s.deleteCascade(ctx, oid)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return 0, fmt.Errorf("mongostore: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	res, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.deleteCascade(sc, oid)
	})
	if err != nil {
		return 0, abortedDelete(err)
	}
	return res.(int64), nil
}

// abortedDelete reports a rolled-back cascade. Nothing was removed, so a partial
// delete raised inside the transaction is not passed on as ErrPartialDelete.
func abortedDelete(err error) error {
	if errors.Is(err, repository.ErrPartialDelete) {
		return fmt.Errorf("mongostore: delete order transaction aborted: %v", err)
	}
	return err
}

func (s *OrderStore) deleteCascade(ctx context.Context, oid primitive.ObjectID) (int64, error) {
	var doc orderDocument
	if err := s.orders.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, repository.ErrNotFound
		}
		return 0, fmt.Errorf("mongostore: load order for delete: %w", err)
	}

	var deleted int64
	if len(doc.OrderItems) > 0 {
		res, err := s.items.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": doc.OrderItems}})
		if err != nil {
			return 0, fmt.Errorf("mongostore: delete order items: %w", err)
		}
		deleted = res.DeletedCount
	}

	res, err := s.orders.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return deleted, fmt.Errorf("%w: %v", repository.ErrPartialDelete, err)
	}
	if res.DeletedCount == 0 {
		// Removed concurrently after we loaded it.
		return deleted, repository.ErrNotFound
	}
	return deleted, nil
}

// SumTotalPrice returns zero when the collection is empty.
func (s *OrderStore) SumTotalPrice(ctx context.Context) (decimal.Decimal, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "totalSales", Value: bson.D{{Key: "$sum", Value: "$totalPrice"}}},
		}}},
	}
	cur, err := s.orders.Aggregate(ctx, pipeline)
	if err != nil {
		return decimal.Zero, fmt.Errorf("mongostore: aggregate total sales: %w", err)
	}
	var rows []struct {
		TotalSales primitive.Decimal128 `bson:"totalSales"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("mongostore: decode total sales: %w", err)
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	total, err := decimal.NewFromString(rows[0].TotalSales.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("mongostore: parse total sales: %w", err)
	}
	return total, nil
}

func (s *OrderStore) CountOrders(ctx context.Context) (int64, error) {
	n, err := s.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("mongostore: count orders: %w", err)
	}
	return n, nil
}
