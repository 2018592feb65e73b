package repository

import (
	"context"
	"errors"
	"time"

	"order-tracking-service/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("order not tracked")

// MongoOrderRepository mirrors the order status announced by the backend.
// It stores raw fields only; projections are computed on read.
type MongoOrderRepository struct {
	col *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection("tracked_orders")}
}

// EnsureIndexes creates the lookup indexes used by the service.
func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "lead_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "customer_id", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

// Create inserts the first mirrored state of an order with a single current
// history record.
func (m *MongoOrderRepository) Create(ctx context.Context, o *model.TrackedOrder) error {
	now := time.Now().UTC()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	o.UpdatedAt = now

	filter := bson.M{"lead_id": o.LeadID}
	update := bson.M{"$setOnInsert": o}
	opts := options.Update().SetUpsert(true)
	_, err := m.col.UpdateOne(ctx, filter, update, opts)
	return err
}

func (m *MongoOrderRepository) FindByLeadID(ctx context.Context, leadID string) (*model.TrackedOrder, error) {
	var res model.TrackedOrder
	err := m.col.FindOne(ctx, bson.M{"lead_id": leadID}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ApplyStatus moves the mirrored order to status in a single write: every
// history record is unmarked and the new record is appended as current.
func (m *MongoOrderRepository) ApplyStatus(ctx context.Context, leadID, status string, record model.StatusRecord) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"lead_id": leadID}, statusUpdate(status, record, time.Now().UTC()))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// statusUpdate is the aggregation pipeline behind ApplyStatus. Values are
// wrapped in $literal so a reason starting with "$" is not read as a field
// path.
func statusUpdate(status string, record model.StatusRecord, now time.Time) mongo.Pipeline {
	record.Current = true
	unmarked := bson.D{{Key: "$map", Value: bson.D{
		{Key: "input", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$history", bson.A{}}}}},
		{Key: "as", Value: "h"},
		{Key: "in", Value: bson.D{{Key: "$mergeObjects", Value: bson.A{"$$h", bson.D{{Key: "current", Value: false}}}}}},
	}}}

	return mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "history", Value: bson.D{{Key: "$concatArrays", Value: bson.A{
				unmarked,
				bson.A{bson.D{{Key: "$literal", Value: record}}},
			}}}},
			{Key: "status", Value: bson.D{{Key: "$literal", Value: status}}},
			{Key: "updated_at", Value: now},
		}}},
	}
}

// UpdateDelivery refreshes the mutable delivery fields.
func (m *MongoOrderRepository) UpdateDelivery(ctx context.Context, leadID, address string, expected *time.Time) error {
	set := bson.M{"updated_at": time.Now().UTC()}
	if address != "" {
		set["delivery_address"] = address
	}
	if expected != nil {
		set["delivery_expected_date"] = *expected
	}
	res, err := m.col.UpdateOne(ctx, bson.M{"lead_id": leadID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendChange adds an entry to the append-only change log.
func (m *MongoOrderRepository) AppendChange(ctx context.Context, leadID string, rec model.ChangeRecord) error {
	res, err := m.col.UpdateOne(ctx, bson.M{"lead_id": leadID}, bson.M{
		"$push": bson.M{"changes": rec},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoOrderRepository) FindAll(ctx context.Context) ([]*model.TrackedOrder, error) {
	return m.find(ctx, bson.M{})
}

func (m *MongoOrderRepository) FindByStatus(ctx context.Context, status string) ([]*model.TrackedOrder, error) {
	return m.find(ctx, bson.M{"status": status})
}

func (m *MongoOrderRepository) FindByCustomerID(ctx context.Context, customerID string) ([]*model.TrackedOrder, error) {
	return m.find(ctx, bson.M{"customer_id": customerID})
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M) ([]*model.TrackedOrder, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order_date", Value: -1}})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*model.TrackedOrder
	for cur.Next(ctx) {
		var v model.TrackedOrder
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, cur.Err()
}
