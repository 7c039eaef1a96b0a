package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/netvend-ledger/internal/domain/ledger"
)

const (
	// LedgerCollectionName is the name of the ledger collection in MongoDB
	LedgerCollectionName = "ledger_entries"
)

// LedgerRepository implements the ledger.Repository interface for MongoDB.
// Entry ids are stored in _id, so uniqueness is enforced by the collection
// itself and Create is a true conditional insert rather than a
// check-then-write.
type LedgerRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewLedgerRepository creates a new MongoDB ledger repository
func NewLedgerRepository(logger *slog.Logger, db *mongo.Database) ledger.Repository {
	return &LedgerRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new ledger entry. The insert is atomic against the _id
// index: when two creates race on the same id exactly one wins and the other
// gets ErrDuplicateEntry. An existing entry is never overwritten.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	collection := r.db.Collection(LedgerCollectionName)

	_, err := collection.InsertOne(ctx, entry)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ledger.ErrDuplicateEntry{ID: entry.ID}
		}
		r.logger.Error("Failed to create ledger entry",
			"entry_id", entry.ID,
			"error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a ledger entry by its id.
// Returns ErrEntryNotFound if no entry exists.
func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	var entry ledger.Entry
	err := collection.FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ledger.ErrEntryNotFound{ID: id}
		}
		r.logger.Error("Failed to get ledger entry",
			"entry_id", id,
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// Exists reports whether an entry with the given id is already stored
func (r *LedgerRepository) Exists(ctx context.Context, id string) (bool, error) {
	collection := r.db.Collection(LedgerCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		r.logger.Error("Failed to check ledger entry existence",
			"entry_id", id,
			"error", err)
		return false, fmt.Errorf("failed to check ledger entry existence: %w", err)
	}

	return count > 0, nil
}

// GetByUserID retrieves paginated ledger entries for a user, newest first,
// narrowed by the optional filter fields.
func (r *LedgerRepository) GetByUserID(ctx context.Context, userID string, filter ledger.Filter, limit, offset int) ([]*ledger.Entry, error) {
	collection := r.db.Collection(LedgerCollectionName)

	opts := options.Find().
		SetSort(bson.M{"created_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, buildUserFilter(userID, filter), opts)
	if err != nil {
		r.logger.Error("Failed to get ledger entries",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var entries []*ledger.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		r.logger.Error("Failed to decode ledger entries",
			"user_id", userID,
			"error", err)
		return nil, fmt.Errorf("failed to decode ledger entries: %w", err)
	}

	return entries, nil
}

// CountByUserID counts a user's ledger entries under the same filter as
// GetByUserID
func (r *LedgerRepository) CountByUserID(ctx context.Context, userID string, filter ledger.Filter) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	count, err := collection.CountDocuments(ctx, buildUserFilter(userID, filter))
	if err != nil {
		r.logger.Error("Failed to count ledger entries",
			"user_id", userID,
			"error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// MarkRefunded flips the entry's single refunded:false->true transition and
// records the back-reference to the refund entry. The update is conditional
// on refunded=false and type!=REFUND, so when two refund attempts race the
// loser's matched count is zero and the follow-up read classifies the
// failure as NotFound, IsRefundEntry or AlreadyRefunded.
func (r *LedgerRepository) MarkRefunded(ctx context.Context, id, refundEntryID string) error {
	collection := r.db.Collection(LedgerCollectionName)

	filter := bson.M{
		"_id":      id,
		"refunded": false,
		"type":     bson.M{"$ne": ledger.EntryTypeRefund},
	}
	update := bson.M{
		"$set": bson.M{
			"refunded":                true,
			"refunded_transaction_id": refundEntryID,
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to mark ledger entry refunded",
			"entry_id", id,
			"refund_entry_id", refundEntryID,
			"error", err)
		return fmt.Errorf("failed to mark ledger entry refunded: %w", err)
	}

	if result.MatchedCount > 0 {
		return nil
	}

	entry, err := r.GetByID(ctx, id)
	if err != nil {
		return err // ErrEntryNotFound or a transient store failure
	}
	if entry.Type == ledger.EntryTypeRefund {
		return ledger.ErrRefundEntry{ID: id}
	}
	return ledger.ErrAlreadyRefunded{ID: id}
}

// SumMinutesByUser sums minutes_purchased over all of the user's entries,
// refunds included. This is the ledger truth the session expiry is derived
// from.
func (r *LedgerRepository) SumMinutesByUser(ctx context.Context, userID string) (int64, error) {
	return r.sumField(ctx, userID, "$minutes_purchased")
}

// SumAmountByUser sums the effective balance contribution of all of the
// user's entries: purchases debit, every other type credits. Used by the
// reconciler to compare the cached balance against ledger truth.
func (r *LedgerRepository) SumAmountByUser(ctx context.Context, userID string) (int64, error) {
	signed := bson.M{"$cond": bson.A{
		bson.M{"$eq": bson.A{"$type", ledger.EntryTypePurchase}},
		bson.M{"$multiply": bson.A{"$amount", -1}},
		"$amount",
	}}
	return r.sumField(ctx, userID, signed)
}

func (r *LedgerRepository) sumField(ctx context.Context, userID string, field interface{}) (int64, error) {
	collection := r.db.Collection(LedgerCollectionName)

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": field}}}},
	}

	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate ledger entries",
			"user_id", userID,
			"field", field,
			"error", err)
		return 0, fmt.Errorf("failed to aggregate ledger entries: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("failed to decode ledger aggregation: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

func buildUserFilter(userID string, filter ledger.Filter) bson.M {
	query := bson.M{"user_id": userID}
	if filter.Type != nil {
		query["type"] = *filter.Type
	}
	if filter.Refunded != nil {
		query["refunded"] = *filter.Refunded
	}
	if filter.From != nil || filter.To != nil {
		created := bson.M{}
		if filter.From != nil {
			created["$gte"] = *filter.From
		}
		if filter.To != nil {
			created["$lte"] = *filter.To
		}
		query["created_at"] = created
	}
	return query
}
