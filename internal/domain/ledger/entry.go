package ledger

import (
	"time"

	"github.com/netvend-ledger/internal/domain/shared"
)

// EntryType defines the balance-affecting event categories
type EntryType string

const (
	EntryTypeTopUp       EntryType = "TOPUP"
	EntryTypeManualTopUp EntryType = "MANUAL_TOPUP"
	EntryTypePurchase    EntryType = "PURCHASE"
	EntryTypeRefund      EntryType = "REFUND"
)

// Entry is one immutable financial record in the ledger. The ID doubles as
// the external reference where the payment channel supplies one. The only
// permitted mutation after insert is the refunded:false->true transition,
// performed by Repository.MarkRefunded.
type Entry struct {
	ID                    string               `json:"id" bson:"_id"`
	UserID                string               `json:"user_id" bson:"user_id"`
	Amount                int64                `json:"amount" bson:"amount"` // Stored in cents/minor units
	Type                  EntryType            `json:"type" bson:"type"`
	MinutesPurchased      int64                `json:"minutes_purchased" bson:"minutes_purchased"` // Signed; negative on refunds
	PaymentMethod         shared.PaymentMethod `json:"payment_method,omitempty" bson:"payment_method,omitempty"`
	ReferenceID           string               `json:"reference_id,omitempty" bson:"reference_id,omitempty"`
	Refunded              bool                 `json:"refunded" bson:"refunded"`
	RefundedTransactionID string               `json:"refunded_transaction_id,omitempty" bson:"refunded_transaction_id,omitempty"`
	Description           string               `json:"description,omitempty" bson:"description,omitempty"`
	CorrelationID         string               `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	CreatedAt             time.Time            `json:"created_at" bson:"created_at"`
}

// Refundable reports whether the entry may still be reversed
func (e *Entry) Refundable() bool {
	return e.Type != EntryTypeRefund && !e.Refunded
}
