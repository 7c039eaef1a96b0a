package handler

import (
	"time"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/topup"
)

// RegisterAccountRequest represents a request to register an RFID tag
type RegisterAccountRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	UserID          string `json:"user_id"`
	Balance         int64  `json:"balance"`
	SessionExpiryAt string `json:"session_expiry_at,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// ManualTopUpRequest represents an admin-initiated direct credit
type ManualTopUpRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=CASH GCASH MAYA"`
	ReferenceID   string `json:"reference_id,omitempty"`
	Note          string `json:"note,omitempty"`
}

// SubmitTopUpRequest represents a user-submitted top-up awaiting approval
type SubmitTopUpRequest struct {
	UserID        string `json:"user_id" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=CASH GCASH MAYA"`
}

// ProcessTopUpRequest carries the acting admin for approve and reject
type ProcessTopUpRequest struct {
	AdminID string `json:"admin_id" binding:"required"`
}

// TopUpRequestResponse represents a top-up request in API responses
type TopUpRequestResponse struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	Amount        int64  `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	Status        string `json:"status"`
	RequestedAt   string `json:"requested_at"`
	ProcessedAt   string `json:"processed_at,omitempty"`
	ProcessedBy   string `json:"processed_by,omitempty"`
}

// EntryResponse represents a ledger entry in API responses
type EntryResponse struct {
	ID                    string `json:"id"`
	UserID                string `json:"user_id"`
	Amount                int64  `json:"amount"`
	Type                  string `json:"type"`
	MinutesPurchased      int64  `json:"minutes_purchased"`
	PaymentMethod         string `json:"payment_method,omitempty"`
	ReferenceID           string `json:"reference_id,omitempty"`
	Refunded              bool   `json:"refunded"`
	RefundedTransactionID string `json:"refunded_transaction_id,omitempty"`
	Description           string `json:"description,omitempty"`
	CreatedAt             string `json:"created_at"`
}

// RefundResponse reports a completed refund in API responses
type RefundResponse struct {
	CreditedAmount     int64  `json:"credited_amount"`
	RefundEntryID      string `json:"refund_entry_id,omitempty"`
	NewSessionExpiryAt string `json:"new_session_expiry_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

// ListRequestsParams represents query parameters for listing top-up requests
type ListRequestsParams struct {
	Status string `form:"status,default=PENDING" binding:"oneof=PENDING APPROVED REJECTED"`
	PaginationParams
}

// ReferenceTemplateParams represents query parameters for the reference
// scaffold lookup
type ReferenceTemplateParams struct {
	Method  string `form:"method" binding:"required,oneof=CASH GCASH MAYA"`
	Current string `form:"current"`
}

// ReferenceTemplateResponse carries the reference scaffold for a method
type ReferenceTemplateResponse struct {
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// ListEntriesParams represents query parameters for a user's entry history
type ListEntriesParams struct {
	Type     string `form:"type" binding:"omitempty,oneof=TOPUP MANUAL_TOPUP PURCHASE REFUND"`
	Refunded *bool  `form:"refunded"`
	From     string `form:"from"`
	To       string `form:"to"`
	PaginationParams
}

// mapAccountToResponse maps an account to a response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	response := AccountResponse{
		UserID:    acc.UserID,
		Balance:   acc.Balance,
		Status:    string(acc.Status),
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
	if acc.SessionExpiryAt != nil {
		response.SessionExpiryAt = acc.SessionExpiryAt.Format(time.RFC3339)
	}
	return response
}

// mapRequestToResponse maps a top-up request to a response DTO
func mapRequestToResponse(req *topup.Request) TopUpRequestResponse {
	response := TopUpRequestResponse{
		ID:            req.ID.String(),
		UserID:        req.UserID,
		Amount:        req.Amount,
		PaymentMethod: string(req.PaymentMethod),
		Status:        string(req.Status),
		RequestedAt:   req.RequestedAt.Format(time.RFC3339),
		ProcessedBy:   req.ProcessedBy,
	}
	if req.ProcessedAt != nil {
		response.ProcessedAt = req.ProcessedAt.Format(time.RFC3339)
	}
	return response
}

// mapEntryToResponse maps a ledger entry to a response DTO
func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	return EntryResponse{
		ID:                    entry.ID,
		UserID:                entry.UserID,
		Amount:                entry.Amount,
		Type:                  string(entry.Type),
		MinutesPurchased:      entry.MinutesPurchased,
		PaymentMethod:         string(entry.PaymentMethod),
		ReferenceID:           entry.ReferenceID,
		Refunded:              entry.Refunded,
		RefundedTransactionID: entry.RefundedTransactionID,
		Description:           entry.Description,
		CreatedAt:             entry.CreatedAt.Format(time.RFC3339),
	}
}
