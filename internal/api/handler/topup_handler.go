package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/netvend-ledger/internal/api/middleware"
	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/domain/shared"
	"github.com/netvend-ledger/internal/domain/topup"
	"github.com/netvend-ledger/internal/refid"
	"github.com/netvend-ledger/internal/service"
)

// TopUpHandler handles HTTP requests for the top-up workflow
type TopUpHandler struct {
	topupService service.TopUpService
	logger       *slog.Logger
}

// NewTopUpHandler creates a new top-up handler
func NewTopUpHandler(logger *slog.Logger, topupService service.TopUpService) *TopUpHandler {
	return &TopUpHandler{
		topupService: topupService,
		logger:       logger,
	}
}

// CreateManual records an admin-initiated direct credit
func (h *TopUpHandler) CreateManual(c *gin.Context) {
	var req ManualTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	method, err := shared.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		RespondBadRequest(c, "Invalid payment method")
		return
	}

	entry, err := h.topupService.CreateManualTopUp(c.Request.Context(), service.ManualTopUpParams{
		UserID:        req.UserID,
		Amount:        req.Amount,
		Method:        method,
		Reference:     req.ReferenceID,
		Note:          req.Note,
		CorrelationID: middleware.GetCorrelationID(c),
	})
	if err != nil {
		h.respondTopUpError(c, req.UserID, err)
		return
	}

	RespondCreated(c, mapEntryToResponse(entry))
}

// ReferenceTemplate returns the reference scaffold for a payment method. The
// prefix is immutable once a method is selected; when the caller passes its
// current reference along with a different method, the reference is rebased
// to the new method's prefix and the old free text is discarded.
func (h *TopUpHandler) ReferenceTemplate(c *gin.Context) {
	var params ReferenceTemplateParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	method, err := shared.ParsePaymentMethod(params.Method)
	if err != nil {
		RespondBadRequest(c, "Invalid payment method")
		return
	}

	var reference string
	if params.Current != "" {
		reference, err = refid.Rebase(params.Current, method)
	} else {
		reference, err = refid.DefaultReference(method)
	}
	if err != nil {
		RespondBadRequest(c, "Invalid payment method")
		return
	}

	RespondOK(c, ReferenceTemplateResponse{
		Method:    string(method),
		Reference: reference,
	})
}

// SubmitRequest records a user-submitted top-up awaiting an admin decision
func (h *TopUpHandler) SubmitRequest(c *gin.Context) {
	var req SubmitTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	method, err := shared.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		RespondBadRequest(c, "Invalid payment method")
		return
	}

	request, err := h.topupService.SubmitRequest(c.Request.Context(), req.UserID, req.Amount, method)
	if err != nil {
		h.respondTopUpError(c, req.UserID, err)
		return
	}

	RespondCreated(c, mapRequestToResponse(request))
}

// ListRequests retrieves a page of requests in the given state
func (h *TopUpHandler) ListRequests(c *gin.Context) {
	var params ListRequestsParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	requests, err := h.topupService.ListRequests(c.Request.Context(), topup.Status(params.Status), params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list top-up requests", "status", params.Status, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TopUpRequestResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, mapRequestToResponse(request))
	}

	RespondWithData(c, http.StatusOK, responses)
}

// Approve stamps a pending request APPROVED and credits the account
func (h *TopUpHandler) Approve(c *gin.Context) {
	h.process(c, h.topupService.Approve)
}

// Reject stamps a pending request REJECTED
func (h *TopUpHandler) Reject(c *gin.Context) {
	h.process(c, h.topupService.Reject)
}

func (h *TopUpHandler) process(c *gin.Context, fn func(ctx context.Context, requestID uuid.UUID, adminID string) (*topup.Request, error)) {
	idParam := c.Param("id")
	requestID, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid request ID")
		return
	}

	var body ProcessTopUpRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	request, err := fn(c.Request.Context(), requestID, body.AdminID)
	if err != nil {
		if errors.Is(err, topup.ErrRequestNotFound{}) {
			RespondNotFound(c, "Top-up request not found")
			return
		}
		if errors.Is(err, topup.ErrAlreadyProcessed{}) {
			RespondConflict(c, "Top-up request was already processed")
			return
		}
		h.logger.Error("Failed to process top-up request", "request_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapRequestToResponse(request))
}

// respondTopUpError maps top-up failures to HTTP statuses
func (h *TopUpHandler) respondTopUpError(c *gin.Context, userID string, err error) {
	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
	case errors.Is(err, account.ErrAccountBlacklisted{}):
		RespondForbidden(c, "Account is blacklisted")
	case errors.Is(err, account.ErrInvalidAmount):
		RespondBadRequest(c, "Amount must be positive")
	case errors.Is(err, refid.ErrInvalidReference{}):
		RespondBadRequest(c, "Invalid payment reference for this method")
	case errors.Is(err, refid.ErrDuplicateReference{}):
		RespondConflict(c, "Payment reference was already recorded")
	case errors.Is(err, ledger.ErrDuplicateEntry{}):
		RespondConflict(c, "Ledger entry with this reference already exists")
	default:
		h.logger.Error("Top-up failed", "user_id", userID, "error", err)
		RespondInternalError(c)
	}
}
