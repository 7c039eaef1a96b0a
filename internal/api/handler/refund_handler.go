package handler

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/service"
)

// RefundHandler handles HTTP requests for refund operations
type RefundHandler struct {
	refundService service.RefundService
	logger        *slog.Logger
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(logger *slog.Logger, refundService service.RefundService) *RefundHandler {
	return &RefundHandler{
		refundService: refundService,
		logger:        logger,
	}
}

// Refund reverses a ledger entry's money and time effect
func (h *RefundHandler) Refund(c *gin.Context) {
	entryID := c.Param("entryId")
	if entryID == "" {
		RespondBadRequest(c, "Entry ID is required")
		return
	}

	result, err := h.refundService.Refund(c.Request.Context(), entryID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrEntryNotFound{}):
			RespondNotFound(c, "Ledger entry not found")
		case errors.Is(err, ledger.ErrRefundEntry{}):
			RespondConflict(c, "Refund entries cannot be refunded")
		case errors.Is(err, ledger.ErrAlreadyRefunded{}):
			RespondConflict(c, "Ledger entry was already refunded")
		case errors.Is(err, account.ErrAccountNotFound{}):
			RespondNotFound(c, "Account not found")
		default:
			h.logger.Error("Refund failed", "entry_id", entryID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	response := RefundResponse{
		CreditedAmount: result.CreditedAmount,
		RefundEntryID:  result.RefundEntryID,
	}
	if result.NewSessionExpiryAt != nil {
		response.NewSessionExpiryAt = result.NewSessionExpiryAt.Format(time.RFC3339)
	}

	RespondOK(c, response)
}
