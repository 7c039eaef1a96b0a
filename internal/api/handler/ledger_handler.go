package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/netvend-ledger/internal/service"
)

// LedgerHandler handles HTTP requests for ledger entry lookups
type LedgerHandler struct {
	ledgerService service.LedgerService
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		logger:        logger,
	}
}

// GetByID retrieves a ledger entry by its ID, returns 404 if not found
func (h *LedgerHandler) GetByID(c *gin.Context) {
	id := c.Param("id")

	entry, err := h.ledgerService.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get ledger entry", "entry_id", id, "error", err)
		RespondInternalError(c)
		return
	}

	if entry == nil {
		RespondNotFound(c, "Ledger entry not found")
		return
	}

	RespondOK(c, mapEntryToResponse(entry))
}
