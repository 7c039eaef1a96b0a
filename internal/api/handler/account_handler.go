package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/netvend-ledger/internal/domain/account"
	"github.com/netvend-ledger/internal/domain/ledger"
	"github.com/netvend-ledger/internal/service"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	ledgerService  service.LedgerService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService, ledgerService service.LedgerService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		ledgerService:  ledgerService,
		logger:         logger,
	}
}

// Register creates an account for a fresh RFID tag
func (h *AccountHandler) Register(c *gin.Context) {
	var req RegisterAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountService.RegisterAccount(c.Request.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, account.ErrDuplicateAccount{}) {
			RespondConflict(c, "Account already exists for this tag")
			return
		}
		if errors.Is(err, account.ErrEmptyUserID) {
			RespondBadRequest(c, "User ID must not be empty")
			return
		}
		h.logger.Error("Failed to register account", "user_id", req.UserID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// ResolveTag retrieves the account behind an RFID tag, returns 404 if unknown
func (h *AccountHandler) ResolveTag(c *gin.Context) {
	tag := c.Param("tag")

	acc, err := h.accountService.ResolveTag(c.Request.Context(), tag)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to resolve tag", "tag", tag, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// ListEntries retrieves paginated, filtered ledger history for a tag
func (h *AccountHandler) ListEntries(c *gin.Context) {
	tag := c.Param("tag")

	var params ListEntriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Error("Invalid query parameters", "error", err)
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	filter, err := buildEntryFilter(params)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	entries, total, err := h.ledgerService.ListEntries(c.Request.Context(), tag, filter, params.Page, params.PerPage)
	if err != nil {
		h.logger.Error("Failed to list entries", "tag", tag, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, params.Page, params.PerPage, int(total))
}

// buildEntryFilter translates the query parameters into a ledger filter
func buildEntryFilter(params ListEntriesParams) (ledger.Filter, error) {
	var filter ledger.Filter

	if params.Type != "" {
		entryType := ledger.EntryType(params.Type)
		filter.Type = &entryType
	}
	filter.Refunded = params.Refunded

	if params.From != "" {
		from, err := time.Parse(time.RFC3339, params.From)
		if err != nil {
			return ledger.Filter{}, errors.New("invalid 'from' timestamp, expected RFC3339")
		}
		filter.From = &from
	}
	if params.To != "" {
		to, err := time.Parse(time.RFC3339, params.To)
		if err != nil {
			return ledger.Filter{}, errors.New("invalid 'to' timestamp, expected RFC3339")
		}
		filter.To = &to
	}

	return filter, nil
}
