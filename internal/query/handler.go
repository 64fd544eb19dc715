package query

import (
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-gonic/gin"

	v1 "github.com/gatewise-lab/project-gatewise/internal/api/v1"
	httperr "github.com/gatewise-lab/project-gatewise/internal/core/errors"
	"github.com/gatewise-lab/project-gatewise/internal/core/record"
	"github.com/gatewise-lab/project-gatewise/internal/core/retry"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/readmodel"
	"github.com/gatewise-lab/project-gatewise/internal/writeback"
)

// eventListResponse is the envelope for event collection endpoints.
// A non-empty Error next to a populated Events slice means the data is
// a stale cache fallback: render it with an error banner, not a blank.
type eventListResponse struct {
	ChainID   uint64             `json:"chain_id"`
	State     string             `json:"state"`
	Error     string             `json:"error,omitempty"`
	FromCache bool               `json:"from_cache"`
	UpdatedAt time.Time          `json:"updated_at"`
	Events    []v1.EventResponse `json:"events"`
}

type ticketListResponse struct {
	ChainID   uint64              `json:"chain_id"`
	State     string              `json:"state"`
	Error     string              `json:"error,omitempty"`
	FromCache bool                `json:"from_cache"`
	UpdatedAt time.Time           `json:"updated_at"`
	Tickets   []v1.TicketResponse `json:"tickets"`
}

// HandleListEvents handles GET /v1/chains/:chain_id/events
// Query parameters: organizer, status (comma-separated), limit, offset, refresh.
func (s *Service) HandleListEvents(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		badRequest(c, "Invalid chain id")
		return
	}

	var query struct {
		Organizer string `form:"organizer"`
		Status    string `form:"status"`
		Limit     int    `form:"limit"`
		Offset    int    `form:"offset"`
		Refresh   bool   `form:"refresh"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequestDetails(c, "Invalid query parameters", err.Error())
		return
	}
	// Absent and zero limits collapse to the shared default so the
	// warmed listing and the interactive one use the same cache key.
	if query.Limit <= 0 {
		query.Limit = fetcher.DefaultListLimit
	}

	var organizer *common.Address
	if query.Organizer != "" {
		addr, err := record.ParseAddress(query.Organizer)
		if err != nil {
			badRequestDetails(c, "Invalid organizer address", err.Error())
			return
		}
		organizer = &addr
	}

	statuses, err := parseStatuses(query.Status)
	if err != nil {
		badRequestDetails(c, "Invalid status filter", err.Error())
		return
	}

	q := buildQuery(organizer, statuses, query.Limit, query.Offset)
	var snap readmodel.Snapshot[record.EventRecord]
	if query.Refresh {
		snap = s.store.RefetchAllEvents(c.Request.Context(), chainID, q)
	} else {
		snap = s.store.AllEvents(c.Request.Context(), chainID, q)
	}
	writeEventSnapshot(c, chainID, snap)
}

// HandleGetEvent handles GET /v1/chains/:chain_id/events/:event_id.
func (s *Service) HandleGetEvent(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		badRequest(c, "Invalid chain id")
		return
	}
	eventID, err := parseUintParam(c, "event_id")
	if err != nil {
		badRequest(c, "Invalid event id")
		return
	}

	snap := s.store.Event(c.Request.Context(), chainID, eventID)
	if snap.State == readmodel.StateReady && len(snap.Collection) == 0 {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Event not found",
		})
		return
	}
	writeEventSnapshot(c, chainID, snap)
}

// HandleOrganizerEvents handles GET /v1/chains/:chain_id/organizers/:address/events.
func (s *Service) HandleOrganizerEvents(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		badRequest(c, "Invalid chain id")
		return
	}
	organizer, err := record.ParseAddress(c.Param("address"))
	if err != nil {
		badRequestDetails(c, "Invalid organizer address", err.Error())
		return
	}

	var snap readmodel.Snapshot[record.EventRecord]
	if c.Query("refresh") == "true" {
		snap = s.store.RefetchOrganizerEvents(c.Request.Context(), chainID, organizer)
	} else {
		snap = s.store.OrganizerEvents(c.Request.Context(), chainID, organizer)
	}
	writeEventSnapshot(c, chainID, snap)
}

// HandleOwnerTickets handles GET /v1/chains/:chain_id/owners/:address/tickets.
func (s *Service) HandleOwnerTickets(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		badRequest(c, "Invalid chain id")
		return
	}
	owner, err := record.ParseAddress(c.Param("address"))
	if err != nil {
		badRequestDetails(c, "Invalid owner address", err.Error())
		return
	}

	var snap readmodel.Snapshot[record.TicketRecord]
	if c.Query("refresh") == "true" {
		snap = s.store.RefetchUserTickets(c.Request.Context(), chainID, owner)
	} else {
		snap = s.store.UserTickets(c.Request.Context(), chainID, owner)
	}

	status, errMsg := snapshotStatus(snap.State, snap.Err, snap.UserMessage, len(snap.Collection))
	if status != http.StatusOK {
		writeSnapshotError(c, status, snap.Err, errMsg)
		return
	}
	c.JSON(http.StatusOK, ticketListResponse{
		ChainID:   chainID,
		State:     string(snap.State),
		Error:     errMsg,
		FromCache: snap.FromCache,
		UpdatedAt: snap.UpdatedAt,
		Tickets:   v1.TicketsFromRecords(snap.Collection),
	})
}

// HandleCacheStats handles GET /v1/cache/stats.
func (s *Service) HandleCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"events":  s.store.Events().CacheStats(),
		"tickets": s.store.Tickets().CacheStats(),
	})
}

// confirmationRequest is the body of a write-confirmation callback.
type confirmationRequest struct {
	Operation string `json:"operation" binding:"required"`
	Organizer string `json:"organizer"`
	Buyer     string `json:"buyer"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// HandleConfirmation handles POST /v1/chains/:chain_id/confirmations.
// Called after a write transaction is confirmed on chain; invalidates
// the affected cache keys before responding.
func (s *Service) HandleConfirmation(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		badRequest(c, "Invalid chain id")
		return
	}

	var req confirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestDetails(c, "Invalid JSON body", err.Error())
		return
	}

	op, err := writeback.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownOperation,
			Message:   err.Error(),
		})
		return
	}

	conf := writeback.Confirmation{Op: op, ChainID: chainID}
	if conf.Organizer, err = optionalAddress(req.Organizer); err != nil {
		badRequestDetails(c, "Invalid organizer address", err.Error())
		return
	}
	if conf.Buyer, err = optionalAddress(req.Buyer); err != nil {
		badRequestDetails(c, "Invalid buyer address", err.Error())
		return
	}
	if conf.From, err = optionalAddress(req.From); err != nil {
		badRequestDetails(c, "Invalid from address", err.Error())
		return
	}
	if conf.To, err = optionalAddress(req.To); err != nil {
		badRequestDetails(c, "Invalid to address", err.Error())
		return
	}

	if err := s.coordinator.Confirm(conf); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownOperation,
			Message:   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "invalidated"})
}

// calldataRequest carries the typed arguments of one contract write.
// Only the fields relevant to the requested operation are read.
type calldataRequest struct {
	Operation   string `json:"operation" binding:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Date        uint64 `json:"date"`
	Venue       string `json:"venue"`
	PriceWei    string `json:"price_wei"`
	MaxSupply   uint64 `json:"max_supply"`
	EventID     uint64 `json:"event_id"`
	NewStatus   string `json:"new_status"`
	Account     string `json:"account"`
	From        string `json:"from"`
	To          string `json:"to"`
	TokenID     uint64 `json:"token_id"`
}

// HandleCalldata handles POST /v1/chains/:chain_id/calldata: packs ABI
// calldata for a wallet to sign. The chain id is accepted for symmetry
// with the other routes; the ABI is chain-independent.
func (s *Service) HandleCalldata(c *gin.Context) {
	if _, ok := parseChainID(c); !ok {
		badRequest(c, "Invalid chain id")
		return
	}

	var req calldataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequestDetails(c, "Invalid JSON body", err.Error())
		return
	}

	op, err := writeback.ParseOperation(req.Operation)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownOperation,
			Message:   err.Error(),
		})
		return
	}

	args, err := calldataArgs(op, req)
	if err != nil {
		badRequestDetails(c, "Invalid calldata arguments", err.Error())
		return
	}

	data, err := s.coordinator.Calldata(op, args...)
	if err != nil {
		badRequestDetails(c, "Calldata packing failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"operation": string(op),
		"calldata":  hexutil.Encode(data),
	})
}

func writeEventSnapshot(c *gin.Context, chainID uint64, snap readmodel.Snapshot[record.EventRecord]) {
	status, errMsg := snapshotStatus(snap.State, snap.Err, snap.UserMessage, len(snap.Collection))
	if status != http.StatusOK {
		writeSnapshotError(c, status, snap.Err, errMsg)
		return
	}
	c.JSON(http.StatusOK, eventListResponse{
		ChainID:   chainID,
		State:     string(snap.State),
		Error:     errMsg,
		FromCache: snap.FromCache,
		UpdatedAt: snap.UpdatedAt,
		Events:    v1.EventsFromRecords(snap.Collection),
	})
}

// snapshotStatus decides the HTTP status for a snapshot. An error with a
// stale collection still returns 200: surfacing cached data beats a
// blank failure page.
func snapshotStatus(state readmodel.State, err error, userMessage string, collectionLen int) (int, string) {
	if state != readmodel.StateError {
		return http.StatusOK, ""
	}
	if collectionLen > 0 {
		return http.StatusOK, userMessage
	}

	classified := retry.Classify(err)
	switch classified.Category {
	case retry.CategoryChainUnsupported, retry.CategoryNotDeployed:
		return http.StatusBadRequest, userMessage
	case retry.CategoryValidation:
		return http.StatusUnprocessableEntity, userMessage
	default:
		return http.StatusBadGateway, userMessage
	}
}

func writeSnapshotError(c *gin.Context, status int, err error, userMessage string) {
	errType := httperr.HttpUpstreamFetchError
	classified := retry.Classify(err)
	switch classified.Category {
	case retry.CategoryChainUnsupported:
		errType = httperr.HttpChainUnsupported
	case retry.CategoryNotDeployed:
		errType = httperr.HttpContractNotDeployed
	case retry.CategoryValidation:
		errType = httperr.HttpInvalidRequestError
	}
	c.JSON(status, httperr.ErrorResponse{
		ErrorType: errType,
		Message:   userMessage,
		Details:   err.Error(),
	})
}

func calldataArgs(op writeback.Operation, req calldataRequest) ([]interface{}, error) {
	switch op {
	case writeback.OpCreateEvent:
		price, err := parseWei(req.PriceWei)
		if err != nil {
			return nil, err
		}
		return []interface{}{
			req.Name, req.Description,
			new(big.Int).SetUint64(req.Date), req.Venue,
			price, new(big.Int).SetUint64(req.MaxSupply),
		}, nil

	case writeback.OpPurchaseTicket:
		return []interface{}{new(big.Int).SetUint64(req.EventID)}, nil

	case writeback.OpUpdateEventStatus:
		st, err := record.ParseStatusName(req.NewStatus)
		if err != nil {
			return nil, err
		}
		return []interface{}{new(big.Int).SetUint64(req.EventID), uint8(st)}, nil

	case writeback.OpWithdrawRevenue:
		return []interface{}{new(big.Int).SetUint64(req.EventID)}, nil

	case writeback.OpGrantOrganizerRole, writeback.OpRevokeOrganizerRole:
		addr, err := record.ParseAddress(req.Account)
		if err != nil {
			return nil, err
		}
		return []interface{}{addr}, nil

	case writeback.OpTransferFrom:
		from, err := record.ParseAddress(req.From)
		if err != nil {
			return nil, err
		}
		to, err := record.ParseAddress(req.To)
		if err != nil {
			return nil, err
		}
		return []interface{}{from, to, new(big.Int).SetUint64(req.TokenID)}, nil
	}
	return nil, nil
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok || wei.Sign() < 0 {
		return nil, errInvalidWei(s)
	}
	return wei, nil
}

func errInvalidWei(s string) error {
	return &weiError{raw: s}
}

type weiError struct{ raw string }

func (e *weiError) Error() string {
	return "invalid wei amount " + e.raw
}

func optionalAddress(s string) (*common.Address, error) {
	if s == "" {
		return nil, nil
	}
	addr, err := record.ParseAddress(s)
	if err != nil {
		return nil, err
	}
	return &addr, nil
}

func parseUintParam(c *gin.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpInvalidRequestError,
		Message:   msg,
	})
}

func badRequestDetails(c *gin.Context, msg string, details interface{}) {
	c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
		ErrorType: httperr.HttpInvalidRequestError,
		Message:   msg,
		Details:   details,
	})
}
