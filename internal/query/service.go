// Package query exposes the read-model layer over HTTP. Handlers bind
// and validate input, delegate to the read models, and translate
// snapshots into wire responses. No fetch policy lives here.
package query

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/gatewise-lab/project-gatewise/internal/core/record"
	"github.com/gatewise-lab/project-gatewise/internal/fetcher"
	"github.com/gatewise-lab/project-gatewise/internal/readmodel"
	"github.com/gatewise-lab/project-gatewise/internal/writeback"
)

// Service wires the query API to the read models and the write-path
// coordinator.
type Service struct {
	store       *readmodel.Store
	coordinator *writeback.Coordinator
}

// NewService creates the query service.
func NewService(store *readmodel.Store, coordinator *writeback.Coordinator) *Service {
	if store == nil {
		panic("query: store must not be nil")
	}
	if coordinator == nil {
		panic("query: coordinator must not be nil")
	}
	return &Service{store: store, coordinator: coordinator}
}

// RegisterRoutes registers all query API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/chains/:chain_id/events", s.HandleListEvents)
	r.GET("/v1/chains/:chain_id/events/:event_id", s.HandleGetEvent)
	r.GET("/v1/chains/:chain_id/organizers/:address/events", s.HandleOrganizerEvents)
	r.GET("/v1/chains/:chain_id/owners/:address/tickets", s.HandleOwnerTickets)
	r.GET("/v1/cache/stats", s.HandleCacheStats)
	r.POST("/v1/chains/:chain_id/confirmations", s.HandleConfirmation)
	r.POST("/v1/chains/:chain_id/calldata", s.HandleCalldata)
}

// parseChainID reads the chain id path segment.
func parseChainID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("chain_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseStatuses converts a comma-separated status filter.
func parseStatuses(raw string) ([]record.Status, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	statuses := make([]record.Status, 0, len(parts))
	for _, p := range parts {
		st, err := record.ParseStatusName(strings.TrimSpace(strings.ToLower(p)))
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

// buildQuery assembles a fetcher.Query from list-endpoint parameters.
func buildQuery(organizer *common.Address, statuses []record.Status, limit, offset int) fetcher.Query {
	return fetcher.Query{
		Organizer: organizer,
		Statuses:  statuses,
		Limit:     limit,
		Offset:    offset,
	}
}
