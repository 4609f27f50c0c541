package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/dialhaven/recall/pkg/store"
	"github.com/dialhaven/recall/pkg/tenant"
	"github.com/dialhaven/recall/pkg/thread"
	"github.com/dialhaven/recall/pkg/utils"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleThreadAppend appends one turn to the caller's rolling thread and
// triggers consolidation when the append crosses the watermark.
func (s *Server) handleThreadAppend(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	var req ThreadAppendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	callerID, err := tenant.NormalizeCaller(req.CallerID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	role, err := thread.ParseRole(req.Role)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	state, err := s.registry.Append(c.Context(), tenantID, callerID, role, req.Text)
	if err != nil {
		return s.fail(c, err)
	}

	triggered := false
	if state.WatermarkCrossed {
		triggered = s.engine.Trigger(tenantID, callerID)
		s.logger.Debug("watermark crossed",
			zap.String("thread", string(state.ThreadID)),
			zap.String("caller", utils.RedactCaller(string(callerID))),
			zap.Bool("triggered", triggered),
		)
	}

	return c.JSON(ThreadAppendResponse{
		ThreadID:               string(state.ThreadID),
		TurnCount:              state.Len,
		ConsolidationTriggered: triggered,
	})
}

// handleThreadRecent returns the last turns of the caller's thread,
// most-recent-last, hydrating from the last snapshot on a cold thread.
func (s *Server) handleThreadRecent(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	callerID, err := tenant.NormalizeCaller(c.Query("caller_id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	limit := c.QueryInt("limit", s.config.DefaultRecentLimit)
	if limit <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "limit must be a positive integer"})
	}

	turns, err := s.registry.Recent(c.Context(), tenantID, callerID, limit)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(ThreadRecentResponse{
		ThreadID: string(tenant.NewThreadID(tenantID, callerID)),
		Turns:    turns,
	})
}

// handleMemoryWrite upserts one durable memory record directly, outside
// the consolidation path.
func (s *Server) handleMemoryWrite(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	var req MemoryWriteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	rec := &store.Record{
		TenantID: tenantID,
		Type:     store.ParseType(req.Type),
		Key:      req.Key,
		Value:    req.Value,
		Scope:    store.ParseScope(req.Scope),
	}

	if rec.Scope == store.ScopeCaller {
		callerID, err := tenant.NormalizeCaller(req.CallerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		rec.CallerID = callerID
	}

	if req.TTLSeconds > 0 {
		expires := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
		rec.ExpiresAt = &expires
	}

	saved, err := s.storer.Put(c.Context(), rec)
	if err != nil {
		return s.fail(c, err)
	}

	s.metrics.RecordWritten()

	if err := s.searcher.IndexRecords(c.Context(), []*store.Record{saved}); err != nil {
		s.logger.Warn("indexing written record failed",
			zap.String("key", saved.Key),
			zap.Error(err),
		)
	}

	return c.Status(fiber.StatusCreated).JSON(saved)
}

// handleMemoryRead returns the records visible to a caller: their own plus
// the tenant-wide ones. Without a caller_id only tenant-wide records match.
func (s *Server) handleMemoryRead(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	query := store.Query{
		TenantID:  tenantID,
		KeyPrefix: c.Query("key_prefix"),
	}

	if raw := c.Query("caller_id"); raw != "" {
		callerID, err := tenant.NormalizeCaller(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		query.CallerID = callerID
	}

	for _, t := range splitCSV(c.Query("types")) {
		query.Types = append(query.Types, store.ParseType(t))
	}

	records, err := s.storer.Get(c.Context(), query)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(RecordsResponse{
		Count:   len(records),
		Records: records,
	})
}

// handleMemorySearch ranks the caller's visible records against free text.
func (s *Server) handleMemorySearch(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	var req MemorySearchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.Text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "text is required"})
	}

	query := store.SearchQuery{
		TenantID: tenantID,
		Text:     req.Text,
		Limit:    req.Limit,
	}
	if query.Limit <= 0 {
		query.Limit = s.config.DefaultSearchLimit
	}

	if req.CallerID != "" {
		callerID, err := tenant.NormalizeCaller(req.CallerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
		}
		query.CallerID = callerID
	}

	records, err := s.searcher.Search(c.Context(), query)
	if err != nil {
		return s.fail(c, err)
	}

	return c.JSON(RecordsResponse{
		Count:   len(records),
		Records: records,
	})
}

// handleTenantPurge removes everything stored for the requesting tenant:
// memory records, thread snapshots, and vector documents.
func (s *Server) handleTenantPurge(c *fiber.Ctx) error {
	tenantID := requestTenant(c)

	purged, err := s.storer.PurgeTenant(c.Context(), tenantID)
	if err != nil {
		return s.fail(c, err)
	}

	var vectorsPurged int64
	if s.vectors != nil {
		vectorsPurged, err = s.vectors.PurgeTenant(c.Context(), tenantID)
		if err != nil {
			s.logger.Error("vector purge failed after record purge",
				zap.String("tenant_id", string(tenantID)),
				zap.Error(err),
			)
		}
	}

	s.logger.Info("tenant purged",
		zap.String("tenant_id", string(tenantID)),
		zap.Int64("records", purged),
		zap.Int64("vectors", vectorsPurged),
	)

	return c.JSON(TenantPurgeResponse{
		RecordsPurged: purged,
		VectorsPurged: vectorsPurged,
	})
}

// fail maps engine errors onto HTTP statuses. Validation failures are the
// client's fault; an unavailable backend is a 503 so callers can
// distinguish it from a bug.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	var unavailable store.UnavailableError
	switch {
	case errors.Is(err, store.ErrMissingTenant),
		errors.Is(err, store.ErrMissingCaller),
		errors.Is(err, store.ErrMissingKey),
		errors.Is(err, store.ErrScopeMismatch),
		errors.Is(err, tenant.ErrEmptyCaller):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	case errors.As(err, &unavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "internal error"})
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}

	var parts []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
