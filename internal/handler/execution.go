package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/websocket"
)

const maxListLimit = 500

type ExecutionHandler struct {
	machine     *chore.Machine
	generator   *chore.Generator
	executions  *store.ExecutionStore
	definitions *store.TaskStore
	hub         *websocket.Hub
	clock       clock.Clock
	loc         *time.Location
	logger      *slog.Logger
}

func NewExecutionHandler(m *chore.Machine, g *chore.Generator, es *store.ExecutionStore, ts *store.TaskStore, hub *websocket.Hub, c clock.Clock, loc *time.Location, logger *slog.Logger) *ExecutionHandler {
	return &ExecutionHandler{
		machine:     m,
		generator:   g,
		executions:  es,
		definitions: ts,
		hub:         hub,
		clock:       c,
		loc:         loc,
		logger:      logger,
	}
}

func (h *ExecutionHandler) broadcast(msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(msg)
	}
}

// announce tells the members who can see e that it changed.
func (h *ExecutionHandler) announce(ctx context.Context, e *model.TaskExecution, action string) {
	def, err := h.definitions.GetByID(ctx, e.DefinitionID)
	if err != nil || def == nil {
		h.logger.Warn("skip execution event, definition unavailable", "execution_id", e.ID, "error", err)
		return
	}
	msg := websocket.NewMessage("execution", action, e.ID, map[string]any{
		"status":         e.Status,
		"scheduled_date": e.ScheduledDate,
		"definition_id":  e.DefinitionID,
	})
	if audience := assignment.Audience(*def, e); audience != nil {
		msg = msg.For(audience...)
	}
	h.broadcast(msg)
}

type generateRequest struct {
	Date *model.Date `json:"date"`
	From *model.Date `json:"from"`
	To   *model.Date `json:"to"`
}

// Generate handles POST /api/executions/generate. An empty body generates
// for today in the household timezone.
func (h *ExecutionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	switch {
	case req.From != nil || req.To != nil:
		if req.From == nil || req.To == nil || req.Date != nil {
			writeError(w, http.StatusBadRequest, "from and to must be given together, without date")
			return
		}
		if req.To.Before(*req.From) || req.From.DaysUntil(*req.To) > recurrence.MaxWindowDays {
			writeError(w, http.StatusBadRequest, "invalid date range")
			return
		}
		results, err := h.generator.GenerateRange(r.Context(), *req.From, *req.To)
		if err != nil {
			writeDomainError(w, h.logger, err, "failed to generate executions")
			return
		}
		for _, res := range results {
			h.announceGenerated(res)
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": results})
	default:
		date := clock.Today(h.clock, h.loc)
		if req.Date != nil {
			date = *req.Date
		}
		res, err := h.generator.Generate(r.Context(), date)
		if err != nil {
			writeDomainError(w, h.logger, err, "failed to generate executions")
			return
		}
		h.announceGenerated(res)
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *ExecutionHandler) announceGenerated(res *chore.GenerateResult) {
	for _, f := range res.Failures {
		h.logger.Warn("definition not generated", "date", res.TargetDate.String(), "definition_id", f.DefinitionID, "error", f.Message)
	}
	if res.GeneratedCount == 0 {
		return
	}
	h.broadcast(websocket.NewMessage("execution", "generated", 0, map[string]any{
		"date":  res.TargetDate,
		"count": res.GeneratedCount,
	}))
}

// List handles GET /api/executions.
func (h *ExecutionHandler) List(w http.ResponseWriter, r *http.Request) {
	f, err := parseExecutionFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	execs, err := h.executions.List(r.Context(), f)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to list executions")
		return
	}
	if execs == nil {
		execs = []model.TaskExecution{}
	}
	writeJSON(w, http.StatusOK, execs)
}

func parseExecutionFilter(r *http.Request) (store.ExecutionFilter, error) {
	var f store.ExecutionFilter
	var err error

	if f.From, err = queryDate(r, "from"); err != nil {
		return f, errors.New("invalid from")
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		return f, errors.New("invalid to")
	}
	date, err := queryDate(r, "date")
	if err != nil {
		return f, errors.New("invalid date")
	}
	if date != nil {
		f.From, f.To = date, date
	}
	if f.MemberID, err = queryID(r, "member_id"); err != nil {
		return f, errors.New("invalid member_id")
	}
	if f.DefinitionID, err = queryID(r, "definition_id"); err != nil {
		return f, errors.New("invalid definition_id")
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := model.ExecutionStatus(strings.ToUpper(strings.TrimSpace(s)))
			if !status.Valid() {
				return f, errors.New("invalid status " + s)
			}
			f.Status = append(f.Status, status)
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			return f, errors.New("invalid limit")
		}
		f.Limit = n
	}
	return f, nil
}

// Get handles GET /api/executions/{id}.
func (h *ExecutionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.machine.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to get execution")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"execution":      e,
		"display_status": chore.ComputeStatus(*e, clock.Today(h.clock, h.loc)),
	})
}

type assigneesRequest struct {
	Assignees []int64 `json:"assignees"`
}

// Start handles POST /api/executions/{id}/start.
func (h *ExecutionHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.withAssignees(w, r, "started", h.machine.Start)
}

// Assign handles POST /api/executions/{id}/assign.
func (h *ExecutionHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.withAssignees(w, r, "assigned", h.machine.Assign)
}

func (h *ExecutionHandler) withAssignees(w http.ResponseWriter, r *http.Request, action string, apply func(context.Context, int64, []int64) (*model.TaskExecution, error)) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req assigneesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	e, err := apply(r.Context(), id, req.Assignees)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to update execution")
		return
	}
	h.announce(r.Context(), e, action)
	writeJSON(w, http.StatusOK, e)
}

type completeRequest struct {
	MemberID int64 `json:"member_id"`
}

// Complete handles POST /api/executions/{id}/complete. The completing
// member defaults to the member the request acts for.
func (h *ExecutionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	var req completeRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.MemberID == 0 {
		req.MemberID = auth.MemberID(r.Context())
	}
	if req.MemberID == 0 {
		writeError(w, http.StatusBadRequest, "member_id is required")
		return
	}

	e, err := h.machine.Complete(r.Context(), id, req.MemberID)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to complete execution")
		return
	}
	h.announce(r.Context(), e, "completed")
	writeJSON(w, http.StatusOK, e)
}

// Cancel handles POST /api/executions/{id}/cancel.
func (h *ExecutionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	e, err := h.machine.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to cancel execution")
		return
	}
	h.announce(r.Context(), e, "cancelled")
	writeJSON(w, http.StatusOK, e)
}
