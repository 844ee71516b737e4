package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/report"
)

const (
	defaultUpcomingHours = 24
	defaultCalendarDays  = 14
	maxCalendarDays      = 90
)

type ReportHandler struct {
	reports  *report.Service
	resolver *assignment.Resolver
	clock    clock.Clock
	loc      *time.Location
	logger   *slog.Logger
}

func NewReportHandler(rs *report.Service, res *assignment.Resolver, c clock.Clock, loc *time.Location, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{reports: rs, resolver: res, clock: c, loc: loc, logger: logger}
}

func (h *ReportHandler) dayParam(r *http.Request) (model.Date, error) {
	d, err := queryDate(r, "date")
	if err != nil {
		return model.Date{}, err
	}
	if d == nil {
		return clock.Today(h.clock, h.loc), nil
	}
	return *d, nil
}

// History handles GET /api/history?member_id=&from=&to=.
func (h *ReportHandler) History(w http.ResponseWriter, r *http.Request) {
	var (
		f   report.HistoryFilter
		err error
	)
	if f.MemberID, err = queryID(r, "member_id"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid member_id")
		return
	}
	if f.From, err = queryDate(r, "from"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	if f.To, err = queryDate(r, "to"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}

	entries, err := h.reports.History(r.Context(), f)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to load history")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Summaries handles GET /api/summaries?date=.
func (h *ReportHandler) Summaries(w http.ResponseWriter, r *http.Request) {
	day, err := h.dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	summaries, err := h.reports.DailySummaries(r.Context(), day)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to load summaries")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// Leaderboard handles GET /api/leaderboard.
func (h *ReportHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reports.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// Pending handles GET /api/pending?date=, keyed by member id.
func (h *ReportHandler) Pending(w http.ResponseWriter, r *http.Request) {
	day, err := h.dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	pending, err := h.resolver.Pending(r.Context(), day)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to resolve pending tasks")
		return
	}
	writeJSON(w, http.StatusOK, pending)
}

// Upcoming handles GET /api/upcoming. The window is ?from=&to= as RFC 3339
// instants, or the next ?hours= (default 24) from now.
func (h *ReportHandler) Upcoming(w http.ResponseWriter, r *http.Request) {
	win, err := h.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	upcoming, err := h.resolver.Upcoming(r.Context(), win)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to resolve upcoming tasks")
		return
	}
	writeJSON(w, http.StatusOK, upcoming)
}

func (h *ReportHandler) window(r *http.Request) (assignment.Window, error) {
	q := r.URL.Query()
	if q.Get("from") != "" || q.Get("to") != "" {
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			return assignment.Window{}, errors.New("from must be an RFC 3339 time")
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			return assignment.Window{}, errors.New("to must be an RFC 3339 time")
		}
		if !from.Before(to) {
			return assignment.Window{}, errors.New("from must be before to")
		}
		return assignment.Window{Start: from, End: to}, nil
	}

	hours := defaultUpcomingHours
	if raw := q.Get("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 24*maxCalendarDays {
			return assignment.Window{}, errors.New("invalid hours")
		}
		hours = n
	}
	now := h.clock.Now()
	return assignment.Window{Start: now, End: now.Add(time.Duration(hours) * time.Hour)}, nil
}

// MemberTasks handles GET /api/members/{id}/tasks?date=&view=. The default
// view lists the member's visible, unfinished tasks for one day; view=assigned
// lists the executions the member is taking part in.
func (h *ReportHandler) MemberTasks(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	day, err := h.dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	var byMember assignment.Assignments
	switch view := r.URL.Query().Get("view"); view {
	case "", "visible":
		byMember, err = h.resolver.Pending(r.Context(), day)
	case "assigned":
		byMember, err = h.resolver.Responsible(r.Context(), day)
	default:
		writeError(w, http.StatusBadRequest, "view must be visible or assigned")
		return
	}
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to resolve member tasks")
		return
	}
	items, ok := byMember[id]
	if !ok {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Calendar handles GET /api/members/{id}/calendar.ics?days=.
func (h *ReportHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	days := defaultCalendarDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxCalendarDays {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}

	feed, err := h.reports.MemberCalendar(r.Context(), id, h.clock.Now(), days)
	if err != nil {
		writeDomainError(w, h.logger, err, "failed to build calendar")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="chores.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(feed))
}
