package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/dukerupert/chorely/internal/assignment"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/clock"
	"github.com/dukerupert/chorely/internal/handler"
	"github.com/dukerupert/chorely/internal/middleware"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/report"
	"github.com/dukerupert/chorely/internal/scheduler"
	"github.com/dukerupert/chorely/internal/store"
	ws "github.com/dukerupert/chorely/internal/websocket"
)

const (
	generateRateLimit  = 6
	generateRatePeriod = time.Minute
	limiterCleanup     = 10 * time.Minute
)

// Options configures the background jobs and the household timezone.
type Options struct {
	Clock         clock.Clock
	Location      *time.Location
	Schedule      scheduler.Config
	Push          push.Config
	Notify        push.NotifierConfig
	NotifyEnabled bool
}

type Server struct {
	db          *sql.DB
	hub         *ws.Hub
	members     *store.MemberStore
	executionH  *handler.ExecutionHandler
	definitionH *handler.DefinitionHandler
	memberH     *handler.MemberHandler
	reportH     *handler.ReportHandler
	pushH       *handler.PushHandler
	rateLimiter *middleware.RateLimiter
	scheduler   *scheduler.Scheduler
	notifier    *push.Notifier
	logger      *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	opts.Schedule.Location = opts.Location
	opts.Notify.Location = opts.Location

	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	taskStore := store.NewTaskStore(db)
	executionStore := store.NewExecutionStore(db)
	pushStore := store.NewPushStore(db)

	machine := chore.NewMachine(executionStore, memberStore, opts.Clock)
	generator := chore.NewGenerator(taskStore, executionStore)
	resolver := assignment.NewResolver(taskStore, executionStore, memberStore, opts.Location)
	resolverLog := logger.With("component", "resolver")
	resolver.OnInvalid = func(def model.TaskDefinition, err error) {
		resolverLog.Warn("skipping definition with invalid schedule", "definition_id", def.ID, "error", err)
	}
	reports := report.NewService(executionStore, memberStore, resolver, opts.Location)

	sched := scheduler.New(generator, opts.Clock, opts.Schedule, logger.With("component", "scheduler"))
	sched.OnGenerated = func(res *chore.GenerateResult) {
		hub.Broadcast(ws.NewMessage("execution", "generated", 0, map[string]any{
			"date":  res.TargetDate,
			"count": res.GeneratedCount,
		}))
	}

	var (
		pushH    *handler.PushHandler
		notifier *push.Notifier
	)
	if opts.Push.Enabled() {
		pushSvc := push.NewService(opts.Push)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
		if opts.NotifyEnabled {
			notifier = push.NewNotifier(pushSvc, pushStore, resolver, opts.Clock, opts.Notify, logger.With("component", "push"))
		}
	}

	return &Server{
		db:          db,
		hub:         hub,
		members:     memberStore,
		executionH:  handler.NewExecutionHandler(machine, generator, executionStore, taskStore, hub, opts.Clock, opts.Location, logger.With("component", "execution")),
		definitionH: handler.NewDefinitionHandler(taskStore, memberStore, hub, opts.Clock, opts.Location, logger.With("component", "definition")),
		memberH:     handler.NewMemberHandler(memberStore, hub, logger.With("component", "member")),
		reportH:     handler.NewReportHandler(reports, resolver, opts.Clock, opts.Location, logger.With("component", "report")),
		pushH:       pushH,
		rateLimiter: middleware.NewRateLimiter(opts.Clock, generateRateLimit, generateRatePeriod),
		scheduler:   sched,
		notifier:    notifier,
		logger:      logger,
	}
}

// Start launches the generation schedule, the notifier and housekeeping.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}
	if s.notifier != nil {
		s.notifier.Start(ctx)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.housekeeping(ctx)
	return nil
}

// Stop halts everything Start launched and waits for it to finish.
func (s *Server) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	<-done
	if s.notifier != nil {
		s.notifier.Stop()
	}
	s.scheduler.Stop()
}

func (s *Server) housekeeping(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(limiterCleanup)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.Cleanup()
		}
	}
}

// Hub exposes the websocket hub for callers that publish their own events.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Executions
	mux.Handle("POST /api/executions/generate", middleware.RateLimit(s.rateLimiter)(http.HandlerFunc(s.executionH.Generate)))
	mux.HandleFunc("GET /api/executions", s.executionH.List)
	mux.HandleFunc("GET /api/executions/{id}", s.executionH.Get)
	mux.HandleFunc("POST /api/executions/{id}/start", s.executionH.Start)
	mux.HandleFunc("POST /api/executions/{id}/assign", s.executionH.Assign)
	mux.HandleFunc("POST /api/executions/{id}/complete", s.executionH.Complete)
	mux.HandleFunc("POST /api/executions/{id}/cancel", s.executionH.Cancel)

	// Definitions
	mux.HandleFunc("GET /api/definitions", s.definitionH.List)
	mux.HandleFunc("POST /api/definitions", s.definitionH.Create)
	mux.HandleFunc("GET /api/definitions/{id}", s.definitionH.Get)
	mux.HandleFunc("PUT /api/definitions/{id}", s.definitionH.Update)
	mux.HandleFunc("DELETE /api/definitions/{id}", s.definitionH.Delete)

	// Members
	mux.HandleFunc("GET /api/members", s.memberH.List)
	mux.HandleFunc("POST /api/members", s.memberH.Create)
	mux.HandleFunc("PUT /api/members/sort", s.memberH.UpdateSortOrder)
	mux.HandleFunc("PUT /api/members/{id}", s.memberH.Update)
	mux.HandleFunc("DELETE /api/members/{id}", s.memberH.Delete)
	mux.HandleFunc("GET /api/members/{id}/tasks", s.reportH.MemberTasks)
	mux.HandleFunc("GET /api/members/{id}/calendar.ics", s.reportH.Calendar)

	// Reporting
	mux.HandleFunc("GET /api/pending", s.reportH.Pending)
	mux.HandleFunc("GET /api/upcoming", s.reportH.Upcoming)
	mux.HandleFunc("GET /api/history", s.reportH.History)
	mux.HandleFunc("GET /api/summaries", s.reportH.Summaries)
	mux.HandleFunc("GET /api/leaderboard", s.reportH.Leaderboard)

	// Push notifications act for the member named by the request.
	if s.pushH != nil {
		member := func(h http.HandlerFunc) http.Handler { return middleware.RequireMember(h) }
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.Handle("POST /api/push/subscribe", member(s.pushH.Subscribe))
		mux.Handle("GET /api/push/subscriptions", member(s.pushH.ListSubscriptions))
		mux.Handle("DELETE /api/push/subscriptions/{id}", member(s.pushH.Unsubscribe))
		mux.Handle("GET /api/push/preferences", member(s.pushH.GetPreferences))
		mux.Handle("PUT /api/push/preferences", member(s.pushH.UpdatePreferences))
		mux.Handle("POST /api/push/test", member(s.pushH.TestNotification))
	}

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.members, s.logger.With("component", "websocket")))

	h := middleware.IdentifyMember(s.members)(mux)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		status = "database unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
