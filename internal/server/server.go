package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lifesync/lifesync/internal/automation"
	"github.com/lifesync/lifesync/internal/config"
	"github.com/lifesync/lifesync/internal/gamification"
	"github.com/lifesync/lifesync/internal/handler"
	"github.com/lifesync/lifesync/internal/kv"
	"github.com/lifesync/lifesync/internal/metrics"
	"github.com/lifesync/lifesync/internal/middleware"
	"github.com/lifesync/lifesync/internal/notification"
	"github.com/lifesync/lifesync/internal/push"
	"github.com/lifesync/lifesync/internal/store"
	"github.com/lifesync/lifesync/internal/webhook"
	ws "github.com/lifesync/lifesync/internal/websocket"
)

// expirer is implemented by KV backends that need expired rows purged.
type expirer interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

type Server struct {
	cfg           config.Config
	db            *sql.DB
	kv            kv.Store
	hub           *ws.Hub
	metrics       *metrics.Metrics
	goalH         *handler.GoalHandler
	profileH      *handler.ProfileHandler
	deviceH       *handler.DeviceHandler
	automationH   *handler.AutomationHandler
	notificationH *handler.NotificationHandler
	pushH         *handler.PushHandler
	apiKeyStore   *store.APIKeyStore
	scheduler     *automation.Scheduler
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger

	mu          sync.Mutex
	maintenance *cron.Cron
}

func New(cfg config.Config, db *sql.DB, kvStore kv.Store, logger *slog.Logger) *Server {
	m := metrics.New()
	hub := ws.NewHub(m, logger.With("component", "websocket"))

	goalStore := store.NewGoalStore(db)
	profileStore := store.NewProfileStore(db)
	deviceStore := store.NewDeviceStore(db)
	pushSt := store.NewPushStore(db)
	ruleStore := automation.NewRuleStore(kvStore)

	// Push notification service, only with VAPID keys.
	var pushSvc *push.Service
	var pusher notification.Pusher
	var pushH *handler.PushHandler
	if cfg.PushEnabled() {
		pushLogger := logger.With("component", "push")
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, pushSt, pushLogger)
		pusher = pushSvc
		pushH = handler.NewPushHandler(pushSt, pushSvc, logger.With("component", "push_handler"))
	}

	notifSvc := notification.NewService(kvStore, hub, pusher, m, logger)

	gameCfg := gamification.DefaultConfig()
	gameCfg.Location = cfg.Location
	engine := gamification.NewEngine(gameCfg, profileStore, goalStore, kvStore, notifSvc, m, logger)

	webhookClient := webhook.NewClient(cfg.WebhookTimeout, m, logger)
	evaluator := automation.NewEvaluator(ruleStore, deviceStore, webhookClient, notifSvc, cfg.AutomationConcurrency, cfg.Location, m, logger)

	var scheduler *automation.Scheduler
	if cfg.AutomationScheduler {
		scheduler = automation.NewScheduler(ruleStore, evaluator, logger)
	}

	return &Server{
		cfg:           cfg,
		db:            db,
		kv:            kvStore,
		hub:           hub,
		metrics:       m,
		goalH:         handler.NewGoalHandler(goalStore, engine, logger.With("component", "goal")),
		profileH:      handler.NewProfileHandler(profileStore, engine, logger.With("component", "profile")),
		deviceH:       handler.NewDeviceHandler(deviceStore, webhookClient, evaluator, logger.With("component", "device")),
		automationH:   handler.NewAutomationHandler(ruleStore, logger.With("component", "automation_handler")),
		notificationH: handler.NewNotificationHandler(notifSvc, logger.With("component", "notification_handler")),
		pushH:         pushH,
		apiKeyStore:   store.NewAPIKeyStore(db),
		scheduler:     scheduler,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
	}
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Start launches background maintenance and, when enabled, the automation
// scheduler.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maintenance != nil {
		return nil
	}

	interval := s.cfg.KVSweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	c := cron.New()
	if _, err := c.AddFunc("@every "+interval.String(), func() { s.sweep(ctx) }); err != nil {
		return err
	}
	if s.scheduler != nil {
		if err := s.scheduler.Start(ctx); err != nil {
			return err
		}
	}
	c.Start()
	s.maintenance = c
	return nil
}

// Stop halts background work and waits for running jobs.
func (s *Server) Stop() {
	s.mu.Lock()
	c := s.maintenance
	s.maintenance = nil
	s.mu.Unlock()

	if s.scheduler != nil {
		s.scheduler.Stop()
	}
	if c != nil {
		<-c.Stop().Done()
	}
}

func (s *Server) sweep(ctx context.Context) {
	s.rateLimiter.Cleanup()
	e, ok := s.kv.(expirer)
	if !ok {
		return
	}
	n, err := e.DeleteExpired(ctx)
	if err != nil {
		s.logger.Error("purge expired kv entries", "error", err)
		return
	}
	if n > 0 {
		s.logger.Debug("purged expired kv entries", "count", n)
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes: API key auth, then per-user rate limiting.
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAPIKey(s.apiKeyStore, s.logger.With("component", "auth"))
	rateLimit := middleware.RateLimit(s.rateLimiter, middleware.UserOrIP, s.cfg.RateLimit, time.Minute)
	outerMux.Handle("/api/v1/", authMiddleware(rateLimit(protectedMux)))

	// Apply request logging middleware
	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Goal and reward routes
	mux.HandleFunc("POST /api/v1/goals", s.goalH.Create)
	mux.HandleFunc("GET /api/v1/goals", s.goalH.List)
	mux.HandleFunc("POST /api/v1/goals/{id}/progress", s.goalH.LogProgress)
	mux.HandleFunc("GET /api/v1/profile", s.profileH.Get)
	mux.HandleFunc("GET /api/v1/badges", s.profileH.Badges)

	// Smart home routes
	mux.HandleFunc("POST /api/v1/smart-home/devices", s.deviceH.Register)
	mux.HandleFunc("GET /api/v1/smart-home/devices", s.deviceH.List)
	mux.HandleFunc("POST /api/v1/smart-home/devices/{id}/command", s.deviceH.Command)
	mux.HandleFunc("POST /api/v1/smart-home/devices/{id}/state", s.deviceH.State)
	mux.HandleFunc("GET /api/v1/smart-home/devices/ws", ws.HandleWebSocket(s.hub, s.deviceH.SocketState))
	mux.HandleFunc("POST /api/v1/smart-home/automation/rules", s.automationH.CreateRule)
	mux.HandleFunc("GET /api/v1/smart-home/automation/rules", s.automationH.ListRules)
	mux.HandleFunc("DELETE /api/v1/smart-home/automation/rules/{rule_id}", s.automationH.DeleteRule)

	// Notification routes
	mux.HandleFunc("GET /api/v1/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/v1/notifications/read", s.notificationH.MarkRead)

	// Push notification API routes
	if s.pushH != nil {
		mux.HandleFunc("POST /api/v1/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/v1/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/v1/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/v1/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("POST /api/v1/push/test", s.pushH.TestNotification)
	}
}
