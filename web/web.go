// Package web assembles the dashboard server: HTTP API, websocket hub,
// MQTT ingest and the scheduled jobs, including user-database replication.
package web

import (
	"context"
	"embed"
	"io"
	"net"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/vitalink-io/vitalink/caching"
	"github.com/vitalink-io/vitalink/config"
	"github.com/vitalink-io/vitalink/database"
	"github.com/vitalink-io/vitalink/database/model"
	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/mqtt"
	"github.com/vitalink-io/vitalink/util/common"
	"github.com/vitalink-io/vitalink/web/controller"
	"github.com/vitalink-io/vitalink/web/job"
	"github.com/vitalink-io/vitalink/web/locale"
	"github.com/vitalink-io/vitalink/web/middleware"
	"github.com/vitalink-io/vitalink/web/service"
)

//go:embed translation/*
var i18nFS embed.FS

// Server is the dashboard process: one instance per node, local and
// cloud run the same assembly and differ only by environment.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	cache *caching.Cache
	hub   *service.WebSocketService

	userService      *service.UserService
	userAdminService *service.UserAdminService
	syncService      *service.SyncService
	telemetryService *service.TelemetryService
	anomalyService   *service.AnomalyService
	notifyService    *service.NotifyService
	statusService    *service.StatusService

	syncConfig *dbsync.Config
	mqttClient *mqtt.Client

	cron *cron.Cron

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a new web server instance with a cancellable context.
func NewServer() *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{ctx: ctx, cancel: cancel}
}

// initServices builds the service graph on the already-initialized
// database.
func (s *Server) initServices() {
	db := database.GetDB()

	s.cache = caching.NewCache()
	if err := s.cache.Init(); err != nil {
		logger.Warning("session cache init failed:", err)
	}

	s.hub = service.NewWebSocketService()

	s.userService = service.NewUserService(db, s.cache)
	s.userAdminService = service.NewUserAdminService(db, s.cache)
	s.syncService = service.NewSyncService(db)
	s.notifyService = service.NewNotifyService(config.GetTgBotToken(), config.GetTgBotChatId())
	s.telemetryService = service.NewTelemetryService(s.hub)
	s.anomalyService = service.NewAnomalyService(s.hub, s.notifyService)
	s.statusService = service.NewStatusService(s.telemetryService, s.hub)
}

// initRouter initializes Gin, registers middleware and controllers and
// returns the configured engine.
func (s *Server) initRouter(syncAuth dbsync.Authenticator) (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.DefaultErrorWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	// gzip, excluding the replication path: snapshots are exchanged
	// node-to-node where the negotiation overhead buys nothing.
	engine.Use(gzip.Gzip(
		gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{dbsync.SyncPath}),
	))
	engine.Use(locale.LocalizerMiddleware())

	sessionAuth := middleware.SessionAuth(s.userService)
	adminOnly := middleware.RoleRequired(model.RoleAdmin)

	// Authentication: login and register are public, the rest needs a
	// session.
	authPublic := engine.Group("/api/auth")
	authProtected := engine.Group("/api/auth")
	authProtected.Use(sessionAuth)
	controller.NewAuthController(authPublic, authProtected, s.userService)

	// Account administration.
	users := engine.Group("/api/users")
	users.Use(sessionAuth, adminOnly)
	controller.NewUserAdminController(users, s.userAdminService)

	// Status, logs and chart snapshots for any authenticated account.
	api := engine.Group("/api")
	api.Use(sessionAuth)
	controller.NewStatusController(api, s.statusService, s.telemetryService)

	// The replication endpoint authenticates with the sync token, never
	// with a login session. The authenticator fails closed while sync is
	// unconfigured.
	syncGroup := engine.Group(dbsync.SyncPath)
	syncGroup.Use(middleware.SyncTokenAuth(syncAuth))
	controller.NewSyncController(syncGroup, s.syncService)

	// Websocket event stream.
	controller.NewWebSocketController(engine.Group("/"), s.hub)

	engine.NoRoute(func(c *gin.Context) {
		c.AbortWithStatus(http.StatusNotFound)
	})

	return engine, nil
}

// startTask schedules the background jobs.
func (s *Server) startTask() {
	s.cron.AddJob("@every 2s", job.NewStatusBroadcastJob(s.statusService, s.hub))
	s.cron.AddJob("@every 5m", job.NewSessionCleanupJob(s.userService))

	if s.syncConfig == nil {
		logger.Info("user db sync job not scheduled")
		return
	}

	// Every node runs its own cycle against the peer; the endpoint side
	// of the same contract is served by the router regardless.
	client := dbsync.NewClient(*s.syncConfig, dbsync.NewAuthenticator(*s.syncConfig), s.syncService)
	syncJob := cron.NewChain(
		cron.Recover(cron.DiscardLogger),
		cron.DelayIfStillRunning(cron.DiscardLogger),
	).Then(job.NewDbSyncJob(s.ctx, client, s.hub))

	spec := "@every " + s.syncConfig.IntervalDuration().String()
	if _, err := s.cron.AddJob(spec, syncJob); err != nil {
		logger.Error("schedule user db sync failed:", err)
		return
	}
	s.statusService.SetSyncActive(true)
	logger.Infof("user db sync (%s node) scheduled %s against %s", s.syncConfig.Role, spec, s.syncConfig.PeerURL)
}

// Start initializes and starts the web server.
func (s *Server) Start() (err error) {
	defer func() {
		if err != nil {
			_ = s.Stop()
		}
	}()

	if err = locale.InitLocalizer(i18nFS, config.GetTgLang()); err != nil {
		return err
	}

	s.initServices()
	go s.hub.Run()

	// Stream every buffered log entry to dashboard clients.
	logger.SetHook(s.hub.SendSystemLog)

	// A broken sync block keeps the node serving its dashboard; only the
	// replication job stays off.
	syncCfg, cfgErr := dbsync.LoadConfig()
	if cfgErr != nil {
		logger.Warning("user db sync disabled:", cfgErr)
	} else {
		s.syncConfig = &syncCfg
	}

	engine, err := s.initRouter(dbsync.NewAuthenticator(syncCfg))
	if err != nil {
		return err
	}

	s.cron = cron.New(cron.WithSeconds())
	s.cron.Start()

	listener, err := net.Listen("tcp", config.GetListenAddr())
	if err != nil {
		return err
	}
	logger.Info("Web server running HTTP on", listener.Addr())

	s.listener = listener
	s.httpServer = &http.Server{Handler: engine}

	go func() {
		_ = s.httpServer.Serve(listener)
	}()

	s.startTask()

	s.mqttClient = mqtt.NewClient(s.ctx, config.GetMqttBroker(), config.GetMqttClientId(), s.telemetryService, s.anomalyService)
	if err := s.mqttClient.Start(); err != nil {
		logger.Warning("MQTT client start failed:", err)
	}

	return nil
}

// Stop gracefully shuts down the web server, jobs, MQTT client and hub.
func (s *Server) Stop() error {
	s.cancel()
	logger.SetHook(nil)
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.mqttClient != nil {
		s.mqttClient.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.cache != nil {
		if err := s.cache.Flush(); err != nil {
			logger.Warning("flush session cache:", err)
		}
	}
	var err1, err2 error
	if s.httpServer != nil {
		err1 = s.httpServer.Shutdown(s.ctx)
	}
	if s.listener != nil {
		err2 = s.listener.Close()
	}
	return common.Combine(err1, err2)
}

// GetCtx returns the server's context.
func (s *Server) GetCtx() context.Context { return s.ctx }

// GetCron returns the server's cron scheduler instance.
func (s *Server) GetCron() *cron.Cron { return s.cron }
