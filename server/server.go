package server

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/customeros/inboxsync/api"
	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/internal/cron"
	"github.com/customeros/inboxsync/internal/listeners"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/services"
	"github.com/customeros/inboxsync/services/events"
)

type Server struct {
	config       *config.Config
	log          logger.Logger
	httpServer   *http.Server
	router       *gin.Engine
	services     *services.Services
	repositories *repository.Repositories
	cronManager  *cron.CronManager
	tracerCloser io.Closer
}

func NewServer(ctx context.Context, cfg *config.Config, log logger.Logger, db *gorm.DB) (*Server, error) {
	tracer, closer, err := tracing.NewJaegerTracer(cfg.Tracing, log)
	if err != nil {
		log.Fatalf("Could not initialize jaeger tracer: %s", err.Error())
	}
	opentracing.SetGlobalTracer(tracer)

	repos := repository.InitRepositories(db)

	svcs, err := services.InitServices(ctx, cfg, log, repos)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	return &Server{
		config:       cfg,
		log:          log,
		router:       router,
		services:     svcs,
		repositories: repos,
		cronManager:  cron.NewCronManager(cfg, log, kubernetesClient(log), repos, svcs.SyncService),
		tracerCloser: closer,
		httpServer: &http.Server{
			Addr:    ":" + cfg.AppConfig.APIPort,
			Handler: router,
		},
	}, nil
}

// kubernetesClient returns nil outside a cluster; the cron manager then runs without leader election.
func kubernetesClient(log logger.Logger) kubernetes.Interface {
	restConfig, err := rest.InClusterConfig()
	if err != nil {
		log.Infof("Not running in a kubernetes cluster: %v", err)
		return nil
	}
	client, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		log.Warnf("Could not create kubernetes client: %v", err)
		return nil
	}
	return client
}

func (s *Server) Initialize() error {
	subscriber := s.services.EventsService.Subscriber
	subscriber.RegisterListener(listeners.NewBackfillListener(s.log, s.services.SyncService))
	subscriber.RegisterListener(listeners.NewIncrementalSyncListener(s.log, s.services.SyncService))

	api.RegisterRoutes(s.router, s.repositories.MailAccountRepository, s.services.EventsService.Publisher, s.config.AppConfig.APIKey)

	return nil
}

func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := s.Initialize(); err != nil {
		return err
	}

	if err := s.services.EventsService.Subscriber.ListenQueue(events.QueueSyncJobs); err != nil {
		return err
	}

	if s.services.GmailPushListener != nil {
		go func() {
			defer tracing.RecoverAndLogToJaeger(s.log)
			if err := s.services.GmailPushListener.Start(ctx); err != nil {
				s.log.Errorf("Gmail push listener stopped: %v", err)
			}
		}()
	}

	if err := s.cronManager.Start(s.config.AppConfig.PodName, s.config.AppConfig.Namespace); err != nil {
		return err
	}

	go func() {
		defer tracing.RecoverAndLogToJaeger(s.log)
		s.log.Infof("Starting HTTP server on port %s", s.config.AppConfig.APIPort)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()
	s.log.Info("inboxsync is now running")

	return s.waitForShutdown(cancel)
}

func (s *Server) waitForShutdown(cancel context.CancelFunc) error {
	defer tracing.RecoverAndLogToJaeger(s.log)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	s.log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("HTTP server shutdown error: %v", err)
	}

	// stops the push listener
	cancel()
	s.cronManager.Stop()

	if err := s.services.Close(); err != nil {
		s.log.Errorf("Closing services failed: %v", err)
	}
	if s.tracerCloser != nil {
		_ = s.tracerCloser.Close()
	}

	s.log.Info("Shutdown complete")
	return nil
}
