package cron

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/customeros/inboxsync/config"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	cron_config "github.com/customeros/inboxsync/internal/cron/config"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/repository"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"

	"github.com/pkg/errors"
)

// CONSTANTS
const (
	// GroupSync is the group for mailbox sync jobs
	GroupSync = "sync"
	// GroupMaintenance is the group for cleanup jobs
	GroupMaintenance = "maintenance"

	// LeaseDuration is how long a lease lasts before needing renewal
	LeaseDuration = 15 * time.Second
	// RenewDeadline is how long a leader has to renew its lease
	RenewDeadline = 10 * time.Second
	// RetryPeriod is how long to wait between leadership attempts
	RetryPeriod = 2 * time.Second

	appSource = "cron"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupSync:        new(sync.Mutex),
		GroupMaintenance: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg          *config.Config
	log          logger.Logger
	cron         *cronv3.Cron
	k8s          kubernetes.Interface
	stopCh       chan struct{}
	stopOnce     sync.Once
	jobIDs       map[string]cronv3.EntryID
	repositories *repository.Repositories
	sync         interfaces.SyncService
}

func NewCronManager(cfg *config.Config, log logger.Logger, k8s kubernetes.Interface, repositories *repository.Repositories, syncService interfaces.SyncService) *CronManager {
	return &CronManager{
		cfg:          cfg,
		log:          log,
		k8s:          k8s,
		stopCh:       make(chan struct{}),
		jobIDs:       make(map[string]cronv3.EntryID),
		repositories: repositories,
		sync:         syncService,
	}
}

// Start initializes and starts the cron manager with leader election
// If k8s is nil, it will start in local mode without leader election
func (cm *CronManager) Start(podName, namespace string) error {
	if cm.k8s == nil || os.Getenv("LOCAL_DEV") == "true" {
		cm.log.Info("Starting cron manager in local mode")
		cm.StartCron()
		return nil
	}

	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      "inboxsync-cron-leader",
			Namespace: namespace,
		},
		Client: cm.k8s.CoordinationV1(),
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: podName,
		},
	}

	errCh := make(chan error, 1)

	go func() {
		le, err := leaderelection.NewLeaderElector(leaderelection.LeaderElectionConfig{
			Lock:            lock,
			ReleaseOnCancel: true,
			LeaseDuration:   LeaseDuration,
			RenewDeadline:   RenewDeadline,
			RetryPeriod:     RetryPeriod,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					cm.StartCron()
				},
				OnStoppedLeading: func() {
					cm.log.Info("Leader lost - stopping crons")
					cm.Stop()
				},
				OnNewLeader: func(identity string) {
					cm.log.Infof("New leader elected: %s", identity)
				},
			},
		})
		if err != nil {
			errCh <- err
			return
		}

		le.Run(context.Background())
	}()

	// Wait briefly to see if leader election fails immediately
	select {
	case err := <-errCh:
		cm.log.Warnf("Leader election failed, falling back to local mode: %v", err)
		cm.StartCron()
	case <-time.After(5 * time.Second):
	}

	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	cm.stopOnce.Do(func() {
		if cm.cron != nil {
			cm.log.Info("Stopping cron manager")
			ctx := cm.cron.Stop()
			// Wait for jobs to finish
			<-ctx.Done()
		}
		close(cm.stopCh)
	})
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron, cronConfig cron_config.Config) error {
	if cronConfig.CronScheduleHeartbeat != "" {
		podName := cm.cfg.AppConfig.PodName
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Infof("Cron heartbeat from pod: %s", podName)
		})
		if err != nil {
			return errors.Wrap(err, "could not add heartbeat cron job")
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	if cronConfig.CronScheduleIncrementalSync != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleIncrementalSync, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupSync].Lock()
			defer jobLocks.locks[GroupSync].Unlock()
			cm.syncActiveMailAccounts()
		})
		if err != nil {
			return errors.Wrap(err, "could not add incremental sync cron job")
		}
		cm.jobIDs["incremental_sync"] = id
		cm.log.Infof("Registered incremental sync job with schedule: %s", cronConfig.CronScheduleIncrementalSync)
	}

	if cronConfig.CronScheduleDanglingReferenceCleanup != "" {
		retention := time.Duration(cronConfig.DanglingReferenceRetentionDays) * 24 * time.Hour
		id, err := c.AddFunc(cronConfig.CronScheduleDanglingReferenceCleanup, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupMaintenance].Lock()
			defer jobLocks.locks[GroupMaintenance].Unlock()
			cm.cleanupDanglingReferences(retention)
		})
		if err != nil {
			return errors.Wrap(err, "could not add dangling reference cleanup cron job")
		}
		cm.jobIDs["dangling_reference_cleanup"] = id
		cm.log.Infof("Registered dangling reference cleanup job with schedule: %s", cronConfig.CronScheduleDanglingReferenceCleanup)
	}

	return nil
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")

	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// seconds field enabled, overlapping runs skipped
	c := cronv3.New(
		cronv3.WithSeconds(),
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)
	if err := cm.registerJobs(c, cronConfig); err != nil {
		cm.log.Fatalf("Failed to register cron jobs: %v", err)
	}
	c.Start()
	cm.cron = c
}

// syncActiveMailAccounts runs one incremental pass per active account. A failing
// account is logged and does not stop the others.
func (cm *CronManager) syncActiveMailAccounts() {
	ctx := utils.SetAppSourceInContext(context.Background(), appSource)
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.syncActiveMailAccounts")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	accounts, err := cm.repositories.MailAccountRepository.ListActive(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to list active mail accounts: %v", err)
		return
	}
	span.SetTag("accounts.count", len(accounts))

	for _, account := range accounts {
		select {
		case <-cm.stopCh:
			cm.log.Info("Cron manager stopping, remaining mail accounts skipped")
			return
		default:
		}

		result, err := cm.sync.RunIncrementalSync(utils.SetMailAccountIdInContext(ctx, account.ID), account.ID)
		switch {
		case errors.Is(err, inboxsync_errors.ErrIncompleteSync):
			cm.log.Warnf("Incremental sync of mail account %s incomplete: %v", account.ID, err)
		case err != nil:
			tracing.TraceErr(span, err)
			cm.log.Errorf("Incremental sync of mail account %s failed: %v", account.ID, err)
		default:
			cm.log.Infof("Incremental sync of mail account %s imported %d threads", account.ID, result.Imported)
		}
	}
}

func (cm *CronManager) cleanupDanglingReferences(retention time.Duration) {
	ctx := utils.SetAppSourceInContext(context.Background(), appSource)
	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.cleanupDanglingReferences")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	deleted, err := cm.repositories.DanglingReferenceRepository.DeleteOlderThan(ctx, utils.Now().Add(-retention))
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Failed to clean up dangling references: %v", err)
		return
	}
	cm.log.Infof("Removed %d dangling references older than %v", deleted, retention)
}
