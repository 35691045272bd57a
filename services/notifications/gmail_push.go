package notifications

import (
	"context"
	"encoding/json"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"
	"google.golang.org/api/option"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
)

const (
	appSource              = "gmail-push"
	maxOutstandingMessages = 10
)

type accountLookup interface {
	GetByEmailAddress(ctx context.Context, emailAddress string) (*models.MailAccount, error)
}

// GmailPushListener turns Gmail watch notifications into incremental syncs.
type GmailPushListener struct {
	client         *pubsub.Client
	subscriptionID string
	accounts       accountLookup
	sync           interfaces.SyncService
	log            logger.Logger

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

// NewGmailPushListener returns nil when push notifications are disabled.
func NewGmailPushListener(ctx context.Context, cfg *config.PubSubConfig, accounts accountLookup, syncService interfaces.SyncService, log logger.Logger) (*GmailPushListener, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create pubsub client")
	}

	listener := newGmailPushListener(accounts, syncService, log)
	listener.client = client
	listener.subscriptionID = cfg.SubscriptionID
	return listener, nil
}

func newGmailPushListener(accounts accountLookup, syncService interfaces.SyncService, log logger.Logger) *GmailPushListener {
	return &GmailPushListener{
		accounts:      accounts,
		sync:          syncService,
		log:           log,
		lastHistoryID: make(map[string]uint64),
	}
}

// Start blocks receiving notifications until ctx is cancelled.
func (l *GmailPushListener) Start(ctx context.Context) error {
	sub := l.client.Subscription(l.subscriptionID)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return errors.Wrapf(err, "check subscription %s", l.subscriptionID)
	}
	if !exists {
		return errors.Errorf("pubsub subscription %s does not exist", l.subscriptionID)
	}
	sub.ReceiveSettings.MaxOutstandingMessages = maxOutstandingMessages

	l.log.Infof("Listening for Gmail push notifications on subscription %s", l.subscriptionID)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		defer tracing.RecoverAndLogToJaeger(l.log)

		if err := l.HandleNotification(ctx, msg.Data); err != nil {
			l.log.Errorf("Failed to handle Gmail push notification %s: %v", msg.ID, err)
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "receive gmail push notifications")
	}
	return nil
}

// HandleNotification runs an incremental sync for the mailbox named in data.
// Notifications for unknown or inactive mailboxes, and notifications older than
// one already handled, are acknowledged without syncing. The returned error
// asks for redelivery.
func (l *GmailPushListener) HandleNotification(ctx context.Context, data []byte) error {
	span, ctx := tracing.StartTracerSpan(utils.SetAppSourceInContext(ctx, appSource), "GmailPushListener.HandleNotification")
	defer span.Finish()
	tracing.SetDefaultListenerSpanTags(ctx, span)

	var notification dto.GmailPushNotification
	if err := json.Unmarshal(data, &notification); err != nil {
		// redelivery cannot fix a malformed payload
		tracing.TraceErr(span, err)
		l.log.Warnf("Dropping malformed Gmail push notification: %v", err)
		return nil
	}
	tracing.LogObjectAsJson(span, "notification", notification)

	account, err := l.accounts.GetByEmailAddress(ctx, notification.EmailAddress)
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	if account == nil || !account.Active {
		l.log.Infof("Ignoring Gmail push notification for unmanaged mailbox %s", notification.EmailAddress)
		return nil
	}
	tracing.TagAccount(span, account.ID)

	if !l.markHistoryID(account.ID, notification.HistoryID) {
		span.LogKV("skipped", "stale history id")
		return nil
	}

	_, err = l.sync.RunIncrementalSync(utils.SetMailAccountIdInContext(ctx, account.ID), account.ID)
	if err != nil {
		tracing.TraceErr(span, err)
		l.forgetHistoryID(account.ID, notification.HistoryID)
		if errors.Is(err, inboxsync_errors.ErrIncompleteSync) {
			l.log.Warnf("Incremental sync of mail account %s incomplete, notification will be redelivered: %v", account.ID, err)
		}
		return err
	}
	return nil
}

// markHistoryID reports whether historyID is newer than the last one handled for the account.
func (l *GmailPushListener) markHistoryID(accountID string, historyID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if last, ok := l.lastHistoryID[accountID]; ok && historyID <= last {
		return false
	}
	l.lastHistoryID[accountID] = historyID
	return true
}

func (l *GmailPushListener) forgetHistoryID(accountID string, historyID uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lastHistoryID[accountID] == historyID {
		delete(l.lastHistoryID, accountID)
	}
}

func (l *GmailPushListener) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
