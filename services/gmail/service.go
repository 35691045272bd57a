package gmail

import (
	"context"
	"net/http"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/customeros/inboxsync/config"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
	"github.com/customeros/inboxsync/internal/tracing"
)

const userMe = "me"

// Service creates per-account Gmail clients. All clients share one circuit breaker
// so a provider outage fails every account fast instead of piling up requests.
type Service struct {
	cfg         *config.GmailConfig
	oauthConfig *oauth2.Config
	cb          *gobreaker.CircuitBreaker
	log         logger.Logger
}

func NewGmailService(cfg *config.GmailConfig, log logger.Logger) *Service {
	if cfg == nil {
		cfg = &config.GmailConfig{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	return &Service{
		cfg: cfg,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{gmailv1.GmailReadonlyScope},
			Endpoint:     google.Endpoint,
		},
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gmail-api",
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     breakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.ConsecutiveFailures > 5 ||
					(counts.Requests >= 10 && failureRatio >= 0.6)
			},
			// client errors are the caller's problem, not a provider outage
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				var apiErr *googleapi.Error
				if errors.As(err, &apiErr) {
					return apiErr.Code < http.StatusInternalServerError && apiErr.Code != http.StatusTooManyRequests
				}
				return errors.Is(err, context.Canceled)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warnf("circuit breaker %s changed state from %s to %s", name, from.String(), to.String())
			},
		}),
		log: log,
	}
}

// ForAccount returns a provider client authenticated with the account's OAuth tokens.
func (s *Service) ForAccount(ctx context.Context, account *models.MailAccount) (interfaces.MailProvider, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailService.ForAccount")
	defer span.Finish()
	tracing.TagComponentProvider(span)

	if account == nil {
		err := errors.Wrap(inboxsync_errors.ErrInvalidInput, "mail account cannot be nil")
		tracing.TraceErr(span, err)
		return nil, err
	}
	tracing.TagAccount(span, account.ID)

	if account.AccessToken == "" && account.RefreshToken == "" {
		err := errors.Errorf("mail account %s has no OAuth tokens", account.ID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	token := &oauth2.Token{
		AccessToken:  account.AccessToken,
		RefreshToken: account.RefreshToken,
		TokenType:    "Bearer",
	}
	if account.TokenExpiry != nil {
		token.Expiry = *account.TokenExpiry
	}

	// the token source outlives this call, refreshes must not be bound to ctx
	opts := []option.ClientOption{option.WithTokenSource(s.oauthConfig.TokenSource(context.Background(), token))}
	if s.cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.cfg.Endpoint))
	}

	client, err := s.newClient(ctx, account.ID, opts...)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return client, nil
}

func (s *Service) newClient(ctx context.Context, mailAccountID string, opts ...option.ClientOption) (*client, error) {
	svc, err := gmailv1.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gmail service")
	}
	return &client{
		svc:           svc,
		cb:            s.cb,
		timeout:       s.cfg.RequestTimeout,
		mailAccountID: mailAccountID,
		log:           s.log,
	}, nil
}

func (s *Service) BreakerState() string {
	return s.cb.State().String()
}
