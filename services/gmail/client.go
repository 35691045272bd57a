package gmail

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/tracing"
)

type client struct {
	svc           *gmailv1.Service
	cb            *gobreaker.CircuitBreaker
	timeout       time.Duration
	mailAccountID string
	log           logger.Logger
}

func (c *client) ListThreads(ctx context.Context, query dto.ThreadQuery) (*dto.ThreadPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.ListThreads")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, c.mailAccountID)
	span.SetTag("query", query.Query)
	span.SetTag("max_results", query.MaxResults)

	var resp *gmailv1.ListThreadsResponse
	err := c.execute(ctx, "threads.list", func(ctx context.Context) error {
		call := c.svc.Users.Threads.List(userMe).
			IncludeSpamTrash(query.IncludeSpamTrash).
			Context(ctx)
		if query.Query != "" {
			call = call.Q(query.Query)
		}
		if query.MaxResults > 0 {
			call = call.MaxResults(query.MaxResults)
		}
		var err error
		resp, err = call.Do()
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	page := &dto.ThreadPage{
		Threads:       make([]dto.ThreadRef, 0, len(resp.Threads)),
		NextPageToken: resp.NextPageToken,
	}
	for _, t := range resp.Threads {
		page.Threads = append(page.Threads, dto.ThreadRef{ID: t.Id, HistoryID: t.HistoryId})
	}
	span.SetTag("result.count", len(page.Threads))
	return page, nil
}

// GetThread returns the thread's message references in provider (chronological) order.
func (c *client) GetThread(ctx context.Context, threadID string) ([]dto.ProviderMessageRef, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.GetThread")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, c.mailAccountID)
	tracing.TagThread(span, threadID)

	var thread *gmailv1.Thread
	err := c.execute(ctx, "threads.get", func(ctx context.Context) error {
		var err error
		thread, err = c.svc.Users.Threads.Get(userMe, threadID).Format("minimal").Context(ctx).Do()
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	refs := make([]dto.ProviderMessageRef, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		refs = append(refs, dto.ProviderMessageRef{ID: m.Id, ThreadID: m.ThreadId, LabelIDs: m.LabelIds})
	}
	return refs, nil
}

func (c *client) GetRawMessage(ctx context.Context, messageID string) (*dto.RawMessage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.GetRawMessage")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, c.mailAccountID)
	span.SetTag("message_id", messageID)

	var message *gmailv1.Message
	err := c.execute(ctx, "messages.get", func(ctx context.Context) error {
		var err error
		message, err = c.svc.Users.Messages.Get(userMe, messageID).Format("raw").Context(ctx).Do()
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	return &dto.RawMessage{
		ID:           message.Id,
		ThreadID:     message.ThreadId,
		LabelIDs:     message.LabelIds,
		InternalDate: message.InternalDate,
		Raw:          message.Raw,
	}, nil
}

// ListHistory reads every page of added messages since cursor. A cursor the provider
// no longer retains yields ErrSyncCursorExpired.
func (c *client) ListHistory(ctx context.Context, cursor string) (*dto.HistoryPage, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.ListHistory")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, c.mailAccountID)
	span.SetTag("cursor", cursor)

	startHistoryID, err := strconv.ParseUint(cursor, 10, 64)
	if err != nil {
		err = errors.Wrapf(inboxsync_errors.ErrInvalidSyncCursor, "cursor %q", cursor)
		tracing.TraceErr(span, err)
		return nil, err
	}

	page := &dto.HistoryPage{Cursor: cursor}
	var latest uint64
	err = c.execute(ctx, "history.list", func(ctx context.Context) error {
		page.Changes = page.Changes[:0]
		return c.svc.Users.History.List(userMe).
			StartHistoryId(startHistoryID).
			HistoryTypes("messageAdded").
			Context(ctx).
			Pages(ctx, func(resp *gmailv1.ListHistoryResponse) error {
				for _, h := range resp.History {
					for _, added := range h.MessagesAdded {
						if added.Message == nil {
							continue
						}
						page.Changes = append(page.Changes, dto.HistoryChange{
							MessageID: added.Message.Id,
							ThreadID:  added.Message.ThreadId,
							LabelIDs:  added.Message.LabelIds,
						})
					}
				}
				if resp.HistoryId > latest {
					latest = resp.HistoryId
				}
				return nil
			})
	})
	if err != nil {
		var providerErr *inboxsync_errors.ProviderQueryError
		if errors.As(err, &providerErr) && providerErr.StatusCode == http.StatusNotFound {
			err = errors.Wrap(inboxsync_errors.ErrSyncCursorExpired, err.Error())
		}
		tracing.TraceErr(span, err)
		return nil, err
	}

	if latest > 0 {
		page.Cursor = strconv.FormatUint(latest, 10)
	}
	span.SetTag("result.count", len(page.Changes))
	return page, nil
}

// CurrentCursor returns the mailbox's current history id.
func (c *client) CurrentCursor(ctx context.Context) (string, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "GmailClient.CurrentCursor")
	defer span.Finish()
	tracing.TagComponentProvider(span)
	tracing.TagAccount(span, c.mailAccountID)

	var profile *gmailv1.Profile
	err := c.execute(ctx, "users.getProfile", func(ctx context.Context) error {
		var err error
		profile, err = c.svc.Users.GetProfile(userMe).Context(ctx).Do()
		return err
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return "", err
	}
	return strconv.FormatUint(profile.HistoryId, 10), nil
}

// execute runs one provider call under the request timeout and the circuit breaker,
// translating provider failures into ProviderQueryError.
func (c *client) execute(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	if err == nil {
		return nil
	}
	return c.wrapError(operation, err)
}

func (c *client) wrapError(operation string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return inboxsync_errors.NewProviderQueryError(operation, apiErr.Code, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.log.Warnf("gmail circuit breaker rejected %s for mail account %s", operation, c.mailAccountID)
		return inboxsync_errors.NewProviderQueryError(operation, http.StatusServiceUnavailable, err)
	}
	return errors.Wrapf(err, "gmail %s", operation)
}
