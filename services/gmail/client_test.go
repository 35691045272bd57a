package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/customeros/inboxsync/config"
	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/internal/logger"
	"github.com/customeros/inboxsync/internal/models"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	svc := NewGmailService(&config.GmailConfig{RequestTimeout: 5 * time.Second}, logger.NewNopLogger())
	c, err := svc.newClient(context.Background(), "macc_test",
		option.WithEndpoint(server.URL+"/"),
		option.WithHTTPClient(server.Client()),
	)
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestClient_ListThreads(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "after:1672531200 before:1673136000", r.URL.Query().Get("q"))
		assert.Equal(t, "500", r.URL.Query().Get("maxResults"))
		assert.Equal(t, "false", r.URL.Query().Get("includeSpamTrash"))
		writeJSON(w, http.StatusOK, map[string]any{
			"threads": []map[string]any{
				{"id": "t1", "historyId": "10"},
				{"id": "t2", "historyId": "11"},
			},
			"nextPageToken": "more",
		})
	})
	c := newTestClient(t, mux)

	page, err := c.ListThreads(context.Background(), dto.ThreadQuery{
		Query:      "after:1672531200 before:1673136000",
		MaxResults: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, []dto.ThreadRef{{ID: "t1", HistoryID: 10}, {ID: "t2", HistoryID: 11}}, page.Threads)
	assert.Equal(t, "more", page.NextPageToken)
}

func TestClient_ListThreads_ProviderError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error": map[string]any{"code": 429, "message": "rate limited"},
		})
	})
	c := newTestClient(t, mux)

	_, err := c.ListThreads(context.Background(), dto.ThreadQuery{MaxResults: 10})
	require.Error(t, err)

	var providerErr *inboxsync_errors.ProviderQueryError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, http.StatusTooManyRequests, providerErr.StatusCode)
	assert.Equal(t, "threads.list", providerErr.Operation)
	assert.True(t, providerErr.Retryable())
}

func TestClient_GetThreadAndRawMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/threads/t1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "minimal", r.URL.Query().Get("format"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id": "t1",
			"messages": []map[string]any{
				{"id": "t1", "threadId": "t1", "labelIds": []string{"INBOX"}},
				{"id": "m2", "threadId": "t1"},
			},
		})
	})
	mux.HandleFunc("/gmail/v1/users/me/messages/m2", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "raw", r.URL.Query().Get("format"))
		writeJSON(w, http.StatusOK, map[string]any{
			"id":           "m2",
			"threadId":     "t1",
			"labelIds":     []string{"INBOX", "UNREAD"},
			"internalDate": "1704067200000",
			"raw":          "RnJvbTogYUBiLmNvbQ",
		})
	})
	c := newTestClient(t, mux)

	refs, err := c.GetThread(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "t1", refs[0].ID)
	assert.Equal(t, []string{"INBOX"}, refs[0].LabelIDs)
	assert.Equal(t, "m2", refs[1].ID)

	raw, err := c.GetRawMessage(context.Background(), "m2")
	require.NoError(t, err)
	assert.Equal(t, int64(1704067200000), raw.InternalDate)
	assert.Equal(t, "RnJvbTogYUBiLmNvbQ", raw.Raw)
	assert.Equal(t, "t1", raw.ThreadID)
}

func TestClient_ListHistory(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("startHistoryId"))
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(w, http.StatusOK, map[string]any{
				"history": []map[string]any{
					{"id": "101", "messagesAdded": []map[string]any{
						{"message": map[string]any{"id": "m1", "threadId": "t1", "labelIds": []string{"INBOX"}}},
					}},
				},
				"historyId":     "105",
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"history": []map[string]any{
				{"id": "106", "messagesAdded": []map[string]any{
					{"message": map[string]any{"id": "m2", "threadId": "t2"}},
				}},
			},
			"historyId": "107",
		})
	})
	c := newTestClient(t, mux)

	page, err := c.ListHistory(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, "107", page.Cursor)
	require.Len(t, page.Changes, 2)
	assert.Equal(t, "t1", page.Changes[0].ThreadID)
	assert.Equal(t, "t2", page.Changes[1].ThreadID)
}

func TestClient_ListHistory_ExpiredCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/history", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": map[string]any{"code": 404, "message": "Requested entity was not found."},
		})
	})
	c := newTestClient(t, mux)

	_, err := c.ListHistory(context.Background(), "100")
	require.Error(t, err)
	assert.True(t, errors.Is(err, inboxsync_errors.ErrSyncCursorExpired))
}

func TestClient_ListHistory_InvalidCursor(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())

	_, err := c.ListHistory(context.Background(), "not-a-number")
	assert.True(t, errors.Is(err, inboxsync_errors.ErrInvalidSyncCursor))
}

func TestClient_CurrentCursor(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gmail/v1/users/me/profile", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"emailAddress": "support@acme.com", "historyId": "4242"})
	})
	c := newTestClient(t, mux)

	cursor, err := c.CurrentCursor(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4242", cursor)
}

func TestService_ForAccount_RequiresTokens(t *testing.T) {
	svc := NewGmailService(&config.GmailConfig{}, logger.NewNopLogger())

	_, err := svc.ForAccount(context.Background(), &models.MailAccount{ID: "macc_1"})
	require.Error(t, err)

	_, err = svc.ForAccount(context.Background(), nil)
	assert.True(t, errors.Is(err, inboxsync_errors.ErrInvalidInput))

	provider, err := svc.ForAccount(context.Background(), &models.MailAccount{ID: "macc_1", AccessToken: "token"})
	require.NoError(t, err)
	assert.NotNil(t, provider)
	assert.Equal(t, "closed", svc.BreakerState())
}
