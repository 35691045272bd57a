package dto

import (
	"time"

	"github.com/customeros/inboxsync/internal/enum"
)

type WindowResult struct {
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
	ThreadsListed int       `json:"threadsListed"`
	ThreadsNew    int       `json:"threadsNew"`
	Imported      int       `json:"imported"`
	Skipped       int       `json:"skipped"`
	Failed        int       `json:"failed"`
	PageTruncated bool      `json:"pageTruncated"`
}

type BackfillResult struct {
	MailAccountID string         `json:"mailAccountId"`
	Windows       []WindowResult `json:"windows"`
	// Truncated is set when the range needed more windows than allowed;
	// NextWindowStart is where a follow-up invocation should start.
	Truncated       bool       `json:"truncated"`
	NextWindowStart *time.Time `json:"nextWindowStart,omitempty"`
}

func (r *BackfillResult) Totals() (imported, skipped, failed int) {
	for _, w := range r.Windows {
		imported += w.Imported
		skipped += w.Skipped
		failed += w.Failed
	}
	return imported, skipped, failed
}

type IncrementalSyncResult struct {
	MailAccountID  string                 `json:"mailAccountId"`
	Source         enum.IncrementalSource `json:"source"`
	ThreadsListed  int                    `json:"threadsListed"`
	ThreadsNew     int                    `json:"threadsNew"`
	Imported       int                    `json:"imported"`
	Skipped        int                    `json:"skipped"`
	Failed         int                    `json:"failed"`
	Cursor         string                 `json:"cursor"`
	CursorAdvanced bool                   `json:"cursorAdvanced"`
}
