package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	apierrors "github.com/customeros/inboxsync/api/errors"
	"github.com/customeros/inboxsync/dto"
	inboxsync_errors "github.com/customeros/inboxsync/errors"
	"github.com/customeros/inboxsync/interfaces"
	"github.com/customeros/inboxsync/internal/enum"
	"github.com/customeros/inboxsync/internal/tracing"
	"github.com/customeros/inboxsync/internal/utils"
	"github.com/customeros/inboxsync/services/events"
)

type BackfillJobRequest struct {
	MailAccountID string    `json:"mailAccountId"`
	WindowStart   time.Time `json:"windowStart"`
	WindowEnd     time.Time `json:"windowEnd"`
}

type IncrementalSyncJobRequest struct {
	MailAccountID string `json:"mailAccountId"`
}

type JobAcceptedResponse struct {
	JobID         string `json:"jobId"`
	MailAccountID string `json:"mailAccountId"`
	Status        string `json:"status"`
}

// JobsHandler queues sync jobs on the sync-jobs queue; the sync job listeners run them.
type JobsHandler struct {
	accounts  interfaces.MailAccountRepository
	publisher interfaces.EventPublisher
}

func NewJobsHandler(accounts interfaces.MailAccountRepository, publisher interfaces.EventPublisher) *JobsHandler {
	return &JobsHandler{
		accounts:  accounts,
		publisher: publisher,
	}
}

func (h *JobsHandler) Backfill() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "JobsHandler.Backfill")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request BackfillJobRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		validation := apierrors.NewMultiErrors()
		if request.MailAccountID == "" {
			validation.Add("mailAccountId", "is required", nil)
		}
		if request.WindowStart.IsZero() {
			validation.Add("windowStart", "is required", nil)
		}
		if request.WindowEnd.IsZero() {
			validation.Add("windowEnd", "is required", nil)
		}
		if !request.WindowStart.IsZero() && !request.WindowEnd.IsZero() && request.WindowStart.After(request.WindowEnd) {
			validation.Add("windowStart", "must not be after windowEnd", nil)
		}
		if validation.HasErrors() {
			tracing.TraceErr(span, validation)
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": validation.Fields()})
			return
		}
		tracing.TagAccount(span, request.MailAccountID)

		if !h.accountExists(c, request.MailAccountID) {
			return
		}

		jobID := uuid.NewString()
		event := dto.BackfillRequested{
			JobID:         jobID,
			MailAccountID: request.MailAccountID,
			WindowStart:   request.WindowStart.UTC(),
			WindowEnd:     request.WindowEnd.UTC(),
		}
		err := h.publisher.PublishDirectEvent(utils.SetMailAccountIdInContext(ctx, request.MailAccountID),
			events.RoutingKeySyncJobs, request.MailAccountID, enum.MAIL_ACCOUNT, "", event)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not queue backfill job"})
			return
		}

		span.SetTag("job_id", jobID)
		c.JSON(http.StatusAccepted, JobAcceptedResponse{JobID: jobID, MailAccountID: request.MailAccountID, Status: "queued"})
	}
}

func (h *JobsHandler) IncrementalSync() gin.HandlerFunc {
	return func(c *gin.Context) {
		span, ctx := opentracing.StartSpanFromContext(c.Request.Context(), "JobsHandler.IncrementalSync")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var request IncrementalSyncJobRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if request.MailAccountID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": gin.H{"mailAccountId": []string{"is required"}}})
			return
		}
		tracing.TagAccount(span, request.MailAccountID)

		if !h.accountExists(c, request.MailAccountID) {
			return
		}

		jobID := uuid.NewString()
		event := dto.IncrementalSyncRequested{
			JobID:         jobID,
			MailAccountID: request.MailAccountID,
		}
		err := h.publisher.PublishDirectEvent(utils.SetMailAccountIdInContext(ctx, request.MailAccountID),
			events.RoutingKeySyncJobs, request.MailAccountID, enum.MAIL_ACCOUNT, "", event)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "could not queue incremental sync job"})
			return
		}

		span.SetTag("job_id", jobID)
		c.JSON(http.StatusAccepted, JobAcceptedResponse{JobID: jobID, MailAccountID: request.MailAccountID, Status: "queued"})
	}
}

// accountExists writes the error response itself when it returns false.
func (h *JobsHandler) accountExists(c *gin.Context, mailAccountID string) bool {
	account, err := h.accounts.GetByID(c.Request.Context(), mailAccountID)
	switch {
	case errors.Is(err, inboxsync_errors.ErrMailAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "mail account not found"})
		return false
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load mail account"})
		return false
	case !account.Active:
		c.JSON(http.StatusConflict, gin.H{"error": "mail account is not active"})
		return false
	}
	return true
}
