package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"petamigos/contentguard/internal/ids"
	"petamigos/contentguard/internal/middleware"
	"petamigos/contentguard/internal/models"
	"petamigos/contentguard/internal/repository"
)

type reviewRequest struct {
	Note string `json:"note"`
}

type reviewResponse struct {
	Record models.AuditRecord `json:"record"`
	Review models.Review      `json:"review"`
}

func (h HandlerSet) ListPending(c *gin.Context) {
	limit := 50
	offset := 0

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if page := c.Query("page"); page != "" {
		if v, err := strconv.Atoi(page); err == nil && v > 1 {
			offset = (v - 1) * limit
		}
	}

	ctx := c.Request.Context()
	records, err := h.reviews.ListPending(ctx, limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("list pending reviews failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}
	total, err := h.reviews.CountPending(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("count pending reviews failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": records,
		"total": total,
	})
}

func (h HandlerSet) GetRecord(c *gin.Context) {
	record, err := h.reviews.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.recordError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h HandlerSet) Approve(c *gin.Context) {
	h.review(c, models.ReviewStatusApproved)
}

func (h HandlerSet) Reject(c *gin.Context) {
	h.review(c, models.ReviewStatusRejected)
}

func (h HandlerSet) review(c *gin.Context, decision models.ReviewStatus) {
	moderator, ok := middleware.CurrentModerator(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req reviewRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_body"})
			return
		}
	}

	ctx := c.Request.Context()
	record, err := h.reviews.GetByID(ctx, c.Param("id"))
	if err != nil {
		h.recordError(c, err)
		return
	}
	if record.Status != models.ReviewStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "already_reviewed", "status": record.Status})
		return
	}

	review := models.Review{
		ID:          ids.New(),
		RecordID:    record.ID,
		ModeratorID: moderator.ModeratorID(),
		Decision:    decision,
		Note:        req.Note,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.reviews.AppendReview(ctx, review); err != nil {
		h.recordError(c, err)
		return
	}

	h.log.Info().
		Str("record_id", record.ID).
		Str("moderator_id", review.ModeratorID).
		Str("decision", string(decision)).
		Msg("moderation review recorded")

	record.Status = decision
	c.JSON(http.StatusOK, reviewResponse{Record: record, Review: review})
}

func (h HandlerSet) recordError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	if errors.Is(err, repository.ErrAlreadyReviewed) {
		c.JSON(http.StatusConflict, gin.H{"error": "already_reviewed"})
		return
	}
	h.log.Error().Err(err).Str("record_id", c.Param("id")).Msg("moderation store error")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
}
