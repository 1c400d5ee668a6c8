package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/analysis"
	"github.com/taxmitra/taxmitra/internal/common"
)

const analysisCacheTTL = 10 * time.Minute

type generateAnalysisReq struct {
	SessionID string `json:"session_id" binding:"required"`
}

// GenerateAnalysis runs the analysis synchronously and returns the full
// report. The report is returned even when persistence fails; the user
// must be able to see a just-computed analysis during a storage outage.
func (h *Handler) GenerateAnalysis(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req generateAnalysisReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	a, err := h.AnalysisSvc.Generate(c.Request.Context(), uid, req.SessionID)
	if err != nil {
		log.Printf("[GenerateAnalysis] failed uid=%d session=%s err=%v", uid, req.SessionID, err)
		fail(c, http.StatusBadGateway, 50201, "analysis failed")
		return
	}

	h.finishAnalysis(c, uid, req.SessionID, a)

	ok(c, gin.H{"analysis": a})
}

// finishAnalysis deactivates the producing session and refreshes the
// latest-analysis cache. Both are best effort.
func (h *Handler) finishAnalysis(c *gin.Context, uid uint64, sessionID string, a *analysis.TaxAnalysis) {
	if err := h.ConvSvc.DeactivateSession(c.Request.Context(), sessionID); err != nil {
		log.Printf("[GenerateAnalysis] session deactivate failed session=%s err=%v", sessionID, err)
	}
	if b, err := json.Marshal(a); err == nil {
		if err := h.Redis.CacheLatestAnalysis(c.Request.Context(), uid, b, analysisCacheTTL); err != nil {
			log.Printf("[GenerateAnalysis] cache write failed uid=%d err=%v", uid, err)
		}
	}
}

// GenerateAnalysisAsync enqueues the analysis run and returns a job id to
// poll. Supports Idempotency-Key for safe retries.
func (h *Handler) GenerateAnalysisAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req generateAnalysisReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[GenerateAnalysisAsync] NewULID failed uid=%d err=%v", uid, err)
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &analysis.Job{
		ID:             jobID,
		UserID:         uid,
		SessionID:      req.SessionID,
		IdempotencyKey: idempoKeyPtr,
		Status:         analysis.JobQueued,
	}

	job, created, err := h.AnalysisRpo.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[GenerateAnalysisAsync] CreateJobOrGetExisting failed uid=%d err=%v", uid, err)
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), job.ID); err != nil {
			log.Printf("[GenerateAnalysisAsync] PublishJob failed uid=%d job=%s err=%v", uid, job.ID, err)
			fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	ok(c, gin.H{"job_id": job.ID})
}

func (h *Handler) GetAnalysisJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.AnalysisRpo.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	ok(c, gin.H{
		"job": gin.H{
			"id":                 j.ID,
			"session_id":         j.SessionID,
			"status":             j.Status,
			"result_analysis_id": j.ResultAnalysisID,
			"error":              j.Error,
			"created_at":         j.CreatedAt,
			"updated_at":         j.UpdatedAt,
		},
	})
}

func (h *Handler) GetLatestAnalysis(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if b, err := h.Redis.LatestAnalysis(c.Request.Context(), uid); err == nil {
		var cached analysis.TaxAnalysis
		if json.Unmarshal(b, &cached) == nil {
			ok(c, gin.H{"analysis": cached, "cached": true})
			return
		}
	}

	a, err := h.AnalysisSvc.Latest(c.Request.Context(), uid)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			fail(c, http.StatusNotFound, 40403, "no analysis yet")
			return
		}
		fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	if b, err := json.Marshal(a); err == nil {
		if err := h.Redis.CacheLatestAnalysis(c.Request.Context(), uid, b, analysisCacheTTL); err != nil {
			log.Printf("[GetLatestAnalysis] cache write failed uid=%d err=%v", uid, err)
		}
	}

	ok(c, gin.H{"analysis": a, "cached": false})
}
