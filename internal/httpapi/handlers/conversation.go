package handlers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/conversation"
)

// One in-flight turn per session; the TTL bounds how long a crashed turn
// can keep a session locked.
const turnLockTTL = 2 * time.Minute

// GetActiveConversation returns the user's active session with its full
// message log, or a null session on first contact.
func (h *Handler) GetActiveConversation(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	session, msgs, err := h.ConvSvc.GetActiveSession(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to load session")
		return
	}
	if session == nil {
		ok(c, gin.H{"session": nil, "messages": []conversation.Message{}})
		return
	}

	ok(c, gin.H{"session": session, "messages": msgs})
}

// CreateConversationSession starts a fresh interview; any prior active
// session is superseded.
func (h *Handler) CreateConversationSession(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sess, err := h.ConvSvc.CreateSession(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	ok(c, gin.H{
		"session_id": sess.SessionID,
		"stage":      sess.Stage,
		"welcome":    conversation.WelcomeMessage,
	})
}

type sendMessageReq struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message" binding:"required"`
}

func (h *Handler) SendConversationMessage(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req sendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	// Serialize turns per session. A Redis outage degrades open: losing
	// the guard is better than losing the chat.
	acquired, err := h.Redis.AcquireTurnLock(c.Request.Context(), req.SessionID, turnLockTTL)
	if err != nil {
		log.Printf("[SendConversationMessage] turn lock failed session=%s err=%v", req.SessionID, err)
	} else if !acquired {
		fail(c, http.StatusConflict, 40901, "previous turn still in progress")
		return
	} else {
		defer func() {
			if err := h.Redis.ReleaseTurnLock(c.Request.Context(), req.SessionID); err != nil {
				log.Printf("[SendConversationMessage] turn unlock failed session=%s err=%v", req.SessionID, err)
			}
		}()
	}

	reply, err := h.ConvSvc.SendMessage(c.Request.Context(), uid, req.SessionID, req.Message)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		fail(c, http.StatusBadRequest, 40001, "failed to send message")
		return
	}

	// Reload the posted session for its post-turn stage; the stage is the
	// authoritative readiness signal, the reply text only a fallback.
	ready := false
	if sess, err := h.ConvSvc.GetSession(c.Request.Context(), uid, req.SessionID); err == nil {
		ready = conversation.ReadyForAnalysis(sess.Stage, reply.Content)
	}

	ok(c, gin.H{
		"session_id":         req.SessionID,
		"reply":              reply.Content,
		"message_id":         reply.ID,
		"ready_for_analysis": ready,
	})
}

func (h *Handler) ListConversationMessages(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.Query("limit"))
	beforeIDStr := c.Query("before_id")
	var beforeID uint64
	if beforeIDStr != "" {
		if n, err := strconv.ParseUint(beforeIDStr, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.ConvSvc.ListMessages(c.Request.Context(), uid, sessionID, limit, beforeID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			fail(c, http.StatusNotFound, 40004, "session not found")
			return
		}
		fail(c, http.StatusInternalServerError, 50002, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	ok(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}
