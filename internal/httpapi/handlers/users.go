package handlers

import (
	"crypto/rand"
	"log"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/auth"
	"github.com/taxmitra/taxmitra/internal/email"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/models"
)

type createUserReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// generate a 11 digit random username
func randomUsername11() (string, error) {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	out := make([]byte, 11)
	for i := 0; i < 11; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(letters))))
		if err != nil {
			return "", err
		}
		out[i] = letters[n.Int64()]
	}
	return string(out), nil
}

func (h *Handler) CreateUser(c *gin.Context) {
	var req createUserReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, 20002, "failed to hash password")
		return
	}

	// generate username to avoid conflict
	var username string
	for i := 0; i < 5; i++ {
		u, err := randomUsername11()
		if err != nil {
			fail(c, http.StatusInternalServerError, 20004, "failed to generate username")
			return
		}

		var cnt int64
		if err := h.DB.Model(&models.User{}).Where("username = ?", u).Count(&cnt).Error; err != nil {
			fail(c, http.StatusInternalServerError, 20005, "failed to check username")
			return
		}
		if cnt == 0 {
			username = u
			break
		}
	}
	if username == "" {
		fail(c, http.StatusInternalServerError, 20006, "failed to allocate username")
		return
	}

	user := models.User{
		Email:        req.Email,
		Username:     username,
		PasswordHash: hash,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		fail(c, http.StatusBadRequest, 10003, "failed to create user (maybe email already exists)")
		return
	}

	// seed a profile so the analysis snapshot has client context from day
	// one; the name defaults to the email local part until the user sets it
	fullName := req.Email
	if i := strings.Index(fullName, "@"); i > 0 {
		fullName = fullName[:i]
	}
	if err := h.Facts.UpsertProfile(c.Request.Context(), &facts.UserProfile{
		UserID:   user.ID,
		FullName: fullName,
		Email:    req.Email,
	}); err != nil {
		log.Printf("[CreateUser] profile write failed user=%d err=%v", user.ID, err)
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	// send welcome email
	go func(to, uname string) {
		subject := "Welcome to TaxMitra — Your account is ready"
		body := "Hello,\n\n" +
			"Welcome to TaxMitra, your AI tax advisor. Your account has been successfully created.\n\n" +
			"Username: " + uname + "\n\n" +
			"If you did not request this account, please contact our support immediately.\n\n" +
			"Best regards,\n" +
			"TaxMitra\n"
		_ = email.SendText(h.SMTPSetting, to, subject, body)
	}(user.Email, user.Username)

	ok(c, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
		"token":    token,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if req.Email == "" || req.Password == "" {
		fail(c, http.StatusBadRequest, 10002, "email and password required")
		return
	}

	var user models.User
	if err := h.DB.Where("email = ?", req.Email).First(&user).Error; err != nil {
		// don't reveal whether the email exists
		fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(user.ID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	ok(c, gin.H{
		"id":    user.ID,
		"email": user.Email,
		"token": token,
	})
}

func (h *Handler) Me(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var user models.User
	if err := h.DB.First(&user, uid).Error; err != nil {
		fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	ok(c, gin.H{
		"id":       user.ID,
		"email":    user.Email,
		"username": user.Username,
	})
}

func (h *Handler) GetUserByID(c *gin.Context) {
	idStr := c.Param("id")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, 10004, "invalid user id")
		return
	}

	var user models.User
	if err := h.DB.First(&user, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			fail(c, http.StatusNotFound, 40401, "user not found")
			return
		}
		fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	ok(c, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"created_at": user.CreatedAt,
	})
}
