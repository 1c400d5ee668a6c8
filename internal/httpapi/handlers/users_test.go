package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/taxmitra/taxmitra/internal/config"
	"github.com/taxmitra/taxmitra/internal/facts"
	"github.com/taxmitra/taxmitra/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &facts.UserProfile{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func postJSON(t *testing.T, h gin.HandlerFunc, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	h(c)
	return w
}

func TestCreateUser_SeedsProfile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	h := &Handler{
		DB:    db,
		Cfg:   config.Config{JWTSecret: "test-secret"},
		Facts: facts.NewRepo(db),
	}

	w := postJSON(t, h.CreateUser, "/users", gin.H{
		"email":    "asha.k@example.com",
		"password": "s3cret-pass",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}

	var user models.User
	if err := db.Where("email = ?", "asha.k@example.com").First(&user).Error; err != nil {
		t.Fatalf("user row: %v", err)
	}

	p, err := h.Facts.GetProfile(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p == nil {
		t.Fatalf("registration must seed a profile row")
	}
	if p.Email != "asha.k@example.com" {
		t.Fatalf("profile email: %q", p.Email)
	}
	if p.FullName != "asha.k" {
		t.Fatalf("profile name should default to the email local part, got %q", p.FullName)
	}
}

func TestCreateUser_RejectsMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := openTestDB(t)
	h := &Handler{DB: db, Cfg: config.Config{JWTSecret: "test-secret"}, Facts: facts.NewRepo(db)}

	w := postJSON(t, h.CreateUser, "/users", gin.H{"email": "nopass@example.com"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
