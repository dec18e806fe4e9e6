package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pulsechat/pulse/internal/auth"
	"github.com/pulsechat/pulse/internal/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAccessSecret  = "api-test-access"
	testRefreshSecret = "api-test-refresh"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[uuid.UUID]models.User)}
}

func (r *memUserRepo) Create(ctx context.Context, email, name, avatar, passwordHash string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Avatar:       avatar,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	r.users[u.ID] = u
	return &u, nil
}

func (r *memUserRepo) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func newAuthRouter(users *memUserRepo) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(users, testAccessSecret, testRefreshSecret, zap.NewNop())
	r := gin.New()
	r.POST("/v1/auth/signup", h.Signup)
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodePair(t *testing.T, w *httptest.ResponseRecorder) tokenPair {
	t.Helper()
	var pair tokenPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("decode token pair: %v (body: %s)", err, w.Body.String())
	}
	return pair
}

func TestSignupIssuesUsableTokens(t *testing.T) {
	users := newMemUserRepo()
	r := newAuthRouter(users)

	w := postJSON(t, r, "/v1/auth/signup", gin.H{
		"email":    "alice@example.com",
		"password": "correct-horse",
		"name":     "alice",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body: %s)", w.Code, w.Body.String())
	}

	pair := decodePair(t, w)
	claims, err := auth.ParseToken(pair.AccessToken, testAccessSecret, auth.TokenTypeAccess)
	if err != nil {
		t.Fatalf("access token unusable: %v", err)
	}
	if claims.Email != "alice@example.com" {
		t.Errorf("claims email = %q", claims.Email)
	}
	if _, err := auth.ParseToken(pair.RefreshToken, testRefreshSecret, auth.TokenTypeRefresh); err != nil {
		t.Fatalf("refresh token unusable: %v", err)
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := newMemUserRepo()
	r := newAuthRouter(users)

	body := gin.H{"email": "alice@example.com", "password": "correct-horse", "name": "alice"}
	if w := postJSON(t, r, "/v1/auth/signup", body); w.Code != http.StatusCreated {
		t.Fatalf("first signup: %d", w.Code)
	}
	if w := postJSON(t, r, "/v1/auth/signup", body); w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d, want 409", w.Code)
	}
}

func TestLogin(t *testing.T) {
	users := newMemUserRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	if _, err := users.Create(context.Background(), "alice@example.com", "alice", "", string(hash)); err != nil {
		t.Fatal(err)
	}
	r := newAuthRouter(users)

	w := postJSON(t, r, "/v1/auth/login", gin.H{"email": "alice@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d (body: %s)", w.Code, w.Body.String())
	}

	// Wrong password and unknown email produce the same response.
	w = postJSON(t, r, "/v1/auth/login", gin.H{"email": "alice@example.com", "password": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}
	w = postJSON(t, r, "/v1/auth/login", gin.H{"email": "nobody@example.com", "password": "whatever"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", w.Code)
	}
}

func TestRefreshRotation(t *testing.T) {
	users := newMemUserRepo()
	u, err := users.Create(context.Background(), "alice@example.com", "alice", "", "x")
	if err != nil {
		t.Fatal(err)
	}
	r := newAuthRouter(users)

	refresh, err := auth.GenerateRefreshToken(u.ID, u.Email, testRefreshSecret)
	if err != nil {
		t.Fatal(err)
	}
	w := postJSON(t, r, "/v1/auth/refresh", gin.H{"refresh_token": refresh})
	if w.Code != http.StatusOK {
		t.Fatalf("refresh status = %d (body: %s)", w.Code, w.Body.String())
	}
	pair := decodePair(t, w)
	if _, err := auth.ParseToken(pair.AccessToken, testAccessSecret, auth.TokenTypeAccess); err != nil {
		t.Errorf("rotated access token unusable: %v", err)
	}

	// An access token is not accepted where a refresh token is required.
	access, err := auth.GenerateAccessToken(u.ID, u.Email, testAccessSecret)
	if err != nil {
		t.Fatal(err)
	}
	if w := postJSON(t, r, "/v1/auth/refresh", gin.H{"refresh_token": access}); w.Code != http.StatusUnauthorized {
		t.Errorf("access-as-refresh status = %d, want 401", w.Code)
	}
}

func TestRefreshForDeletedUser(t *testing.T) {
	users := newMemUserRepo()
	r := newAuthRouter(users)

	// Token for a user that no longer exists.
	refresh, err := auth.GenerateRefreshToken(uuid.New(), "ghost@example.com", testRefreshSecret)
	if err != nil {
		t.Fatal(err)
	}
	if w := postJSON(t, r, "/v1/auth/refresh", gin.H{"refresh_token": refresh}); w.Code != http.StatusUnauthorized {
		t.Errorf("deleted-user refresh status = %d, want 401", w.Code)
	}
}
