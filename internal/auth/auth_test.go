package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/evorto/evorto-api/internal/config"
	"github.com/evorto/evorto-api/internal/models"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.Tenant{}, &models.User{}, &models.Role{}, &models.UserTenant{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestHandleMe(t *testing.T) {
	db := setupDB(t)

	user := models.User{Auth0ID: "auth0|1", Email: "test@example.com", FirstName: "Test"}
	db.Create(&user)

	handler := NewAuthHandler(&config.Config{JWTSecret: "test-secret"}, db)

	t.Run("Authenticated", func(t *testing.T) {
		ctx := WithSession(context.Background(), &Session{
			TenantID:    1,
			UserID:      user.ID,
			Permissions: NewPermissionSet("templates:view", "events:edit"),
		})
		resp, err := handler.HandleMe(ctx, &struct{}{})
		if err != nil {
			t.Fatalf("HandleMe returned error: %v", err)
		}
		if resp.Body.Email != user.Email {
			t.Errorf("expected email %s, got %s", user.Email, resp.Body.Email)
		}
		if len(resp.Body.Permissions) != 2 || resp.Body.Permissions[0] != "events:edit" {
			t.Errorf("unexpected permissions %v", resp.Body.Permissions)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		_, err := handler.HandleMe(context.Background(), &struct{}{})
		if err == nil {
			t.Fatal("expected error for unauthenticated request, got nil")
		}
	})
}

func TestEnsurePermission(t *testing.T) {
	ctx := WithSession(context.Background(), &Session{TenantID: 1, UserID: 2, Permissions: NewPermissionSet("finance:viewReceipts")})

	if _, err := EnsurePermission(ctx, PermFinanceViewReceipts); err != nil {
		t.Errorf("expected permission to pass, got %v", err)
	}
	if _, err := EnsurePermission(ctx, PermFinanceViewReceipts, PermFinanceRefundReceipts); err == nil {
		t.Error("expected forbidden when one permission is missing")
	}
	if _, err := EnsurePermission(context.Background(), PermFinanceViewReceipts); err == nil {
		t.Error("expected unauthorized without a session")
	}
}

func newFakeAuth0(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(auth0User{Sub: "auth0|42", Email: "anna@example.com", GivenName: "Anna", FamilyName: "Muster"})
	})
	return httptest.NewServer(mux)
}

func TestLoginAndCallback(t *testing.T) {
	db := setupDB(t)
	srv := newFakeAuth0(t)
	defer srv.Close()

	tenant := models.Tenant{Name: "ESN Munich", Domain: "munich.evorto.app"}
	db.Create(&tenant)
	db.Create(&models.Role{TenantID: tenant.ID, Name: "Member", DefaultUserRole: true, Permissions: datatypes.JSONSlice[string]{"templates:view"}})
	db.Create(&models.Role{TenantID: tenant.ID, Name: "Admin", Permissions: datatypes.JSONSlice[string]{"admin:changeSettings"}})

	cfg := &config.Config{
		JWTSecret:        "test-secret",
		Auth0Domain:      srv.URL,
		Auth0ClientID:    "client",
		Auth0RedirectURL: "http://localhost/auth/callback",
		FrontendURL:      "http://localhost:4200",
	}
	handler := NewAuthHandler(cfg, db)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?tenant=munich.evorto.app", nil)
	rr := httptest.NewRecorder()
	handler.HandleLogin(rr, req)
	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect, got %d", rr.Code)
	}
	loc, _ := url.Parse(rr.Header().Get("Location"))
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatal("expected state in redirect")
	}

	req = httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state="+url.QueryEscape(state), nil)
	rr = httptest.NewRecorder()
	handler.HandleCallback(rr, req)
	if rr.Code != http.StatusTemporaryRedirect {
		t.Fatalf("expected redirect to frontend, got %d: %s", rr.Code, rr.Body.String())
	}

	var session *Session
	for _, c := range rr.Result().Cookies() {
		if c.Name == CookieName {
			s, _, err := handler.ParseToken(c.Value)
			if err != nil {
				t.Fatalf("issued token does not parse: %v", err)
			}
			session = s
		}
	}
	if session == nil {
		t.Fatal("expected session cookie")
	}
	if session.TenantID != tenant.ID {
		t.Errorf("expected tenant %d, got %d", tenant.ID, session.TenantID)
	}
	if !session.Can(PermTemplatesView) || session.Can(PermAdminChangeSettings) {
		t.Errorf("expected only default role permissions, got %v", session.Permissions.Strings())
	}

	var user models.User
	if err := db.Where("auth0_id = ?", "auth0|42").First(&user).Error; err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if user.FirstName != "Anna" || user.Email != "anna@example.com" {
		t.Errorf("unexpected stored user %+v", user)
	}

	t.Run("RejectsForgedState", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=forged", nil)
		rr := httptest.NewRecorder()
		handler.HandleCallback(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rr.Code)
		}
	})

	t.Run("UnknownTenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/auth/login?tenant=nowhere", nil)
		rr := httptest.NewRecorder()
		handler.HandleLogin(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rr.Code)
		}
	})
}
