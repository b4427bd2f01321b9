package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/evorto/evorto-api/internal/config"
	"github.com/evorto/evorto-api/internal/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	db          *gorm.DB
	cfg         *config.Config
}

// auth0Base accepts a bare Auth0 domain or a full base URL.
func auth0Base(domain string) string {
	domain = strings.TrimRight(domain, "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

func NewAuthHandler(cfg *config.Config, db *gorm.DB) *AuthHandler {
	base := auth0Base(cfg.Auth0Domain)
	return &AuthHandler{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.Auth0ClientID,
			ClientSecret: cfg.Auth0ClientSecret,
			RedirectURL:  cfg.Auth0RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		userInfoURL: base + "/userinfo",
		db:          db,
		cfg:         cfg,
	}
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	domain := r.URL.Query().Get("tenant")
	if domain == "" {
		domain = r.Host
	}

	var tenant models.Tenant
	if err := h.db.Where("domain = ?", domain).First(&tenant).Error; err != nil {
		http.Error(w, "Unknown tenant", http.StatusNotFound)
		return
	}

	state, err := h.signState(tenant.ID)
	if err != nil {
		http.Error(w, "Failed to create login state", http.StatusInternalServerError)
		return
	}
	url := h.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

type auth0User struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.parseState(r.URL.Query().Get("state"))
	if err != nil {
		http.Error(w, "Invalid login state", http.StatusBadRequest)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "Code not found", http.StatusBadRequest)
		return
	}

	token, err := h.oauthConfig.Exchange(r.Context(), code)
	if err != nil {
		http.Error(w, "Failed to exchange token", http.StatusInternalServerError)
		return
	}

	profile, err := h.fetchUser(r.Context(), token)
	if err != nil {
		log.Printf("Auth0 userinfo failed: %v", err)
		http.Error(w, "Failed to get user info", http.StatusInternalServerError)
		return
	}

	session, err := h.upsertMember(tenantID, profile)
	if err != nil {
		log.Printf("Failed to store user %s: %v", profile.Sub, err)
		http.Error(w, "Failed to save user", http.StatusInternalServerError)
		return
	}

	jwtToken, err := h.GenerateToken(session)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, jwtToken)
	http.Redirect(w, r, h.cfg.FrontendURL, http.StatusTemporaryRedirect)
}

func (h *AuthHandler) fetchUser(ctx context.Context, token *oauth2.Token) (*auth0User, error) {
	resp, err := h.oauthConfig.Client(ctx, token).Get(h.userInfoURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var u auth0User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, err
	}
	if u.Sub == "" {
		return nil, errors.New("userinfo without subject")
	}
	return &u, nil
}

// upsertMember stores the Auth0 profile and makes sure the user is a member of
// the tenant. New members get the tenant's default roles.
func (h *AuthHandler) upsertMember(tenantID uint, profile *auth0User) (*Session, error) {
	var member models.UserTenant
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("auth0_id = ?", profile.Sub).FirstOrInit(&user).Error; err != nil {
			return err
		}
		user.Auth0ID = profile.Sub
		user.Email = profile.Email
		if profile.GivenName != "" {
			user.FirstName = profile.GivenName
		}
		if profile.FamilyName != "" {
			user.LastName = profile.FamilyName
		}
		if err := tx.Save(&user).Error; err != nil {
			return err
		}

		err := tx.Preload("Roles").
			Where("tenant_id = ? AND user_id = ?", tenantID, user.ID).
			First(&member).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var roles []models.Role
		if err := tx.Where("tenant_id = ? AND default_user_role = ?", tenantID, true).Find(&roles).Error; err != nil {
			return err
		}
		member = models.UserTenant{TenantID: tenantID, UserID: user.ID, Roles: roles}
		return tx.Create(&member).Error
	})
	if err != nil {
		return nil, err
	}

	return &Session{
		TenantID:    tenantID,
		UserID:      member.UserID,
		Permissions: NewPermissionSet(member.Permissions()...),
	}, nil
}

type UserResponse struct {
	ID          uint     `json:"id"`
	TenantID    uint     `json:"tenantId"`
	Email       string   `json:"email"`
	FirstName   string   `json:"firstName"`
	LastName    string   `json:"lastName"`
	Permissions []string `json:"permissions"`
}

type MeOutput struct {
	Body UserResponse
}

func (h *AuthHandler) HandleMe(ctx context.Context, input *struct{}) (*MeOutput, error) {
	s, err := EnsureAuthenticated(ctx)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := h.db.First(&user, s.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huma.Error404NotFound("User not found")
		}
		return nil, huma.Error500InternalServerError("Database error")
	}

	return &MeOutput{Body: UserResponse{
		ID:          user.ID,
		TenantID:    s.TenantID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Permissions: s.Permissions.Strings(),
	}}, nil
}
