package models

import (
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Auth0ID     string `gorm:"uniqueIndex" json:"-"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Iban        string `json:"-"`
	PaypalEmail string `json:"-"`
}

func (u User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Role grants a flat set of permissions inside one tenant.
type Role struct {
	gorm.Model
	TenantID        uint                        `gorm:"index" json:"tenant_id"`
	Name            string                      `json:"name"`
	Permissions     datatypes.JSONSlice[string] `json:"permissions"`
	DefaultUserRole bool                        `json:"default_user_role"`
}

// UserTenant is a user's membership in a tenant.
type UserTenant struct {
	gorm.Model
	TenantID uint   `gorm:"uniqueIndex:idx_user_tenant" json:"tenant_id"`
	UserID   uint   `gorm:"uniqueIndex:idx_user_tenant" json:"user_id"`
	User     User   `gorm:"foreignKey:UserID" json:"-"`
	Roles    []Role `gorm:"many2many:user_tenant_roles" json:"roles"`
}

// Permissions flattens the permissions of every role, without duplicates.
func (m UserTenant) Permissions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range m.Roles {
		for _, p := range r.Permissions {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}
