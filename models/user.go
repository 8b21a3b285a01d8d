package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

type Role string

const (
	RoleSuperAdmin Role = "SUPER_ADMIN"
	RoleAdmin      Role = "ADMIN"
	RoleConsultant Role = "CONSULTANT"
	RoleClient     Role = "CLIENT"
	RoleRespondent Role = "RESPONDENT"
)

// StaffRoles are the roles that run consulting work for a tenant.
var StaffRoles = []Role{RoleSuperAdmin, RoleAdmin, RoleConsultant}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleConsultant, RoleClient, RoleRespondent:
		return true
	}
	return false
}

func (r Role) IsStaff() bool {
	for _, s := range StaffRoles {
		if s == r {
			return true
		}
	}
	return false
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "ACTIVE"
	UserStatusInactive UserStatus = "INACTIVE"
	UserStatusPending  UserStatus = "PENDING"
	UserStatusBlocked  UserStatus = "BLOCKED"
)

func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending, UserStatusBlocked:
		return true
	}
	return false
}

type User struct {
	ID               string     `gorm:"primaryKey;type:char(36);column:id" json:"id"`
	TenantID         string     `gorm:"column:tenant_id;type:char(36);not null;uniqueIndex:idx_users_tenant_email" json:"tenantId"`
	OrganizationID   *string    `gorm:"column:organization_id;type:char(36);index" json:"organizationId"`
	Email            string     `gorm:"column:email;size:255;not null;uniqueIndex:idx_users_tenant_email" json:"email"`
	PasswordHash     string     `gorm:"column:password_hash;size:255;not null" json:"-"`
	FirstName        string     `gorm:"column:first_name;size:100" json:"firstName"`
	LastName         string     `gorm:"column:last_name;size:100" json:"lastName"`
	Phone            *string    `gorm:"column:phone;size:50" json:"phone"`
	Role             Role       `gorm:"column:role;size:20;not null" json:"role"`
	Status           UserStatus `gorm:"column:status;size:20;not null" json:"status"`
	ResetToken       *string    `gorm:"column:reset_token;size:64;index" json:"-"`
	ResetTokenExpiry *time.Time `gorm:"column:reset_token_expires" json:"-"`
	EmailVerifiedAt  *time.Time `gorm:"column:email_verified_at" json:"emailVerifiedAt"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at" json:"lastLoginAt"`
	CreatedAt        time.Time  `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt        time.Time  `gorm:"column:updated_at" json:"updatedAt"`
}

func (User) TableName() string { return "users" }

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// FullName joins first and last name, falling back to the e-mail address.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
