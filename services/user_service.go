package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

type UserService struct {
	db     *gorm.DB
	emails *EmailService
	logger *zap.Logger
	now    func() time.Time
}

func NewUserService(db *gorm.DB, emails *EmailService, logger *zap.Logger) *UserService {
	if db == nil {
		db = config.DB
	}
	return &UserService{db: db, emails: emails, logger: loggerOrDefault(logger), now: time.Now}
}

type UserFilter struct {
	Role   models.Role
	Status models.UserStatus
	Search string
}

func (s *UserService) List(ctx context.Context, actor Actor, filter UserFilter) ([]models.User, error) {
	q := s.db.WithContext(ctx).Model(&models.User{})
	if actor.Role != models.RoleSuperAdmin {
		q = q.Where("tenant_id = ?", actor.TenantID)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}
	users := []models.User{}
	err := q.Order("created_at DESC").Find(&users).Error
	return users, err
}

type CreateUserInput struct {
	Email          string      `json:"email" binding:"required,email"`
	FirstName      string      `json:"firstName" binding:"required"`
	LastName       string      `json:"lastName"`
	Phone          *string     `json:"phone"`
	Role           models.Role `json:"role" binding:"required"`
	OrganizationID *string     `json:"organizationId"`
}

// Create invites a user into the actor's tenant. The account stays PENDING
// until the invitation link is used to set a password.
func (s *UserService) Create(ctx context.Context, actor Actor, in CreateUserInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fields := map[string][]string{}
	if email == "" {
		fields["email"] = append(fields["email"], "email is required")
	}
	if !in.Role.Valid() {
		fields["role"] = append(fields["role"], "invalid role")
	}
	if in.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
		fields["role"] = append(fields["role"], "only a super admin can create super admins")
	}
	if in.Role == models.RoleClient && strings.TrimSpace(deref(in.OrganizationID)) == "" {
		fields["organizationId"] = append(fields["organizationId"], "clients must belong to an organization")
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	if in.OrganizationID != nil && *in.OrganizationID != "" {
		if _, err := findOrganizationFor(ctx, s.db, actor, *in.OrganizationID); err != nil {
			return nil, err
		}
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ? AND email = ?", actor.TenantID, email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.Conflict("a user with this e-mail already exists")
	}

	temp, err := randomHex(16)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(temp)
	if err != nil {
		return nil, err
	}
	user := models.User{
		TenantID:       actor.TenantID,
		OrganizationID: strPtr(deref(in.OrganizationID)),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      strings.TrimSpace(in.FirstName),
		LastName:       strings.TrimSpace(in.LastName),
		Phone:          in.Phone,
		Role:           in.Role,
		Status:         models.UserStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}

	link, err := issueClientLink(ctx, s.db, s.emails, &user, s.now())
	if err != nil {
		return nil, err
	}
	if s.emails != nil {
		logAndContinue(s.logger, "invitation e-mail",
			s.emails.SendPasswordReset(persistentContext(ctx), user.Email, user.FullName(), link),
			zap.String("user_id", user.ID))
	}
	return &user, nil
}

type UpdateUserInput struct {
	Role   *models.Role       `json:"role"`
	Status *models.UserStatus `json:"status"`
}

func (s *UserService) Update(ctx context.Context, actor Actor, id string, in UpdateUserInput) (*models.User, error) {
	user, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Role != nil {
		if !in.Role.Valid() {
			return nil, apperrors.Field("role", "invalid role")
		}
		if *in.Role == models.RoleSuperAdmin && actor.Role != models.RoleSuperAdmin {
			return nil, apperrors.Forbidden("only a super admin can grant super admin")
		}
		updates["role"] = *in.Role
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperrors.Field("status", "invalid status")
		}
		if user.ID == actor.UserID && *in.Status != models.UserStatusActive {
			return nil, apperrors.Field("status", "you cannot deactivate your own account")
		}
		updates["status"] = *in.Status
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.find(ctx, actor, id)
}

func (s *UserService) find(ctx context.Context, actor Actor, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("user")
	}
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleSuperAdmin && user.TenantID != actor.TenantID {
		return nil, apperrors.NotFound("user")
	}
	return &user, nil
}
