package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const (
	minPasswordLength = 8
	passwordResetTTL  = time.Hour
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the payload of an access token.
type Claims struct {
	UserID         string      `json:"user_id"`
	TenantID       string      `json:"tenant_id"`
	OrganizationID string      `json:"organization_id,omitempty"`
	Email          string      `json:"email"`
	Role           models.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Actor() Actor {
	return Actor{
		UserID:         c.UserID,
		TenantID:       c.TenantID,
		OrganizationID: c.OrganizationID,
		Email:          c.Email,
		Role:           c.Role,
	}
}

type AuthService struct {
	db          *gorm.DB
	secret      []byte
	expireHours int
	emails      *EmailService
	logger      *zap.Logger
	now         func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, expireHours int, emails *EmailService, logger *zap.Logger) *AuthService {
	if db == nil {
		db = config.DB
	}
	if expireHours <= 0 {
		expireHours = 24
	}
	return &AuthService{
		db:          db,
		secret:      []byte(secret),
		expireHours: expireHours,
		emails:      emails,
		logger:      loggerOrDefault(logger),
		now:         time.Now,
	}
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func validatePassword(field, password string) error {
	if len(password) < minPasswordLength {
		return apperrors.Field(field, fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	return nil
}

// IssueToken signs an access token for user.
func (s *AuthService) IssueToken(user *models.User) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(time.Duration(s.expireHours) * time.Hour)
	claims := Claims{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if user.OrganizationID != nil {
		claims.OrganizationID = *user.OrganizationID
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	return token, expires, err
}

// ParseToken validates an access token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ActiveUser loads the user behind a token and checks it may still log in.
func (s *AuthService) ActiveUser(ctx context.Context, userID string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Unauthorized("user not found")
	}
	if err != nil {
		return nil, err
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.Unauthorized("account is not active")
	}
	return &user, nil
}

type LoginInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	TenantSlug string `json:"tenantSlug"`
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

// Login checks credentials. The same e-mail may exist in several tenants;
// the tenant slug disambiguates.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("users.email = ?", email)
	if slug := strings.TrimSpace(in.TenantSlug); slug != "" {
		q = q.Joins("JOIN tenants ON tenants.id = users.tenant_id").Where("tenants.slug = ?", slug)
	}
	var users []models.User
	if err := q.Limit(2).Find(&users).Error; err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials.Error())
	}
	if len(users) > 1 {
		return nil, apperrors.Field("tenantSlug", "tenantSlug is required for this account")
	}
	user := users[0]
	if !CheckPasswordHash(in.Password, user.PasswordHash) {
		return nil, apperrors.Unauthorized(ErrInvalidCredentials.Error())
	}
	if user.Status != models.UserStatusActive {
		return nil, apperrors.Unauthorized("account is not active")
	}

	token, expires, err := s.IssueToken(&user)
	if err != nil {
		return nil, err
	}
	now := s.now()
	logAndContinue(s.logger, "record last login",
		s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error,
		zap.String("user_id", user.ID))
	user.LastLoginAt = &now
	return &LoginResult{Token: token, ExpiresAt: expires, User: &user}, nil
}

type RegisterInput struct {
	TenantSlug string  `json:"tenantSlug" binding:"required"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required"`
	FirstName  string  `json:"firstName" binding:"required"`
	LastName   string  `json:"lastName" binding:"required"`
	Phone      *string `json:"phone"`
}

// Register creates an active CLIENT account in an active tenant. The account
// sees no project until staff link it to an organization.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	fields := map[string][]string{}
	if email == "" {
		fields["email"] = append(fields["email"], "email is required")
	}
	if len(strings.TrimSpace(in.FirstName)) < 2 {
		fields["firstName"] = append(fields["firstName"], "first name must have at least 2 characters")
	}
	if len(strings.TrimSpace(in.LastName)) < 2 {
		fields["lastName"] = append(fields["lastName"], "last name must have at least 2 characters")
	}
	if len(in.Password) < minPasswordLength {
		fields["password"] = append(fields["password"], fmt.Sprintf("password must have at least %d characters", minPasswordLength))
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}

	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("slug = ? AND is_active = ?", strings.TrimSpace(in.TenantSlug), true).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Field("tenantSlug", "unknown tenant")
	}
	if err != nil {
		return nil, err
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ? AND email = ?", tenant.ID, email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.Conflict("a user with this e-mail already exists")
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        in.Phone,
		Role:         models.RoleClient,
		Status:       models.UserStatusActive,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("tenant_id", tenant.ID))
	return &user, nil
}

// ResetPassword consumes a reset or activation token. Pending accounts are
// activated on first use.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return apperrors.Field("token", "token is required")
	}
	if err := validatePassword("password", password); err != nil {
		return err
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Where("reset_token = ? AND reset_token_expires > ?", token, s.now()).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.Wrap(ErrInvalidToken, "invalid or expired token")
	}
	if err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	activating := user.Status == models.UserStatusPending
	updates := map[string]interface{}{
		"password_hash":       hash,
		"reset_token":         nil,
		"reset_token_expires": nil,
	}
	if activating {
		updates["status"] = models.UserStatusActive
		updates["email_verified_at"] = s.now()
	}
	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	if activating && s.emails != nil {
		logAndContinue(s.logger, "account activated e-mail",
			s.emails.SendAccountActivated(persistentContext(ctx), user.Email, user.FullName()),
			zap.String("user_id", user.ID))
	}
	return nil
}

// ForgotPassword e-mails a reset link when the address is known. Unknown
// addresses succeed silently.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("email = ? AND status IN ?", email, []models.UserStatus{models.UserStatusActive, models.UserStatusPending}).
		Find(&users).Error
	if err != nil {
		return err
	}
	for i := range users {
		user := &users[i]
		token, err := newResetToken()
		if err != nil {
			return err
		}
		if err := s.db.WithContext(ctx).Model(user).Updates(map[string]interface{}{
			"reset_token":         token,
			"reset_token_expires": s.now().Add(passwordResetTTL),
		}).Error; err != nil {
			return err
		}
		if s.emails == nil {
			continue
		}
		link := s.emails.FrontendLink("/reset-password?token=" + token)
		logAndContinue(s.logger, "password reset e-mail",
			s.emails.SendPasswordReset(persistentContext(ctx), user.Email, user.FullName(), link),
			zap.String("user_id", user.ID))
	}
	return nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	if err := validatePassword("newPassword", next); err != nil {
		return err
	}
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("user")
		}
		return err
	}
	if !CheckPasswordHash(current, user.PasswordHash) {
		return apperrors.Field("currentPassword", "current password is incorrect")
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&user).Update("password_hash", hash).Error
}

type Profile struct {
	User         *models.User         `json:"user"`
	Tenant       *models.Tenant       `json:"tenant,omitempty"`
	Organization *models.Organization `json:"organization,omitempty"`
}

func (s *AuthService) Me(ctx context.Context, userID string) (*Profile, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, err
	}
	profile := &Profile{User: &user}
	var tenant models.Tenant
	if err := s.db.WithContext(ctx).Where("id = ?", user.TenantID).First(&tenant).Error; err == nil {
		profile.Tenant = &tenant
	}
	if user.OrganizationID != nil {
		var org models.Organization
		if err := s.db.WithContext(ctx).Where("id = ?", *user.OrganizationID).First(&org).Error; err == nil {
			profile.Organization = &org
		}
	}
	return profile, nil
}
