package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

var (
	slugPattern     = regexp.MustCompile(`^[a-z0-9-]+$`)
	slugInvalidRuns = regexp.MustCompile(`[^a-z0-9]+`)
	hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Slugify lowercases s, strips accents and joins words with dashes.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		plain = s
	}
	plain = slugInvalidRuns.ReplaceAllString(strings.ToLower(plain), "-")
	return strings.Trim(plain, "-")
}

// TenantAsset names a branding file a tenant may upload.
type TenantAsset string

const (
	TenantLogo    TenantAsset = "logo"
	TenantFavicon TenantAsset = "favicon"

	MaxTenantAssetSize = 2 << 20
)

var tenantAssetExtensions = map[TenantAsset]map[string]bool{
	TenantLogo:    {".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".webp": true},
	TenantFavicon: {".png": true, ".ico": true, ".svg": true},
}

func (a TenantAsset) column() string { return string(a) + "_path" }

// TenantAssetURL is the public link of a tenant's logo or favicon.
func TenantAssetURL(baseURL, tenantID string, asset TenantAsset) string {
	return strings.TrimRight(baseURL, "/") + "/api/public/tenants/" + tenantID + "/" + string(asset)
}

type TenantDeps struct {
	Storage ObjectStorage
	// PublicBaseURL prefixes the asset links returned with a tenant.
	PublicBaseURL string
	Logger        *zap.Logger
}

type TenantService struct {
	db      *gorm.DB
	storage ObjectStorage
	baseURL string
	logger  *zap.Logger
}

func NewTenantService(db *gorm.DB, deps TenantDeps) *TenantService {
	if db == nil {
		db = config.DB
	}
	return &TenantService{
		db:      db,
		storage: deps.Storage,
		baseURL: deps.PublicBaseURL,
		logger:  loggerOrDefault(deps.Logger),
	}
}

func (s *TenantService) present(t *models.Tenant) {
	if t.LogoPath != nil && *t.LogoPath != "" {
		t.LogoURL = TenantAssetURL(s.baseURL, t.ID, TenantLogo)
	}
	if t.FaviconPath != nil && *t.FaviconPath != "" {
		t.FaviconURL = TenantAssetURL(s.baseURL, t.ID, TenantFavicon)
	}
}

type TenantInput struct {
	Name           *string `json:"name"`
	Slug           *string `json:"slug"`
	Domain         *string `json:"domain"`
	PrimaryColor   *string `json:"primaryColor"`
	SecondaryColor *string `json:"secondaryColor"`
	AccentColor    *string `json:"accentColor"`
	IsActive       *bool   `json:"isActive"`
}

func (in TenantInput) validate(creating bool) map[string][]string {
	fields := map[string][]string{}
	if creating && (in.Name == nil || strings.TrimSpace(*in.Name) == "") {
		fields["name"] = append(fields["name"], "name is required")
	}
	if in.Slug != nil && !slugPattern.MatchString(*in.Slug) {
		fields["slug"] = append(fields["slug"], "slug may only contain lowercase letters, digits and dashes")
	}
	for name, value := range map[string]*string{
		"primaryColor":   in.PrimaryColor,
		"secondaryColor": in.SecondaryColor,
		"accentColor":    in.AccentColor,
	} {
		if value != nil && *value != "" && !hexColorPattern.MatchString(*value) {
			fields[name] = append(fields[name], "color must be #RRGGBB")
		}
	}
	return fields
}

func (s *TenantService) List(ctx context.Context) ([]models.Tenant, error) {
	tenants := []models.Tenant{}
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	for i := range tenants {
		s.present(&tenants[i])
	}
	return tenants, nil
}

func (s *TenantService) Get(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("tenant")
	}
	if err != nil {
		return nil, err
	}
	s.present(&tenant)
	return &tenant, nil
}

func (s *TenantService) slugTaken(ctx context.Context, slug, exceptID string) (bool, error) {
	var n int64
	q := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

func (s *TenantService) Create(ctx context.Context, in TenantInput) (*models.Tenant, error) {
	if in.Slug == nil && in.Name != nil {
		slug := Slugify(*in.Name)
		in.Slug = &slug
	}
	if fields := in.validate(true); len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	taken, err := s.slugTaken(ctx, *in.Slug, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, apperrors.Conflict("slug already in use")
	}

	tenant := models.Tenant{
		Name:     strings.TrimSpace(*in.Name),
		Slug:     *in.Slug,
		Domain:   in.Domain,
		IsActive: true,
	}
	applyTenantColors(&tenant, in)
	if in.IsActive != nil {
		tenant.IsActive = *in.IsActive
	}
	if err := s.db.WithContext(ctx).Create(&tenant).Error; err != nil {
		return nil, err
	}
	if in.IsActive != nil && !*in.IsActive {
		// gorm skips zero values that have a column default
		if err := s.db.WithContext(ctx).Model(&tenant).Update("is_active", false).Error; err != nil {
			return nil, err
		}
	}
	return &tenant, nil
}

func applyTenantColors(t *models.Tenant, in TenantInput) {
	if in.PrimaryColor != nil {
		t.PrimaryColor = *in.PrimaryColor
	}
	if in.SecondaryColor != nil {
		t.SecondaryColor = *in.SecondaryColor
	}
	if in.AccentColor != nil {
		t.AccentColor = *in.AccentColor
	}
}

func (s *TenantService) Update(ctx context.Context, id string, in TenantInput) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if fields := in.validate(false); len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		if strings.TrimSpace(*in.Name) == "" {
			return nil, apperrors.Field("name", "name must not be empty")
		}
		updates["name"] = strings.TrimSpace(*in.Name)
	}
	if in.Slug != nil && *in.Slug != tenant.Slug {
		taken, err := s.slugTaken(ctx, *in.Slug, tenant.ID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, apperrors.Conflict("slug already in use")
		}
		updates["slug"] = *in.Slug
	}
	if in.Domain != nil {
		updates["domain"] = *in.Domain
	}
	if in.PrimaryColor != nil {
		updates["primary_color"] = *in.PrimaryColor
	}
	if in.SecondaryColor != nil {
		updates["secondary_color"] = *in.SecondaryColor
	}
	if in.AccentColor != nil {
		updates["accent_color"] = *in.AccentColor
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(tenant).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, id)
}

// Delete removes a tenant that no longer owns organizations or users.
func (s *TenantService) Delete(ctx context.Context, id string) error {
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	var orgs, users int64
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).Where("tenant_id = ?", tenant.ID).Count(&orgs).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("tenant_id = ?", tenant.ID).Count(&users).Error; err != nil {
		return err
	}
	if orgs > 0 || users > 0 {
		return apperrors.Conflict("tenant still has organizations or users")
	}
	return s.db.WithContext(ctx).Delete(&models.Tenant{}, "id = ?", tenant.ID).Error
}

type TenantAssetUpload struct {
	FileName string
	Size     int64
	Body     io.Reader
}

// UploadAsset stores a new logo or favicon and points the tenant at it.
// The previous file is removed once the row is updated.
func (s *TenantService) UploadAsset(ctx context.Context, id string, asset TenantAsset, in TenantAssetUpload) (*models.Tenant, error) {
	allowed, known := tenantAssetExtensions[asset]
	if !known {
		return nil, apperrors.NotFound("tenant asset")
	}
	if s.storage == nil {
		return nil, errors.New("tenant storage not configured")
	}
	if in.Body == nil || in.FileName == "" {
		return nil, apperrors.Field("file", "file is required")
	}
	if in.Size > MaxTenantAssetSize {
		return nil, apperrors.Field("file", "file size exceeds 2MB limit")
	}
	if !allowed[strings.ToLower(filepath.Ext(in.FileName))] {
		return nil, apperrors.Field("file", "file type not allowed")
	}
	tenant, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	key := ObjectKey("tenants/"+tenant.ID+"/"+string(asset), in.FileName)
	written, err := s.storage.Put(ctx, key, io.LimitReader(in.Body, MaxTenantAssetSize+1))
	if err != nil {
		return nil, fmt.Errorf("store %s: %w", asset, err)
	}
	if written > MaxTenantAssetSize {
		logAndContinue(s.logger, "discard oversized tenant asset", s.storage.Delete(persistentContext(ctx), key))
		return nil, apperrors.Field("file", "file size exceeds 2MB limit")
	}

	previous := tenant.LogoPath
	if asset == TenantFavicon {
		previous = tenant.FaviconPath
	}
	if err := s.db.WithContext(ctx).Model(tenant).Update(asset.column(), key).Error; err != nil {
		logAndContinue(s.logger, "remove orphaned tenant asset", s.storage.Delete(persistentContext(ctx), key))
		return nil, err
	}
	if previous != nil && *previous != "" {
		logAndContinue(s.logger, "remove previous tenant asset",
			s.storage.Delete(persistentContext(ctx), *previous),
			zap.String("tenant_id", tenant.ID), zap.String("asset", string(asset)))
	}
	return s.Get(ctx, id)
}

// OpenAsset streams a tenant's logo or favicon. Branding is public.
func (s *TenantService) OpenAsset(ctx context.Context, id string, asset TenantAsset) (io.ReadCloser, string, error) {
	if _, known := tenantAssetExtensions[asset]; !known || s.storage == nil {
		return nil, "", apperrors.NotFound("tenant asset")
	}
	var paths []*string
	err := s.db.WithContext(ctx).Model(&models.Tenant{}).Where("id = ?", id).Pluck(asset.column(), &paths).Error
	if err != nil {
		return nil, "", err
	}
	if len(paths) == 0 || paths[0] == nil || *paths[0] == "" {
		return nil, "", apperrors.NotFound("tenant asset")
	}
	r, err := s.storage.Open(ctx, *paths[0])
	if err != nil {
		return nil, "", apperrors.NotFound("tenant asset")
	}
	return r, filepath.Base(*paths[0]), nil
}
