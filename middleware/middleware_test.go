package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool `json:"success"`
	Error   struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	} `json:"error"`
	Data map[string]any `json:"data"`
}

func perform(t *testing.T, r *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestErrorHandlerMapsErrors(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.GET("/missing", func(c *gin.Context) { _ = c.Error(apperrors.NotFound("project")) })
	r.GET("/conflict", func(c *gin.Context) { _ = c.Error(apperrors.Conflict("taken")) })
	r.GET("/record", func(c *gin.Context) { _ = c.Error(fmt.Errorf("load: %w", gorm.ErrRecordNotFound)) })
	r.GET("/boom", func(c *gin.Context) { _ = c.Error(errors.New("db exploded")) })
	r.GET("/llm", func(c *gin.Context) {
		_ = c.Error(apperrors.Unavailable("AI provider request failed", errors.New("secret detail")))
	})
	r.POST("/bind", func(c *gin.Context) {
		var in struct {
			Email string `json:"email" binding:"required,email"`
			Name  string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
			return
		}
		c.Status(http.StatusOK)
	})
	r.POST("/syntax", func(c *gin.Context) {
		var in map[string]any
		if err := c.ShouldBindJSON(&in); err != nil {
			_ = c.Error(err).SetType(gin.ErrorTypeBind)
		}
	})

	cases := []struct {
		method, path, body string
		status             int
		code               string
	}{
		{http.MethodGet, "/missing", "", http.StatusNotFound, apperrors.CodeNotFound},
		{http.MethodGet, "/conflict", "", http.StatusConflict, apperrors.CodeConflict},
		{http.MethodGet, "/record", "", http.StatusNotFound, apperrors.CodeNotFound},
		{http.MethodGet, "/boom", "", http.StatusInternalServerError, apperrors.CodeInternal},
		{http.MethodGet, "/llm", "", http.StatusServiceUnavailable, apperrors.CodeUnavailable},
		{http.MethodPost, "/bind", `{"email":"nope"}`, http.StatusUnprocessableEntity, apperrors.CodeValidation},
		{http.MethodPost, "/syntax", `{`, http.StatusUnprocessableEntity, apperrors.CodeValidation},
	}
	for _, tc := range cases {
		w, env := perform(t, r, tc.method, tc.path, tc.body, nil)
		if w.Code != tc.status || env.Success || env.Error.Code != tc.code {
			t.Fatalf("%s %s: got %d %+v", tc.method, tc.path, w.Code, env)
		}
	}

	_, env := perform(t, r, http.MethodPost, "/bind", `{"email":"nope"}`, nil)
	if env.Error.Errors["email"] == nil || env.Error.Errors["name"] == nil {
		t.Fatalf("expected field errors, got %+v", env.Error.Errors)
	}
	_, env = perform(t, r, http.MethodGet, "/boom", "", nil)
	if strings.Contains(env.Error.Message, "exploded") {
		t.Fatalf("internal errors must not leak: %q", env.Error.Message)
	}
	_, env = perform(t, r, http.MethodGet, "/llm", "", nil)
	if strings.Contains(env.Error.Message, "secret") {
		t.Fatalf("upstream detail leaked: %q", env.Error.Message)
	}
}

func TestCronSecret(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler(nil))
	r.POST("/cron", CronSecret("s3cret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	closed := gin.New()
	closed.Use(ErrorHandler(nil))
	closed.POST("/cron", CronSecret(""), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w, _ := perform(t, r, http.MethodPost, "/cron", "", map[string]string{"X-Cron-Secret": "s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w, _ := perform(t, r, http.MethodPost, "/cron", "", map[string]string{"X-Cron-Secret": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w, _ := perform(t, closed, http.MethodPost, "/cron", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("empty secret must reject, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware("http://app.test, http://admin.test/"))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w, _ := perform(t, r, http.MethodOptions, "/x", "", map[string]string{"Origin": "http://admin.test"})
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "http://admin.test" {
		t.Fatalf("unexpected preflight %d %v", w.Code, w.Header())
	}
	w, _ = perform(t, r, http.MethodGet, "/x", "", map[string]string{"Origin": "http://evil.test"})
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unknown origin must not be allowed")
	}
}

func newAuthFixture(t *testing.T) (*gorm.DB, *services.AuthService, models.User) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tenant := models.Tenant{Name: "Acme", Slug: "acme"}
	if err := db.Create(&tenant).Error; err != nil {
		t.Fatalf("tenant: %v", err)
	}
	user := models.User{
		TenantID: tenant.ID, Email: "carla@acme.test", PasswordHash: "x",
		Role: models.RoleConsultant, Status: models.UserStatusActive,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("user: %v", err)
	}
	return db, services.NewAuthService(db, "test-secret", 1, nil, nil), user
}

func TestAuthMiddlewareAndRoles(t *testing.T) {
	db, auth, user := newAuthFixture(t)
	token, _, err := auth.IssueToken(&user)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	r := gin.New()
	r.Use(ErrorHandler(nil))
	api := r.Group("/api", AuthMiddleware(auth))
	api.GET("/me", func(c *gin.Context) {
		actor := CurrentActor(c)
		c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"userId": actor.UserID, "role": actor.Role}})
	})
	api.GET("/admin", RequireRole(models.RoleAdmin, models.RoleSuperAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w, _ := perform(t, r, http.MethodGet, "/api/me", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", w.Code)
	}
	if w, _ := perform(t, r, http.MethodGet, "/api/me", "", map[string]string{"Authorization": token}); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing Bearer prefix: expected 401, got %d", w.Code)
	}

	bearer := map[string]string{"Authorization": "Bearer " + token}
	w, env := perform(t, r, http.MethodGet, "/api/me", "", bearer)
	if w.Code != http.StatusOK || env.Data["userId"] != user.ID || env.Data["role"] != string(models.RoleConsultant) {
		t.Fatalf("unexpected /me response %d %+v", w.Code, env)
	}
	if w, env := perform(t, r, http.MethodGet, "/api/admin", "", bearer); w.Code != http.StatusForbidden || env.Error.Code != apperrors.CodeForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	db.Model(&models.User{}).Where("id = ?", user.ID).Update("status", models.UserStatusInactive)
	if w, _ := perform(t, r, http.MethodGet, "/api/me", "", bearer); w.Code != http.StatusUnauthorized {
		t.Fatalf("inactive user: expected 401, got %d", w.Code)
	}
}
