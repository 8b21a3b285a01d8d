// Command migrate creates or updates the schema and can bootstrap the first
// super admin of a fresh installation.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"

	"gorm.io/gorm"

	"diagnostics-api/config"
	"diagnostics-api/models"
	"diagnostics-api/services"
)

func main() {
	var (
		tenantName    string
		adminEmail    string
		adminPassword string
	)
	flag.StringVar(&tenantName, "tenant", "", "tenant to create for the admin (required with -admin-email)")
	flag.StringVar(&adminEmail, "admin-email", "", "e-mail of the super admin to create (optional)")
	flag.StringVar(&adminPassword, "admin-password", "", "initial password of the super admin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.AutoMigrate = false
	if err := config.InitDB(cfg); err != nil {
		log.Fatal(err)
	}

	if err := config.Migrate(config.DB); err != nil {
		log.Fatal(err)
	}
	log.Println("Schema migration completed")

	if strings.TrimSpace(adminEmail) == "" {
		return
	}
	if strings.TrimSpace(tenantName) == "" || len(adminPassword) < 8 {
		log.Fatal("-tenant and an -admin-password of at least 8 characters are required")
	}

	ctx := context.Background()
	tenant, err := ensureTenant(ctx, tenantName)
	if err != nil {
		log.Fatalf("tenant: %v", err)
	}

	email := strings.ToLower(strings.TrimSpace(adminEmail))
	var existing models.User
	err = config.DB.Where("tenant_id = ? AND email = ?", tenant.ID, email).First(&existing).Error
	if err == nil {
		log.Printf("User %s already exists, skipping\n", email)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Fatalf("lookup admin: %v", err)
	}

	hash, err := services.HashPassword(adminPassword)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	admin := models.User{
		TenantID:     tenant.ID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		Role:         models.RoleSuperAdmin,
		Status:       models.UserStatusActive,
	}
	if err := config.DB.Create(&admin).Error; err != nil {
		log.Fatalf("create admin: %v", err)
	}
	log.Printf("Created super admin %s in tenant %s\n", email, tenant.Slug)
}

func ensureTenant(ctx context.Context, name string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := config.DB.WithContext(ctx).Where("slug = ?", services.Slugify(name)).First(&tenant).Error
	if err == nil {
		return &tenant, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	return services.NewTenantService(config.DB, services.TenantDeps{}).Create(ctx, services.TenantInput{Name: &name})
}
