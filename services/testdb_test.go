package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"diagnostics-api/checklist"
	"diagnostics-api/models"
)

// newTestDB opens a private in-memory SQLite database with every table migrated.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	tenant     models.Tenant
	org        models.Organization
	consultant models.User
	client     models.User
	project    models.Project
}

func (f *fixture) consultantActor() Actor {
	return Actor{UserID: f.consultant.ID, TenantID: f.tenant.ID, Email: f.consultant.Email, Role: models.RoleConsultant}
}

func (f *fixture) clientActor() Actor {
	return Actor{UserID: f.client.ID, TenantID: f.tenant.ID, OrganizationID: f.org.ID, Email: f.client.Email, Role: models.RoleClient}
}

// seedFixture creates a tenant, an organization, a consultant, an active
// client user and one project in ONBOARDING.
func seedFixture(t *testing.T, db *gorm.DB) *fixture {
	t.Helper()
	f := &fixture{}
	f.tenant = models.Tenant{Name: "Acme Consulting", Slug: "acme-" + uuid.NewString()[:8], PrimaryColor: "#112233"}
	mustCreate(t, db, &f.tenant)

	f.org = models.Organization{TenantID: f.tenant.ID, Name: "Client Co"}
	mustCreate(t, db, &f.org)

	f.consultant = models.User{
		TenantID: f.tenant.ID, Email: "consultant@acme.test", PasswordHash: "x",
		FirstName: "Carla", LastName: "Consultant", Role: models.RoleConsultant, Status: models.UserStatusActive,
	}
	mustCreate(t, db, &f.consultant)

	f.client = models.User{
		TenantID: f.tenant.ID, OrganizationID: &f.org.ID, Email: "client@client.test", PasswordHash: "x",
		FirstName: "Cleo", LastName: "Client", Role: models.RoleClient, Status: models.UserStatusActive,
	}
	mustCreate(t, db, &f.client)

	end := time.Now().Add(30 * 24 * time.Hour)
	f.project = models.Project{
		OrganizationID: f.org.ID,
		ConsultantID:   f.consultant.ID,
		ClientUserID:   &f.client.ID,
		Code:           "PRJ-" + uuid.NewString()[:8],
		Name:           "Diagnostics",
		Stage:          checklist.StageOnboarding,
		TargetEndDate:  &end,
	}
	mustCreate(t, db, &f.project)
	return f
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}
