package services

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Consultoria Ação & Gestão": "consultoria-acao-gestao",
		"  Acme  ":                  "acme",
		"Über--Firm 2":              "uber-firm-2",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateTenantDerivesSlugAndRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	svc := NewTenantService(db, TenantDeps{})
	ctx := context.Background()

	name := "Ação Consulting"
	tenant, err := svc.Create(ctx, TenantInput{Name: &name})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tenant.Slug != "acao-consulting" || !tenant.IsActive {
		t.Fatalf("unexpected tenant %+v", tenant)
	}

	_, err = svc.Create(ctx, TenantInput{Name: &name})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	bad := "Bad Slug"
	_, err = svc.Create(ctx, TenantInput{Name: &name, Slug: &bad})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["slug"] == nil {
		t.Fatalf("expected slug validation error, got %v", err)
	}
}

func TestDeleteTenantRequiresEmptyTenant(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewTenantService(db, TenantDeps{})

	err := svc.Delete(context.Background(), f.tenant.ID)
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	empty := models.Tenant{Name: "Empty", Slug: "empty"}
	mustCreate(t, db, &empty)
	if err := svc.Delete(context.Background(), empty.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestUploadTenantLogoReplacesFileAndBrandsEmails(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := NewTenantService(db, TenantDeps{Storage: storage, PublicBaseURL: "https://api.test/"})
	ctx := context.Background()

	first, err := svc.UploadAsset(ctx, f.tenant.ID, TenantLogo, TenantAssetUpload{FileName: "logo.png", Size: 3, Body: strings.NewReader("v1!")})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	wantURL := "https://api.test/api/public/tenants/" + f.tenant.ID + "/logo"
	if first.LogoURL != wantURL || first.LogoPath == nil {
		t.Fatalf("unexpected tenant %+v", first)
	}
	oldKey := *first.LogoPath

	if _, err := svc.UploadAsset(ctx, f.tenant.ID, TenantLogo, TenantAssetUpload{FileName: "logo.svg", Size: 3, Body: strings.NewReader("v2!")}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, err := storage.Open(ctx, oldKey); err == nil {
		t.Fatalf("previous logo should be removed")
	}
	r, name, err := svc.OpenAsset(ctx, f.tenant.ID, TenantLogo)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	body, _ := io.ReadAll(r)
	_ = r.Close()
	if string(body) != "v2!" || !strings.HasSuffix(name, ".svg") {
		t.Fatalf("unexpected asset %q %q", body, name)
	}

	mailer := &fakeMailer{}
	emails := NewEmailService(mailer, "https://app.test", "https://cdn.test/platform.png", nil).WithAssetBaseURL("https://api.test")
	reminders := NewOnboardingReminderService(db, emails, "", nil)
	if err := reminders.SendForProject(ctx, f.consultantActor(), f.project.ID); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if mailer.count() != 1 || !strings.Contains(mailer.sent[0].html, wantURL) || !strings.Contains(mailer.sent[0].html, "#112233") {
		t.Fatalf("expected tenant logo and color in e-mail")
	}
	if strings.Contains(mailer.sent[0].html, "platform.png") {
		t.Fatalf("tenant logo should replace the platform logo")
	}
}

func TestUploadTenantAssetValidatesFile(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	storage, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	svc := NewTenantService(db, TenantDeps{Storage: storage})
	ctx := context.Background()

	_, err = svc.UploadAsset(ctx, f.tenant.ID, TenantFavicon, TenantAssetUpload{FileName: "icon.jpg", Size: 1, Body: strings.NewReader("x")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["file"] == nil {
		t.Fatalf("expected file validation error, got %v", err)
	}
	_, err = svc.UploadAsset(ctx, f.tenant.ID, TenantLogo, TenantAssetUpload{FileName: "big.png", Size: MaxTenantAssetSize + 1, Body: strings.NewReader("x")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for oversized file, got %v", err)
	}
	if _, _, err := svc.OpenAsset(ctx, f.tenant.ID, TenantFavicon); !apperrors.IsNotFound(err) {
		t.Fatalf("expected 404 without favicon, got %v", err)
	}
	if _, err := svc.UploadAsset(ctx, f.tenant.ID, TenantFavicon, TenantAssetUpload{FileName: "icon.ico", Size: 1, Body: strings.NewReader("x")}); err != nil {
		t.Fatalf("favicon upload: %v", err)
	}
	tenant, err := svc.Get(ctx, f.tenant.ID)
	if err != nil || tenant.FaviconURL == "" || tenant.LogoURL != "" {
		t.Fatalf("expected favicon link only, got %+v (%v)", tenant, err)
	}
}

func TestOrganizationUpdateReconcilesProjects(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	checklists := newTestChecklistService(db)
	checklists.Ensure(context.Background(), f.project.ID)
	svc := NewOrganizationService(db, checklists, nil)

	mission := "Serve every client well"
	org, err := svc.Update(context.Background(), f.consultantActor(), f.org.ID, OrganizationInput{Mission: &mission})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if org.Mission == nil || *org.Mission != mission {
		t.Fatalf("mission not saved")
	}
	if p := loadProject(t, db, f.project.ID); p.Progress != 13 {
		t.Fatalf("expected 13%% after mission update, got %d", p.Progress)
	}
}

func TestOrganizationTaxIDConflict(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewOrganizationService(db, nil, nil)
	ctx := context.Background()

	name, tax := "First", "12.345.678/0001-90"
	if _, err := svc.Create(ctx, f.consultantActor(), OrganizationInput{Name: &name, TaxID: &tax}); err != nil {
		t.Fatalf("create: %v", err)
	}
	second := "Second"
	_, err := svc.Create(ctx, f.consultantActor(), OrganizationInput{Name: &second, TaxID: &tax})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}
}

func TestImportTeamMembersSkipsDuplicates(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewOrganizationService(db, nil, nil)
	ctx := context.Background()

	hire := "2024-03-01"
	members := []TeamMemberInput{
		{Name: "Ana", Email: "ana@client.test", HireDate: &hire},
		{Name: "Bruno", Email: "bruno@client.test"},
	}
	n, err := svc.ImportTeamMembers(ctx, f.consultantActor(), f.org.ID, members)
	if err != nil || n != 2 {
		t.Fatalf("expected 2 imported, got %d (%v)", n, err)
	}
	n, err = svc.ImportTeamMembers(ctx, f.consultantActor(), f.org.ID, append(members, TeamMemberInput{Name: "Caio", Email: "CAIO@client.test"}))
	if err != nil || n != 1 {
		t.Fatalf("expected 1 imported on second run, got %d (%v)", n, err)
	}
	list, err := svc.TeamMembers(ctx, f.clientActor(), f.org.ID)
	if err != nil || len(list) != 3 {
		t.Fatalf("expected 3 members, got %d (%v)", len(list), err)
	}
}

func TestUserServiceCreateInvitesPendingUser(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	mailer := &fakeMailer{}
	svc := NewUserService(db, NewEmailService(mailer, "https://app.test", "", nil), nil)
	admin := Actor{UserID: f.consultant.ID, TenantID: f.tenant.ID, Role: models.RoleAdmin}

	user, err := svc.Create(context.Background(), admin, CreateUserInput{Email: "Staff@Acme.test", FirstName: "Sam", Role: models.RoleConsultant})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Status != models.UserStatusPending || user.Email != "staff@acme.test" || user.ResetToken == nil {
		t.Fatalf("unexpected user %+v", user)
	}
	if mailer.count() != 1 {
		t.Fatalf("expected invitation e-mail")
	}

	_, err = svc.Create(context.Background(), admin, CreateUserInput{Email: "staff@acme.test", FirstName: "Sam", Role: models.RoleConsultant})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	_, err = svc.Create(context.Background(), admin, CreateUserInput{Email: "root@acme.test", FirstName: "R", Role: models.RoleSuperAdmin})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["role"] == nil {
		t.Fatalf("admins cannot create super admins, got %v", err)
	}
}
