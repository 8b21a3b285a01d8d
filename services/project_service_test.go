package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/checklist"
	"diagnostics-api/models"
)

var errFakeSMTP = errors.New("smtp down")

func newTestProjectService(db *gorm.DB, mailer Mailer) *ProjectService {
	return NewProjectService(db, ProjectDeps{
		Emails: NewEmailService(mailer, "https://app.test", "", nil),
	})
}

func TestCreateProjectOnboardsContactAsClient(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	contact := "Bea Boss"
	email := "Boss@Client.test"
	if err := db.Model(&f.org).Updates(map[string]interface{}{"contact_name": contact, "contact_email": email}).Error; err != nil {
		t.Fatalf("update org: %v", err)
	}

	mailer := &fakeMailer{}
	svc := newTestProjectService(db, mailer)
	project, err := svc.Create(context.Background(), f.consultantActor(), CreateProjectInput{
		OrganizationID: f.org.ID,
		Name:           "Culture diagnostics 2026",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(project.Code, "PRJ-") || project.Stage != checklist.StageOnboarding {
		t.Fatalf("unexpected project %+v", project)
	}
	if project.ConsultantID != f.consultant.ID {
		t.Fatalf("consultant should default to the creator")
	}
	if n := countItems(t, db, project.ID); n != 8 {
		t.Fatalf("expected seeded checklist, got %d items", n)
	}

	var client models.User
	if err := db.Where("email = ?", "boss@client.test").First(&client).Error; err != nil {
		t.Fatalf("client user not created: %v", err)
	}
	if client.Role != models.RoleClient || client.Status != models.UserStatusPending || client.FirstName != "Bea" {
		t.Fatalf("unexpected client user %+v", client)
	}
	if project.ClientUserID == nil || *project.ClientUserID != client.ID {
		t.Fatalf("project should link the client user")
	}
	if client.ResetToken == nil {
		t.Fatalf("pending client should get an activation token")
	}

	if mailer.count() != 1 || !strings.Contains(mailer.sent[0].html, "/reset-password?token="+*client.ResetToken) {
		t.Fatalf("welcome e-mail should carry the activation link")
	}

	var notes int64
	db.Model(&models.Notification{}).Where("project_id = ? AND type = ?", project.ID, models.NotificationProjectCreated).Count(&notes)
	if notes != 1 {
		t.Fatalf("expected one PROJECT_CREATED notification for the active org user, got %d", notes)
	}
}

func TestCreateProjectSurvivesMailFailure(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	email := "client@client.test"
	if err := db.Model(&f.org).Update("contact_email", email).Error; err != nil {
		t.Fatalf("update org: %v", err)
	}

	svc := newTestProjectService(db, &fakeMailer{err: errFakeSMTP})
	project, err := svc.Create(context.Background(), f.consultantActor(), CreateProjectInput{OrganizationID: f.org.ID, Name: "P"})
	if err != nil {
		t.Fatalf("create must not fail on e-mail errors: %v", err)
	}
	if project.ClientUserID == nil || *project.ClientUserID != f.client.ID {
		t.Fatalf("existing client user should be linked")
	}
	var reloaded models.User
	db.Where("id = ?", f.client.ID).First(&reloaded)
	if reloaded.ResetToken != nil {
		t.Fatalf("active users must not get a reset token")
	}
}

func TestCreateProjectValidatesInput(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := newTestProjectService(db, &fakeMailer{})

	_, err := svc.Create(context.Background(), f.consultantActor(), CreateProjectInput{OrganizationID: f.org.ID, Name: "  "})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
	_, err = svc.Create(context.Background(), f.consultantActor(), CreateProjectInput{OrganizationID: f.org.ID, Name: "P", ConsultantID: f.client.ID})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["consultantId"] == nil {
		t.Fatalf("expected consultantId error, got %v", err)
	}
}

func TestUpdateSettingsReconcilesChecklist(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := newTestProjectService(db, &fakeMailer{})
	ctx := context.Background()

	_, err := svc.Update(ctx, f.clientActor(), f.project.ID, UpdateProjectInput{
		Settings: map[string]any{"onboarding": map[string]any{"team": "COMPLETED_VIA_UPLOAD"}, "theme": "dark"},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := svc.Update(ctx, f.clientActor(), f.project.ID, UpdateProjectInput{
		Settings: map[string]any{"onboarding": map[string]any{"mission-vision": "SKIPPED"}},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Progress != 25 {
		t.Fatalf("expected 25%%, got %d", updated.Progress)
	}
	settings := updated.SettingsMap()
	if settings["theme"] != "dark" {
		t.Fatalf("settings should be merged, got %v", settings)
	}
	if onboarding := updated.Onboarding(); onboarding["team"] == "" || onboarding["mission-vision"] == "" {
		t.Fatalf("onboarding keys should be merged, got %v", onboarding)
	}
}

func TestClientCannotRenameProject(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := newTestProjectService(db, &fakeMailer{})

	name := "Renamed"
	_, err := svc.Update(context.Background(), f.clientActor(), f.project.ID, UpdateProjectInput{Name: &name})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", err)
	}
}

func TestUpdateRejectsUnknownStage(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := newTestProjectService(db, &fakeMailer{})

	stage := checklist.Stage("LAUNCH")
	_, err := svc.Update(context.Background(), f.consultantActor(), f.project.ID, UpdateProjectInput{Stage: &stage})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["stage"] == nil {
		t.Fatalf("expected stage validation error, got %v", err)
	}

	stage = checklist.StageReview
	updated, err := svc.Update(context.Background(), f.consultantActor(), f.project.ID, UpdateProjectInput{Stage: &stage})
	if err != nil {
		t.Fatalf("manual stage change: %v", err)
	}
	if updated.Stage != checklist.StageReview {
		t.Fatalf("expected REVIEW, got %s", updated.Stage)
	}
}

func TestListScopesClientsToTheirOrganization(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	other := models.Organization{TenantID: f.tenant.ID, Name: "Other"}
	mustCreate(t, db, &other)
	mustCreate(t, db, &models.Project{OrganizationID: other.ID, ConsultantID: f.consultant.ID, Code: "PRJ-OTHER", Name: "Other"})

	svc := newTestProjectService(db, &fakeMailer{})
	staff, err := svc.List(context.Background(), f.consultantActor(), ProjectFilter{})
	if err != nil || len(staff) != 2 {
		t.Fatalf("consultant should see 2 projects, got %d (%v)", len(staff), err)
	}
	client, err := svc.List(context.Background(), f.clientActor(), ProjectFilter{})
	if err != nil || len(client) != 1 || client[0].ID != f.project.ID {
		t.Fatalf("client should only see their project, got %d (%v)", len(client), err)
	}

	foreign := Actor{UserID: "x", TenantID: "another-tenant", Role: models.RoleAdmin}
	none, err := svc.List(context.Background(), foreign, ProjectFilter{})
	if err != nil || len(none) != 0 {
		t.Fatalf("other tenants must see nothing, got %d (%v)", len(none), err)
	}
}

func TestDeleteProjectRemovesDependents(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := newTestProjectService(db, &fakeMailer{})
	ctx := context.Background()
	svc.checklists.Ensure(ctx, f.project.ID)

	survey := models.Survey{ProjectID: f.project.ID, Type: models.SurveyTypeClimate, Name: "Climate", AccessCode: "ABCDEF12"}
	mustCreate(t, db, &survey)
	mustCreate(t, db, &models.SurveyQuestion{SurveyID: survey.ID, Text: "How?", Type: models.QuestionText})
	mustCreate(t, db, &models.ProjectActivity{ProjectID: f.project.ID, Action: "X"})

	if err := svc.Delete(ctx, f.consultantActor(), f.project.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var n int64
	db.Model(&models.Project{}).Where("id = ?", f.project.ID).Count(&n)
	if n != 0 {
		t.Fatalf("project not deleted")
	}
	if countItems(t, db, f.project.ID) != 0 {
		t.Fatalf("checklist items not deleted")
	}
	db.Model(&models.SurveyQuestion{}).Where("survey_id = ?", survey.ID).Count(&n)
	if n != 0 {
		t.Fatalf("survey questions not deleted")
	}
}

func TestUpdateTreatsProjectWithoutOrganizationAsMissing(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	if err := db.Exec("DELETE FROM organizations WHERE id = ?", f.org.ID).Error; err != nil {
		t.Fatalf("delete organization: %v", err)
	}

	svc := newTestProjectService(db, &fakeMailer{})
	admin := Actor{UserID: "root", Role: models.RoleSuperAdmin}
	for _, actor := range []Actor{admin, f.consultantActor()} {
		_, err := svc.Update(context.Background(), actor, f.project.ID, UpdateProjectInput{ConsultantID: &f.consultant.ID})
		if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusNotFound {
			t.Fatalf("expected 404 for %s, got %v", actor.Role, err)
		}
	}
}
