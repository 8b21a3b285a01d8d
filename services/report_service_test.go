package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
)

func TestReportGeneratePublishAndVersions(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	llm := &fakeLLM{reply: "  The organization shows strong engagement.  "}
	mailer := &fakeMailer{}
	svc := NewReportService(db, ReportDeps{
		AI:     NewAIService(db, llm, "fake", nil),
		Emails: NewEmailService(mailer, "https://app.test", "", nil),
	})
	ctx := context.Background()

	report, err := svc.Generate(ctx, f.consultantActor(), GenerateReportInput{ProjectID: f.project.ID, Type: models.ReportFullDiagnostic, Title: "Diagnostic"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if report.Status != models.ReportStatusDraft || report.Version != 1 || deref(report.ExecutiveSummary) != "The organization shows strong engagement." {
		t.Fatalf("unexpected report %+v", report)
	}
	if !strings.Contains(llm.last().Messages[0].Content, f.project.Name) {
		t.Fatalf("prompt should carry project data")
	}

	reports, err := svc.ListByProject(ctx, f.clientActor(), f.project.ID)
	if err != nil || len(reports) != 0 {
		t.Fatalf("drafts are hidden from clients, got %d (%v)", len(reports), err)
	}
	if _, err := svc.Get(ctx, f.clientActor(), report.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected draft hidden, got %v", err)
	}

	updated, err := svc.UpdateSection(ctx, f.consultantActor(), report.ID, SectionActionPlan, "1. Hire two analysts")
	if err != nil || deref(updated.ActionPlan) != "1. Hire two analysts" {
		t.Fatalf("update section: %v", err)
	}
	if _, err := svc.UpdateSection(ctx, f.consultantActor(), report.ID, ReportSection("appendix"), "x"); err == nil {
		t.Fatalf("unknown section must fail")
	}

	published, err := svc.Publish(ctx, f.consultantActor(), report.ID)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if published.Status != models.ReportStatusPublished || published.Version != 2 || published.PublishedAt == nil {
		t.Fatalf("unexpected published report %+v", published)
	}
	if mailer.count() != 1 {
		t.Fatalf("expected report e-mail to the organization, got %d", mailer.count())
	}
	var notes int64
	db.Model(&models.Notification{}).Where("type = ?", models.NotificationReportGenerated).Count(&notes)
	if notes != 2 {
		t.Fatalf("expected client and consultant notified, got %d", notes)
	}

	versions, err := svc.Versions(ctx, f.clientActor(), report.ID)
	if err != nil || len(versions) != 1 {
		t.Fatalf("expected 1 version, got %d (%v)", len(versions), err)
	}
	if versions[0].Version != 1 || versions[0].ChangedBy != reportVersionAuthor {
		t.Fatalf("unexpected version %+v", versions[0])
	}
	if content := models.DecodeMap(versions[0].Content); content["actionPlan"] != "1. Hire two analysts" {
		t.Fatalf("snapshot missing section: %v", content)
	}
}

func TestPublishSurvivesMailFailure(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	mailer := &fakeMailer{err: errors.New("smtp down")}
	svc := NewReportService(db, ReportDeps{
		AI:     NewAIService(db, &fakeLLM{reply: "summary"}, "fake", nil),
		Emails: NewEmailService(mailer, "https://app.test", "", nil),
	})
	ctx := context.Background()

	report, err := svc.Generate(ctx, f.consultantActor(), GenerateReportInput{ProjectID: f.project.ID, Type: models.ReportExecutiveSummary, Title: "Summary"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := svc.Publish(ctx, f.consultantActor(), report.ID); err != nil {
		t.Fatalf("publish must not fail on e-mail errors: %v", err)
	}
}

func TestGenerateReportFailsWhenProviderFails(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewReportService(db, ReportDeps{AI: NewAIService(db, &fakeLLM{err: errors.New("quota")}, "fake", nil)})

	_, err := svc.Generate(context.Background(), f.consultantActor(), GenerateReportInput{ProjectID: f.project.ID, Type: models.ReportCustom, Title: "Custom"})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %v", err)
	}
	var n int64
	db.Model(&models.Report{}).Count(&n)
	if n != 0 {
		t.Fatalf("no report should be stored")
	}
}
