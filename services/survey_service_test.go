package services

import (
	"context"
	"net/http"
	"testing"
	"time"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
)

func createClimateSurvey(t *testing.T, svc *SurveyService, f *fixture, anonymous bool) *models.Survey {
	t.Helper()
	kind := models.SurveyTypeClimate
	name := "Climate 2026"
	status := models.SurveyStatusActive
	optional := false
	survey, err := svc.Create(context.Background(), f.consultantActor(), SurveyInput{
		ProjectID:   f.project.ID,
		Type:        &kind,
		Name:        &name,
		Status:      &status,
		IsAnonymous: &anonymous,
		Questions: []QuestionInput{
			{Text: "How likely are you to recommend us?", Type: models.QuestionNPS},
			{Text: "Anything else?", Type: models.QuestionTextarea, IsRequired: &optional},
		},
		Sections: []SectionInput{{
			Title: "Leadership",
			Questions: []QuestionInput{
				{Text: "Preferred channel", Type: models.QuestionSingleChoice, Options: []string{"email", "chat"}},
			},
		}},
	})
	if err != nil {
		t.Fatalf("create survey: %v", err)
	}
	return survey
}

func surveyQuestions(s *models.Survey) (nps, comment, channel string) {
	for _, q := range s.Questions {
		switch q.Type {
		case models.QuestionNPS:
			nps = q.ID
		case models.QuestionTextarea:
			comment = q.ID
		}
	}
	channel = s.Sections[0].Questions[0].ID
	return
}

func fullAnswers(nps, channel string, score float64, choice string) []AnswerInput {
	return []AnswerInput{
		{QuestionID: nps, NumericValue: &score},
		{QuestionID: channel, Value: choice},
	}
}

func TestCreateSurveyBuildsStructure(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSurveyService(db, nil, nil, nil, nil)

	survey := createClimateSurvey(t, svc, f, true)
	if len(survey.AccessCode) == 0 || len(survey.Questions) != 2 || len(survey.Sections) != 1 {
		t.Fatalf("unexpected survey %+v", survey)
	}
	if len(survey.Sections[0].Questions) != 1 {
		t.Fatalf("expected section question")
	}

	public, err := svc.GetByAccessCode(context.Background(), survey.AccessCode)
	if err != nil || public.ID != survey.ID {
		t.Fatalf("lookup by access code: %v", err)
	}

	kind := models.SurveyTypeCustom
	_, err = svc.Create(context.Background(), f.consultantActor(), SurveyInput{ProjectID: f.project.ID, Type: &kind})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["name"] == nil {
		t.Fatalf("expected name validation, got %v", err)
	}
}

func TestRespondValidatesAnswers(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSurveyService(db, nil, nil, nil, nil)
	survey := createClimateSurvey(t, svc, f, true)
	nps, _, channel := surveyQuestions(survey)
	ctx := context.Background()

	_, err := svc.Respond(ctx, survey.AccessCode, "", RespondInput{Answers: []AnswerInput{{QuestionID: channel, Value: "email"}}})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["answers"] == nil {
		t.Fatalf("expected missing required answer, got %v", err)
	}

	_, err = svc.Respond(ctx, survey.AccessCode, "", RespondInput{Answers: fullAnswers(nps, channel, 11, "email")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected NPS range error, got %v", err)
	}

	_, err = svc.Respond(ctx, survey.AccessCode, "", RespondInput{Answers: []AnswerInput{{QuestionID: "nope", Value: "x"}}})
	if _, ok := apperrors.As(err); !ok {
		t.Fatalf("expected foreign question error, got %v", err)
	}

	resp, err := svc.Respond(ctx, survey.AccessCode, f.client.ID, RespondInput{Answers: fullAnswers(nps, channel, 9, "email")})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.Status != responseCompleted || resp.RespondentID != nil {
		t.Fatalf("anonymous response must not record respondent: %+v", resp)
	}

	var notes int64
	db.Model(&models.Notification{}).Where("user_id = ? AND type = ?", f.consultant.ID, models.NotificationSurveyCompleted).Count(&notes)
	if notes != 1 {
		t.Fatalf("expected consultant notification, got %d", notes)
	}
}

func TestRespondRejectsClosedSurvey(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSurveyService(db, nil, nil, nil, nil)
	survey := createClimateSurvey(t, svc, f, true)
	nps, _, channel := surveyQuestions(survey)

	closed := models.SurveyStatusClosed
	if _, err := svc.Update(context.Background(), f.consultantActor(), survey.ID, SurveyInput{Status: &closed}); err != nil {
		t.Fatalf("close: %v", err)
	}
	_, err := svc.Respond(context.Background(), survey.AccessCode, "", RespondInput{Answers: fullAnswers(nps, channel, 5, "chat")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 for closed survey, got %v", err)
	}
}

func TestInvitationsAreSingleUse(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	mailer := &fakeMailer{}
	svc := NewSurveyService(db, NewEmailService(mailer, "https://app.test", "", nil), nil, nil, nil)
	survey := createClimateSurvey(t, svc, f, false)
	nps, _, channel := surveyQuestions(survey)
	ctx := context.Background()

	n, err := svc.SendInvitations(ctx, f.consultantActor(), survey.ID, []string{"a@client.test", " A@client.test", "b@client.test"})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 invitations, got %d (%v)", n, err)
	}
	if mailer.count() != 2 {
		t.Fatalf("expected 2 e-mails, got %d", mailer.count())
	}
	n, err = svc.SendInvitations(ctx, f.consultantActor(), survey.ID, []string{"b@client.test", "c@client.test"})
	if err != nil || n != 1 {
		t.Fatalf("expected only the new address invited, got %d (%v)", n, err)
	}

	var inv models.SurveyInvitation
	if err := db.Where("survey_id = ? AND email = ?", survey.ID, "a@client.test").First(&inv).Error; err != nil {
		t.Fatalf("load invitation: %v", err)
	}
	if inv.SentAt == nil {
		t.Fatalf("sent_at not recorded")
	}

	resp, err := svc.Respond(ctx, survey.AccessCode, "", RespondInput{Token: inv.Token, Answers: fullAnswers(nps, channel, 7, "chat")})
	if err != nil {
		t.Fatalf("respond: %v", err)
	}
	if resp.InvitationID == nil || *resp.InvitationID != inv.ID {
		t.Fatalf("identified survey should link invitation")
	}
	_, err = svc.Respond(ctx, survey.AccessCode, "", RespondInput{Token: inv.Token, Answers: fullAnswers(nps, channel, 7, "chat")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409 on reuse, got %v", err)
	}
	_, err = svc.Respond(ctx, survey.AccessCode, "", RespondInput{Token: "bogus", Answers: fullAnswers(nps, channel, 7, "chat")})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["token"] == nil {
		t.Fatalf("expected token error, got %v", err)
	}

	stats, err := svc.Statistics(ctx, f.consultantActor(), survey.ID)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalInvitations != 3 || stats.TotalResponses != 1 || stats.ResponseRate != 33.33 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	for _, q := range stats.Questions {
		if q.QuestionID == nps && (q.Average == nil || *q.Average != 7) {
			t.Fatalf("expected NPS average 7, got %+v", q)
		}
		if q.QuestionID == channel && q.Choices["chat"] != 1 {
			t.Fatalf("expected one chat choice, got %+v", q.Choices)
		}
	}
}

func TestSendRemindersRespectsSpacingAndLimit(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	mailer := &fakeMailer{}
	svc := NewSurveyService(db, NewEmailService(mailer, "https://app.test", "", nil), nil, nil, nil)
	survey := createClimateSurvey(t, svc, f, true)
	ctx := context.Background()

	if _, err := svc.SendInvitations(ctx, f.consultantActor(), survey.ID, []string{"a@client.test", "b@client.test"}); err != nil {
		t.Fatalf("invite: %v", err)
	}
	n, err := svc.SendReminders(ctx, f.consultantActor(), survey.ID)
	if err != nil || n != 0 {
		t.Fatalf("fresh invitations must not be reminded, got %d (%v)", n, err)
	}

	old := time.Now().Add(-48 * time.Hour)
	db.Model(&models.SurveyInvitation{}).Where("survey_id = ?", survey.ID).Update("sent_at", old)
	db.Model(&models.SurveyInvitation{}).Where("email = ?", "b@client.test").Update("reminders_sent", maxSurveyReminders)

	n, err = svc.SendReminders(ctx, f.consultantActor(), survey.ID)
	if err != nil || n != 1 {
		t.Fatalf("expected 1 reminder, got %d (%v)", n, err)
	}
	var inv models.SurveyInvitation
	db.Where("email = ?", "a@client.test").First(&inv)
	if inv.RemindersSent != 1 || inv.LastReminderAt == nil {
		t.Fatalf("reminder not recorded: %+v", inv)
	}
}

func TestAnonymousResponsesHideRespondentAndFreezeQuestions(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewSurveyService(db, nil, nil, nil, nil)
	survey := createClimateSurvey(t, svc, f, true)
	nps, _, channel := surveyQuestions(survey)
	ctx := context.Background()

	if _, err := svc.Respond(ctx, survey.AccessCode, "", RespondInput{Answers: fullAnswers(nps, channel, 10, "email")}); err != nil {
		t.Fatalf("respond: %v", err)
	}
	// simulate a row written before the survey became anonymous
	respondent := f.client.ID
	db.Model(&models.SurveyResponse{}).Where("survey_id = ?", survey.ID).Update("respondent_id", respondent)

	responses, err := svc.Responses(ctx, f.consultantActor(), survey.ID)
	if err != nil || len(responses) != 1 {
		t.Fatalf("responses: %d (%v)", len(responses), err)
	}
	if responses[0].RespondentID != nil || len(responses[0].Answers) != 2 {
		t.Fatalf("unexpected response %+v", responses[0])
	}

	_, err = svc.Update(ctx, f.consultantActor(), survey.ID, SurveyInput{Questions: []QuestionInput{{Text: "New", Type: models.QuestionText}}})
	if appErr, ok := apperrors.As(err); !ok || appErr.Status != http.StatusConflict {
		t.Fatalf("expected 409, got %v", err)
	}

	if _, err := svc.Get(ctx, f.clientActor(), survey.ID); err != nil {
		t.Fatalf("client of the organization should read the survey: %v", err)
	}
	other := Actor{UserID: "x", TenantID: "other-tenant", Role: models.RoleConsultant}
	if _, err := svc.Get(ctx, other, survey.ID); !apperrors.IsNotFound(err) {
		t.Fatalf("expected not found for other tenant, got %v", err)
	}
}
