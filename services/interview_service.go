package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
)

const minTranscriptionLength = 10

var interviewFormats = map[string]bool{"IN_PERSON": true, "VIDEO_CALL": true, "PHONE": true}

type InterviewService struct {
	db            *gorm.DB
	storage       ObjectStorage
	signer        *URLSigner
	ai            *AIService
	notifications *NotificationService
	events        EventPublisher
	logger        *zap.Logger
}

type InterviewDeps struct {
	Storage       ObjectStorage
	Signer        *URLSigner
	AI            *AIService
	Notifications *NotificationService
	Events        EventPublisher
	Logger        *zap.Logger
}

func NewInterviewService(db *gorm.DB, deps InterviewDeps) *InterviewService {
	if db == nil {
		db = config.DB
	}
	logger := loggerOrDefault(deps.Logger)
	if deps.AI == nil {
		deps.AI = NewAIService(db, nil, "", logger)
	}
	if deps.Notifications == nil {
		deps.Notifications = NewNotificationService(db, logger)
	}
	if deps.Events == nil {
		deps.Events = NopPublisher{}
	}
	return &InterviewService{
		db:            db,
		storage:       deps.Storage,
		signer:        deps.Signer,
		ai:            deps.AI,
		notifications: deps.Notifications,
		events:        deps.Events,
		logger:        logger,
	}
}

// present hides identities from callers that may not see them.
func present(actor Actor, interview models.Interview) models.Interview {
	if actor.CanSeeConfidential() {
		return interview
	}
	return interview.Redacted()
}

func (s *InterviewService) ListByProject(ctx context.Context, actor Actor, projectID string) ([]models.Interview, error) {
	project, err := findProjectFor(ctx, s.db, actor, projectID)
	if err != nil {
		return nil, err
	}
	var rows []models.Interview
	err = s.db.WithContext(ctx).Where("project_id = ?", project.ID).Order("created_at DESC").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]models.Interview, 0, len(rows))
	for _, row := range rows {
		// list views never carry the transcript
		row.RawTranscription = nil
		out = append(out, present(actor, row))
	}
	return out, nil
}

func (s *InterviewService) find(ctx context.Context, actor Actor, id string) (*models.Interview, error) {
	var interview models.Interview
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&interview).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("interview")
	}
	if err != nil {
		return nil, err
	}
	if _, err := findProjectFor(ctx, s.db, actor, interview.ProjectID); err != nil {
		return nil, err
	}
	return &interview, nil
}

func (s *InterviewService) Get(ctx context.Context, actor Actor, id string) (*models.Interview, error) {
	interview, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.CanSeeConfidential() && s.signer != nil && interview.TranscriptionPath != nil {
		url, err := s.signer.URL(ctx, *interview.TranscriptionPath)
		logAndContinue(s.logger, "sign transcription url", err, zap.String("interview_id", interview.ID))
		interview.TranscriptionURL = url
	}
	out := present(actor, *interview)
	return &out, nil
}

type CreateInterviewInput struct {
	ProjectID        string  `json:"projectId"`
	IntervieweeName  string  `json:"intervieweeName"`
	IntervieweeRole  *string `json:"intervieweeRole"`
	IntervieweeEmail *string `json:"intervieweeEmail"`
	InterviewDate    *string `json:"interviewDate"`
	Duration         *int    `json:"duration"`
	Format           *string `json:"format"`
}

func (s *InterviewService) Create(ctx context.Context, actor Actor, in CreateInterviewInput) (*models.Interview, error) {
	fields := map[string][]string{}
	name := strings.TrimSpace(in.IntervieweeName)
	if len(name) < 2 {
		fields["intervieweeName"] = append(fields["intervieweeName"], "intervieweeName must have at least 2 characters")
	}
	if email := strings.TrimSpace(deref(in.IntervieweeEmail)); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			fields["intervieweeEmail"] = append(fields["intervieweeEmail"], "invalid e-mail")
		}
	}
	if in.Format != nil && !interviewFormats[*in.Format] {
		fields["format"] = append(fields["format"], "format must be IN_PERSON, VIDEO_CALL or PHONE")
	}
	if in.Duration != nil && *in.Duration < 0 {
		fields["duration"] = append(fields["duration"], "duration must not be negative")
	}
	var conducted *time.Time
	if raw := strings.TrimSpace(deref(in.InterviewDate)); raw != "" {
		t, err := parseDate(raw)
		if err != nil {
			fields["interviewDate"] = append(fields["interviewDate"], "interviewDate must be a date")
		} else {
			conducted = &t
		}
	}
	if len(fields) > 0 {
		return nil, apperrors.Validation(fields)
	}
	project, err := findProjectFor(ctx, s.db, actor, in.ProjectID)
	if err != nil {
		return nil, err
	}

	interview := models.Interview{
		ProjectID:        project.ID,
		UploadedByID:     actor.UserID,
		Title:            "Interview - " + name,
		Interviewee:      &name,
		IntervieweeRole:  strPtr(deref(in.IntervieweeRole)),
		IntervieweeEmail: strPtr(strings.ToLower(deref(in.IntervieweeEmail))),
		Format:           in.Format,
		ConductedAt:      conducted,
		Duration:         in.Duration,
	}
	if err := s.db.WithContext(ctx).Create(&interview).Error; err != nil {
		return nil, fmt.Errorf("create interview: %w", err)
	}
	return &interview, nil
}

// UploadTranscription stores the transcript text as an object and on the row.
func (s *InterviewService) UploadTranscription(ctx context.Context, actor Actor, id, transcription string) (*models.Interview, error) {
	transcription = strings.TrimSpace(transcription)
	if len(transcription) < minTranscriptionLength {
		return nil, apperrors.Field("transcription", "transcription is too short")
	}
	interview, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"raw_transcription": transcription,
		"status":            models.InterviewTranscribed,
	}
	var stored string
	if s.storage != nil {
		stored = ObjectKey("transcriptions/"+interview.ProjectID, interview.ID+".txt")
		if _, err := s.storage.Put(ctx, stored, strings.NewReader(transcription)); err != nil {
			return nil, fmt.Errorf("store transcription: %w", err)
		}
		updates["transcription_path"] = stored
	}
	if err := s.db.WithContext(ctx).Model(&models.Interview{}).Where("id = ?", interview.ID).Updates(updates).Error; err != nil {
		if stored != "" {
			logAndContinue(s.logger, "remove orphaned transcription", s.storage.Delete(persistentContext(ctx), stored), zap.String("key", stored))
		}
		return nil, err
	}
	if old := deref(interview.TranscriptionPath); old != "" && old != stored && s.storage != nil {
		logAndContinue(s.logger, "delete replaced transcription", s.storage.Delete(persistentContext(ctx), old), zap.String("key", old))
	}
	return s.Get(ctx, actor, interview.ID)
}

// Analyze sends the transcript to the LLM and stores the anonymized result.
func (s *InterviewService) Analyze(ctx context.Context, actor Actor, id string) (*models.Interview, error) {
	interview, err := s.find(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(deref(interview.RawTranscription)) == "" {
		return nil, apperrors.New("interview has no transcription to analyze")
	}
	analysis, err := s.ai.AnalyzeInterview(ctx, interview.ProjectID, *interview.RawTranscription)
	if err != nil {
		return nil, err
	}
	score := analysis.SentimentScore
	err = s.db.WithContext(ctx).Model(&models.Interview{}).Where("id = ?", interview.ID).Updates(map[string]interface{}{
		"analysis_result":    models.JSONMap(analysis),
		"key_themes":         models.JSONMap(analysis.Themes),
		"sentiment_score":    score,
		"anonymized_summary": strPtr(analysis.AnonymizedSummary),
		"status":             models.InterviewAnalyzed,
	}).Error
	if err != nil {
		return nil, err
	}

	bg := persistentContext(ctx)
	fields := []zap.Field{zap.String("interview_id", interview.ID)}
	project, err := findProjectFor(bg, s.db, SystemActor, interview.ProjectID)
	if err == nil {
		_, err = s.notifications.Notify(bg, []string{project.ConsultantID}, NotificationInput{
			Type:      models.NotificationInterviewAnalyzed,
			ProjectID: project.ID,
			Title:     "Interview analyzed",
			Message:   fmt.Sprintf("The analysis of %q is ready.", interview.Title),
			Link:      "/interviews/" + interview.ID,
		})
	}
	logAndContinue(s.logger, "interview analyzed notification", err, fields...)
	logAndContinue(s.logger, "publish interview analyzed", s.events.Publish(bg, Event{
		Type:      EventInterviewAnalyzed,
		ProjectID: interview.ProjectID,
		Data:      map[string]any{"interviewId": interview.ID, "sentimentScore": score},
	}), fields...)

	return s.Get(ctx, actor, interview.ID)
}

func (s *InterviewService) Delete(ctx context.Context, actor Actor, id string) error {
	interview, err := s.find(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Interview{}, "id = ?", interview.ID).Error; err != nil {
		return err
	}
	if path := deref(interview.TranscriptionPath); path != "" && s.storage != nil {
		logAndContinue(s.logger, "delete transcription", s.storage.Delete(persistentContext(ctx), path), zap.String("key", path))
	}
	return nil
}
