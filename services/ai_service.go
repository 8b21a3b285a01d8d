package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"diagnostics-api/apperrors"
	"diagnostics-api/config"
	"diagnostics-api/models"
	"diagnostics-api/monitor"
)

const (
	purposeInterviewAnalysis = "interview_analysis"
	purposeAssistantChat     = "assistant_chat"
	chatHistoryLimit         = 20
	storedPromptLimit        = 1000
)

var ErrLLMDisabled = errors.New("llm provider is not configured")

type LLMMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type LLMRequest struct {
	System   string
	Messages []LLMMessage
	// JSON asks the provider for a single JSON object.
	JSON bool
}

type LLMResult struct {
	Content      string
	Model        string
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (*LLMResult, error)
}

// OpenAIClient calls the chat completions API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func NewOpenAIClient(apiKey, model string, opts ...option.RequestOption) *OpenAIClient {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIClient{client: openai.NewClient(opts...), model: model}
}

// NewLLMClient returns nil when no API key is configured.
func NewLLMClient(cfg *config.Config) LLMClient {
	if cfg == nil || strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return nil
	}
	return NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
}

func (c *OpenAIClient) Complete(ctx context.Context, req LLMRequest) (*LLMResult, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			messages = append(messages, openai.AssistantMessage(m.Content))
		default:
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("llm returned no choices")
	}
	return &LLMResult{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}, nil
}

type AIService struct {
	db     *gorm.DB
	llm    LLMClient
	model  string
	logger *zap.Logger
}

func NewAIService(db *gorm.DB, llm LLMClient, model string, logger *zap.Logger) *AIService {
	if db == nil {
		db = config.DB
	}
	return &AIService{db: db, llm: llm, model: model, logger: loggerOrDefault(logger).Named("ai")}
}

func (s *AIService) Enabled() bool { return s != nil && s.llm != nil }

// conversation returns the shared conversation of a project for purpose,
// creating it on first use.
func (s *AIService) conversation(ctx context.Context, projectID, purpose string) (*models.AIConversation, error) {
	var conv models.AIConversation
	err := s.db.WithContext(ctx).Where("project_id = ? AND purpose = ?", projectID, purpose).First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	conv = models.AIConversation{ProjectID: projectID, Purpose: purpose, Model: s.model}
	if err := s.db.WithContext(ctx).Create(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// complete runs req and records the exchange on conv. prompt is what gets
// stored as the user message.
func (s *AIService) complete(ctx context.Context, conv *models.AIConversation, prompt string, req LLMRequest) (*LLMResult, error) {
	if !s.Enabled() {
		return nil, apperrors.Unavailable("AI provider is not configured", ErrLLMDisabled)
	}
	started := time.Now()
	res, err := s.llm.Complete(ctx, req)
	if err != nil {
		monitor.RecordLLMCallLatency(conv.Purpose, "error", time.Since(started))
		s.logger.Warn("llm request failed", zap.String("purpose", conv.Purpose), zap.Error(err))
		return nil, apperrors.Unavailable("AI provider request failed", err)
	}
	monitor.RecordLLMCallLatency(conv.Purpose, "ok", time.Since(started))
	s.logger.Debug("llm request completed",
		zap.String("purpose", conv.Purpose),
		zap.Int64("tokens", res.TotalTokens),
		zap.Duration("elapsed", time.Since(started)))

	bg := persistentContext(ctx)
	err = s.db.WithContext(bg).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.AIConversation{}).Where("id = ?", conv.ID).
			Update("total_tokens_used", gorm.Expr("total_tokens_used + ?", res.TotalTokens)).Error; err != nil {
			return err
		}
		now := time.Now()
		msgs := []models.AIMessage{
			{ConversationID: conv.ID, Role: "user", Content: truncateRunes(prompt, storedPromptLimit), TokensUsed: res.InputTokens, CreatedAt: now},
			{ConversationID: conv.ID, Role: "assistant", Content: res.Content, TokensUsed: res.OutputTokens, CreatedAt: now.Add(time.Millisecond)},
		}
		return tx.Create(&msgs).Error
	})
	logAndContinue(s.logger, "record llm exchange", err, zap.String("conversation_id", conv.ID))
	return res, nil
}

type InterviewAnalysis struct {
	Sentiment         string   `json:"sentiment"`
	SentimentScore    float64  `json:"sentimentScore"`
	Themes            []string `json:"themes"`
	KeyInsights       []string `json:"keyInsights"`
	AnonymizedSummary string   `json:"anonymizedSummary"`
	ActionItems       []string `json:"actionItems"`
}

const interviewAnalysisPrompt = `You analyze transcripts of organizational diagnosis interviews.
Never identify the interviewee. Focus on behavior patterns and feelings, recurring themes and pain points.
Keep every quote anonymous and stay objective.
Answer with a single JSON object:
{"sentiment":"positive|neutral|negative|mixed","sentimentScore":0.0-1.0,"themes":[],"keyInsights":[],"anonymizedSummary":"","actionItems":[]}`

func (s *AIService) AnalyzeInterview(ctx context.Context, projectID, transcription string) (*InterviewAnalysis, error) {
	conv, err := s.conversation(ctx, projectID, purposeInterviewAnalysis)
	if err != nil {
		return nil, err
	}
	res, err := s.complete(ctx, conv, transcription, LLMRequest{
		System:   interviewAnalysisPrompt,
		Messages: []LLMMessage{{Role: "user", Content: "Analyze this interview transcript:\n\n" + transcription}},
		JSON:     true,
	})
	if err != nil {
		return nil, err
	}
	var analysis InterviewAnalysis
	if err := json.Unmarshal([]byte(extractJSON(res.Content)), &analysis); err != nil {
		return nil, apperrors.Unavailable("AI provider returned an invalid analysis", err)
	}
	if analysis.SentimentScore < 0 {
		analysis.SentimentScore = 0
	}
	if analysis.SentimentScore > 1 {
		analysis.SentimentScore = 1
	}
	return &analysis, nil
}

// extractJSON strips a markdown code fence around a JSON payload.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

type ReportSection string

const (
	SectionExecutiveSummary  ReportSection = "executive_summary"
	SectionCulturalAnalysis  ReportSection = "cultural_analysis"
	SectionClimateIndicators ReportSection = "climate_indicators"
	SectionQualitative       ReportSection = "qualitative_analysis"
	SectionActionPlan        ReportSection = "action_plan"
)

// Column returns the reports column holding the section.
func (r ReportSection) Column() (string, bool) {
	switch r {
	case SectionExecutiveSummary, SectionCulturalAnalysis, SectionClimateIndicators, SectionQualitative, SectionActionPlan:
		return string(r), true
	}
	return "", false
}

var sectionPrompts = map[ReportSection]string{
	SectionExecutiveSummary:  "Write a professional executive summary based on the data provided.",
	SectionCulturalAnalysis:  "Analyze the organizational culture based on the documents and surveys.",
	SectionClimateIndicators: "Summarize the organizational climate indicators as a narrative.",
	SectionQualitative:       "Summarize the qualitative findings of the interviews.",
	SectionActionPlan:        "Suggest an action plan for the problems identified.",
}

// GenerateReportSection drafts one report section from the project data.
func (s *AIService) GenerateReportSection(ctx context.Context, projectID string, section ReportSection, data map[string]any) (string, error) {
	prompt, ok := sectionPrompts[section]
	if !ok {
		return "", apperrors.Field("section", "unknown report section")
	}
	conv, err := s.conversation(ctx, projectID, "report_"+string(section))
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	res, err := s.complete(ctx, conv, string(payload), LLMRequest{
		System:   "You are an HR consultant specialized in organizational diagnosis.\n" + prompt + "\nWrite in a professional and objective tone.",
		Messages: []LLMMessage{{Role: "user", Content: string(payload)}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Content), nil
}

const assistantPrompt = `You are the AI assistant of an organizational diagnosis platform.
You help interpret climate and engagement surveys, suggest interview questions,
analyze patterns in employee feedback, recommend HR actions and draft executive reports.
Keep every piece of client data confidential and answer with clear, structured text.`

type ChatInput struct {
	ProjectID      string `json:"projectId"`
	ConversationID string `json:"conversationId"`
	Message        string `json:"message"`
}

type ChatReply struct {
	ConversationID string     `json:"conversationId"`
	Message        LLMMessage `json:"message"`
}

type ConversationSummary struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Chat sends one message to the assistant, continuing conversationID when
// it belongs to the actor.
func (s *AIService) Chat(ctx context.Context, actor Actor, in ChatInput) (*ChatReply, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return nil, apperrors.Field("message", "message is required")
	}

	var conv *models.AIConversation
	if in.ConversationID != "" {
		found, err := s.ownConversation(ctx, actor, in.ConversationID)
		if err != nil {
			return nil, err
		}
		conv = found
	} else {
		project, err := findProjectFor(ctx, s.db, actor, in.ProjectID)
		if err != nil {
			return nil, err
		}
		conv = &models.AIConversation{
			ProjectID: project.ID,
			Purpose:   purposeAssistantChat,
			Model:     s.model,
			Metadata:  models.JSONMap(map[string]any{"userId": actor.UserID}),
		}
		if err := s.db.WithContext(ctx).Create(conv).Error; err != nil {
			return nil, err
		}
	}

	var history []models.AIMessage
	err := s.db.WithContext(ctx).Where("conversation_id = ?", conv.ID).
		Order("created_at DESC").Limit(chatHistoryLimit).Find(&history).Error
	if err != nil {
		return nil, err
	}
	req := LLMRequest{System: assistantPrompt}
	for i := len(history) - 1; i >= 0; i-- {
		req.Messages = append(req.Messages, LLMMessage{Role: history[i].Role, Content: history[i].Content})
	}
	req.Messages = append(req.Messages, LLMMessage{Role: "user", Content: message})

	res, err := s.complete(ctx, conv, message, req)
	if err != nil {
		return nil, err
	}
	content := strings.TrimSpace(res.Content)
	if content == "" {
		content = "Sorry, I could not process your message."
	}
	return &ChatReply{ConversationID: conv.ID, Message: LLMMessage{Role: "assistant", Content: content}}, nil
}

func (s *AIService) ownConversation(ctx context.Context, actor Actor, id string) (*models.AIConversation, error) {
	var conv models.AIConversation
	err := s.db.WithContext(ctx).Where("id = ? AND purpose = ?", id, purposeAssistantChat).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFound("conversation")
	}
	if err != nil {
		return nil, err
	}
	if owner, _ := models.DecodeMap(conv.Metadata)["userId"].(string); owner != actor.UserID {
		return nil, apperrors.NotFound("conversation")
	}
	return &conv, nil
}

// Conversations lists the actor's 20 most recent assistant chats.
func (s *AIService) Conversations(ctx context.Context, actor Actor) ([]ConversationSummary, error) {
	var convs []models.AIConversation
	err := s.db.WithContext(ctx).Where("purpose = ?", purposeAssistantChat).
		Order("updated_at DESC").Find(&convs).Error
	if err != nil {
		return nil, err
	}
	out := []ConversationSummary{}
	for _, c := range convs {
		if owner, _ := models.DecodeMap(c.Metadata)["userId"].(string); owner != actor.UserID {
			continue
		}
		summary := ConversationSummary{ID: c.ID, ProjectID: c.ProjectID, UpdatedAt: c.UpdatedAt}
		var last models.AIMessage
		if err := s.db.WithContext(ctx).Where("conversation_id = ?", c.ID).Order("created_at DESC").First(&last).Error; err == nil {
			summary.LastMessage = truncateRunes(last.Content, 100)
			summary.UpdatedAt = last.CreatedAt
		}
		out = append(out, summary)
		if len(out) == chatHistoryLimit {
			break
		}
	}
	return out, nil
}

func (s *AIService) Messages(ctx context.Context, actor Actor, conversationID string) ([]models.AIMessage, error) {
	conv, err := s.ownConversation(ctx, actor, conversationID)
	if err != nil {
		return nil, err
	}
	msgs := []models.AIMessage{}
	err = s.db.WithContext(ctx).Where("conversation_id = ?", conv.ID).Order("created_at ASC").Find(&msgs).Error
	return msgs, err
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
