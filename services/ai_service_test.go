package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"

	"diagnostics-api/apperrors"
	"diagnostics-api/models"
)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	requests []LLMRequest
}

func (f *fakeLLM) Complete(_ context.Context, req LLMRequest) (*LLMResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &LLMResult{Content: f.reply, Model: "fake", InputTokens: 3, OutputTokens: 4, TotalTokens: 7}, nil
}

func (f *fakeLLM) last() LLMRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func TestChatKeepsHistoryPerConversation(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	llm := &fakeLLM{reply: "Start with a climate survey."}
	svc := NewAIService(db, llm, "fake", nil)
	ctx := context.Background()

	first, err := svc.Chat(ctx, f.consultantActor(), ChatInput{ProjectID: f.project.ID, Message: "Where do I start?"})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if first.Message.Content != llm.reply {
		t.Fatalf("unexpected reply %+v", first)
	}

	if _, err := svc.Chat(ctx, f.consultantActor(), ChatInput{ConversationID: first.ConversationID, Message: "And then?"}); err != nil {
		t.Fatalf("second chat: %v", err)
	}
	if got := len(llm.last().Messages); got != 3 {
		t.Fatalf("expected two history messages plus the new one, got %d", got)
	}

	msgs, err := svc.Messages(ctx, f.consultantActor(), first.ConversationID)
	if err != nil || len(msgs) != 4 {
		t.Fatalf("expected 4 stored messages, got %d (%v)", len(msgs), err)
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("messages out of order: %s, %s", msgs[0].Role, msgs[1].Role)
	}

	var conv models.AIConversation
	db.Where("id = ?", first.ConversationID).First(&conv)
	if conv.TotalTokens != 14 {
		t.Fatalf("expected 14 tokens, got %d", conv.TotalTokens)
	}

	convs, err := svc.Conversations(ctx, f.consultantActor())
	if err != nil || len(convs) != 1 || convs[0].LastMessage != llm.reply {
		t.Fatalf("unexpected conversations %+v (%v)", convs, err)
	}

	other := Actor{UserID: f.client.ID, TenantID: f.tenant.ID, OrganizationID: f.org.ID, Role: models.RoleClient}
	if _, err := svc.Messages(ctx, other, first.ConversationID); !apperrors.IsNotFound(err) {
		t.Fatalf("conversations are private, got %v", err)
	}
}

func TestChatWithoutProviderIsUnavailable(t *testing.T) {
	db := newTestDB(t)
	f := seedFixture(t, db)
	svc := NewAIService(db, nil, "", nil)

	_, err := svc.Chat(context.Background(), f.consultantActor(), ChatInput{ProjectID: f.project.ID, Message: "hi"})
	appErr, ok := apperrors.As(err)
	if !ok || appErr.Status != http.StatusServiceUnavailable || !errors.Is(err, ErrLLMDisabled) {
		t.Fatalf("expected 503, got %v", err)
	}

	_, err = svc.Chat(context.Background(), f.consultantActor(), ChatInput{ProjectID: f.project.ID})
	if appErr, ok := apperrors.As(err); !ok || appErr.Fields["message"] == nil {
		t.Fatalf("expected message validation, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                  "{\"a\":1}",
		"```json\n{\"a\":1}\n```":    "{\"a\":1}",
		"Here you go: {\"a\":{}} ok": "{\"a\":{}}",
		"no json":                    "no json",
	}
	for in, want := range cases {
		if got := extractJSON(in); got != want {
			t.Fatalf("extractJSON(%q) = %q, want %q", in, got, want)
		}
	}
}
