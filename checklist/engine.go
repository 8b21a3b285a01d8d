package checklist

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ProjectState is the slice of a project the engine reads and writes.
type ProjectState struct {
	ID             string
	OrganizationID string
	Progress       int
	Stage          Stage
	Onboarding     map[string]string
}

// Store persists checklist items and project progress.
type Store interface {
	Items(ctx context.Context, projectID string) ([]Item, error)
	// Seed creates the template items that do not exist yet, atomically.
	Seed(ctx context.Context, projectID string, template []TemplateItem) error
	// MarkUploaded applies t only if the item is still in t.From.
	// It reports whether a row changed.
	MarkUploaded(ctx context.Context, projectID string, t Transition) (bool, error)
	Project(ctx context.Context, projectID string) (ProjectState, error)
	SaveProgress(ctx context.Context, projectID string, progress int) error
	// AdvanceStage moves the project to the next stage only if it is still
	// in from. It reports whether a row changed.
	AdvanceStage(ctx context.Context, projectID string, from, to Stage) (bool, error)
}

type OrganizationReader interface {
	OrganizationProfile(ctx context.Context, organizationID string) (OrganizationProfile, error)
}

// Outcome summarizes one reconciliation run.
type Outcome struct {
	ProjectID        string
	PreviousProgress int
	Progress         int
	PreviousStage    Stage
	Stage            Stage
	Transitions      []Transition
	Items            []Item
	Written          bool
}

func (o Outcome) StageAdvanced() bool { return o.Stage != o.PreviousStage }

type Engine struct {
	store  Store
	orgs   OrganizationReader
	logger *zap.Logger
}

func NewEngine(store Store, orgs OrganizationReader, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, orgs: orgs, logger: logger}
}

var tracer = otel.Tracer("diagnostics-api/checklist")

// EnsureChecklist returns the project's checklist, seeding the default
// template when none exists. Failures are logged and yield an empty list.
func (e *Engine) EnsureChecklist(ctx context.Context, projectID string) []Item {
	items, err := e.store.Items(ctx, projectID)
	if err != nil {
		e.logger.Error("load checklist failed", zap.String("project_id", projectID), zap.Error(err))
		return []Item{}
	}
	if len(items) > 0 {
		return items
	}

	if err := e.store.Seed(ctx, projectID, DefaultTemplate()); err != nil {
		e.logger.Error("seed checklist failed", zap.String("project_id", projectID), zap.Error(err))
		return []Item{}
	}
	items, err = e.store.Items(ctx, projectID)
	if err != nil {
		e.logger.Error("reload checklist failed", zap.String("project_id", projectID), zap.Error(err))
		return []Item{}
	}
	e.logger.Info("checklist seeded", zap.String("project_id", projectID), zap.Int("items", len(items)))
	return items
}

// Reconcile re-derives item statuses from the current signals, then progress
// and stage, and persists whatever changed. A nil onboarding map means the
// project's stored settings are used; an empty organizationID means the
// project's own organization.
func (e *Engine) Reconcile(ctx context.Context, projectID string, onboarding map[string]string, organizationID string) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "checklist.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("project.id", projectID))

	out, err := e.reconcile(ctx, projectID, onboarding, organizationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, err
	}
	span.SetAttributes(
		attribute.Int("checklist.transitions", len(out.Transitions)),
		attribute.Int("project.progress", out.Progress),
		attribute.String("project.stage", string(out.Stage)),
	)
	return out, nil
}

func (e *Engine) reconcile(ctx context.Context, projectID string, onboarding map[string]string, organizationID string) (Outcome, error) {
	state, err := e.store.Project(ctx, projectID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load project %s: %w", projectID, err)
	}
	out := Outcome{
		ProjectID:        projectID,
		PreviousProgress: state.Progress,
		Progress:         state.Progress,
		PreviousStage:    state.Stage,
		Stage:            state.Stage,
	}

	if onboarding == nil {
		onboarding = state.Onboarding
	}
	if organizationID == "" {
		organizationID = state.OrganizationID
	}

	var profile OrganizationProfile
	if organizationID != "" && e.orgs != nil {
		profile, err = e.orgs.OrganizationProfile(ctx, organizationID)
		if err != nil {
			return out, fmt.Errorf("load organization %s: %w", organizationID, err)
		}
	}

	items, err := e.store.Items(ctx, projectID)
	if err != nil {
		return out, fmt.Errorf("load checklist %s: %w", projectID, err)
	}

	plan := Reconcile(items, Signals{Onboarding: onboarding, Organization: profile})
	out.Items = plan.Items

	for _, t := range plan.Transitions {
		changed, err := e.store.MarkUploaded(ctx, projectID, t)
		if err != nil {
			return out, fmt.Errorf("mark %s uploaded: %w", t.DocumentType, err)
		}
		if changed {
			out.Transitions = append(out.Transitions, t)
		}
	}

	if !plan.Measured {
		return out, nil
	}

	if plan.Progress != state.Progress {
		if err := e.store.SaveProgress(ctx, projectID, plan.Progress); err != nil {
			return out, fmt.Errorf("save progress %s: %w", projectID, err)
		}
		out.Progress = plan.Progress
		out.Written = true
	}

	if stage := NextStage(state.Stage, plan.Progress); stage != state.Stage {
		advanced, err := e.store.AdvanceStage(ctx, projectID, state.Stage, stage)
		if err != nil {
			return out, fmt.Errorf("advance stage %s: %w", projectID, err)
		}
		if advanced {
			out.Stage = stage
			out.Written = true
		}
	}

	if !out.Written {
		return out, nil
	}
	e.logger.Info("project progress updated",
		zap.String("project_id", projectID),
		zap.Int("progress", out.Progress),
		zap.String("stage", string(out.Stage)),
		zap.Int("transitions", len(out.Transitions)),
	)
	return out, nil
}
