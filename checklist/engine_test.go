package checklist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type memStore struct {
	mu       sync.Mutex
	items    map[string][]Item
	projects map[string]ProjectState
	seedErr  error

	seedCalls int
	marks     int
	saves     int
	advances  int

	// beforeItems runs once, outside the lock, the next time Items is read.
	beforeItems func()
}

func newMemStore() *memStore {
	return &memStore{items: map[string][]Item{}, projects: map[string]ProjectState{}}
}

func (s *memStore) Items(_ context.Context, projectID string) ([]Item, error) {
	s.mu.Lock()
	hook := s.beforeItems
	s.beforeItems = nil
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items[projectID]))
	copy(out, s.items[projectID])
	return out, nil
}

func (s *memStore) Seed(_ context.Context, projectID string, template []TemplateItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedCalls++
	if s.seedErr != nil {
		return s.seedErr
	}
	existing := map[DocumentType]bool{}
	for _, it := range s.items[projectID] {
		existing[it.DocumentType] = true
	}
	for _, tpl := range template {
		if existing[tpl.DocumentType] {
			continue
		}
		s.items[projectID] = append(s.items[projectID], Item{
			ID:           fmt.Sprintf("%s-%s", projectID, tpl.DocumentType),
			DocumentType: tpl.DocumentType,
			Status:       StatusPending,
		})
	}
	return nil
}

func (s *memStore) MarkUploaded(_ context.Context, projectID string, t Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items[projectID] {
		if it.ID == t.ItemID && it.Status == t.From {
			s.items[projectID][i].Status = t.To
			s.marks++
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) Project(_ context.Context, projectID string) (ProjectState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return ProjectState{}, errors.New("project not found")
	}
	return p, nil
}

func (s *memStore) SaveProgress(_ context.Context, projectID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[projectID]
	p.Progress = progress
	s.projects[projectID] = p
	s.saves++
	return nil
}

func (s *memStore) AdvanceStage(_ context.Context, projectID string, from, to Stage) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok || p.Stage != from {
		return false, nil
	}
	p.Stage = to
	s.projects[projectID] = p
	s.advances++
	return true, nil
}

func (s *memStore) setStage(projectID string, stage Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[projectID]
	p.Stage = stage
	s.projects[projectID] = p
}

func (s *memStore) attachDocument(projectID string, dt DocumentType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, it := range s.items[projectID] {
		if it.DocumentType == dt {
			s.items[projectID][i].DocumentCount++
		}
	}
}

func (s *memStore) setOnboarding(projectID string, onboarding map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.projects[projectID]
	p.Onboarding = onboarding
	s.projects[projectID] = p
}

type memOrgs map[string]OrganizationProfile

func (m memOrgs) OrganizationProfile(_ context.Context, id string) (OrganizationProfile, error) {
	p, ok := m[id]
	if !ok {
		return OrganizationProfile{}, errors.New("organization not found")
	}
	return p, nil
}

func newTestEngine(orgs memOrgs) (*Engine, *memStore) {
	store := newMemStore()
	store.projects["p1"] = ProjectState{ID: "p1", OrganizationID: "o1", Stage: StageOnboarding}
	if orgs == nil {
		orgs = memOrgs{"o1": {}}
	}
	return NewEngine(store, orgs, nil), store
}

func TestEnsureChecklistSeedsOnce(t *testing.T) {
	engine, _ := newTestEngine(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			engine.EnsureChecklist(ctx, "p1")
		}()
	}
	wg.Wait()

	items := engine.EnsureChecklist(ctx, "p1")
	if len(items) != len(DefaultTemplate()) {
		t.Fatalf("expected %d items, got %d", len(DefaultTemplate()), len(items))
	}
	seen := map[DocumentType]bool{}
	for _, it := range items {
		if seen[it.DocumentType] {
			t.Fatalf("duplicate item for %s", it.DocumentType)
		}
		seen[it.DocumentType] = true
	}
}

func TestEnsureChecklistReturnsEmptyOnSeedFailure(t *testing.T) {
	engine, store := newTestEngine(nil)
	store.seedErr = errors.New("db down")

	items := engine.EnsureChecklist(context.Background(), "p1")
	if items == nil || len(items) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", items)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")
	store.attachDocument("p1", DocumentTypeTeamList)

	first, err := engine.Reconcile(ctx, "p1", map[string]string{StepGoals: "done"}, "")
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	if !first.Written || first.Progress != 25 {
		t.Fatalf("expected write with progress 25, got %#v", first)
	}
	marks, saves := store.marks, store.saves

	second, err := engine.Reconcile(ctx, "p1", map[string]string{StepGoals: "done"}, "")
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if second.Written || len(second.Transitions) != 0 {
		t.Fatalf("expected no writes on second run, got %#v", second)
	}
	if store.marks != marks || store.saves != saves {
		t.Fatalf("store was written again: marks %d->%d saves %d->%d", marks, store.marks, saves, store.saves)
	}
}

func TestReconcileSkipsProgressForEmptyChecklist(t *testing.T) {
	engine, store := newTestEngine(nil)
	store.projects["p1"] = ProjectState{ID: "p1", OrganizationID: "o1", Progress: 40, Stage: StageOnboarding}

	out, err := engine.Reconcile(context.Background(), "p1", nil, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Written || store.saves != 0 || out.Progress != 40 {
		t.Fatalf("expected stored progress untouched, got %#v", out)
	}
}

func TestReconcileAdvancesStageOnce(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")
	for _, tpl := range DefaultTemplate() {
		store.attachDocument("p1", tpl.DocumentType)
	}

	out, err := engine.Reconcile(ctx, "p1", nil, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Progress != 100 || out.Stage != StageDocumentCollection || !out.StageAdvanced() {
		t.Fatalf("expected advance to DOCUMENT_COLLECTION at 100, got %#v", out)
	}
	if store.saves != 1 || store.advances != 1 {
		t.Fatalf("expected one progress save and one advance, got %d saves %d advances", store.saves, store.advances)
	}

	again, err := engine.Reconcile(ctx, "p1", nil, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if again.StageAdvanced() || again.Written {
		t.Fatalf("expected no further advance, got %#v", again)
	}
}

func TestReconcileDoesNotAdvanceLaterStages(t *testing.T) {
	engine, store := newTestEngine(nil)
	store.projects["p1"] = ProjectState{ID: "p1", OrganizationID: "o1", Stage: StageReview}
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")
	for _, tpl := range DefaultTemplate() {
		store.attachDocument("p1", tpl.DocumentType)
	}

	out, err := engine.Reconcile(ctx, "p1", nil, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Stage != StageReview || out.Progress != 100 {
		t.Fatalf("expected REVIEW at 100, got %#v", out)
	}
}

func TestReconcileKeepsStageChangedMeanwhile(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")
	for _, tpl := range DefaultTemplate() {
		store.attachDocument("p1", tpl.DocumentType)
	}
	store.beforeItems = func() { store.setStage("p1", StageSurveyDistribution) }

	out, err := engine.Reconcile(ctx, "p1", map[string]string{StepTeam: OnboardingSkipped}, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.StageAdvanced() || out.Stage != StageOnboarding {
		t.Fatalf("expected no stage change reported, got %#v", out)
	}
	state, _ := store.Project(ctx, "p1")
	if state.Stage != StageSurveyDistribution {
		t.Fatalf("stage regressed to %s", state.Stage)
	}
	if state.Progress != 100 || !out.Written {
		t.Fatalf("expected progress saved, got %d", state.Progress)
	}
}

func TestOverlappingReconcilesAdvanceOnce(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")
	for _, tpl := range DefaultTemplate() {
		store.attachDocument("p1", tpl.DocumentType)
	}

	var inner Outcome
	var innerErr error
	store.beforeItems = func() {
		inner, innerErr = engine.Reconcile(ctx, "p1", nil, "")
	}

	outer, err := engine.Reconcile(ctx, "p1", nil, "")
	if err != nil || innerErr != nil {
		t.Fatalf("reconcile: %v %v", err, innerErr)
	}
	if !inner.StageAdvanced() {
		t.Fatalf("expected the first writer to advance, got %#v", inner)
	}
	if outer.StageAdvanced() {
		t.Fatalf("expected the second writer to see no advance, got %#v", outer)
	}
	if store.advances != 1 {
		t.Fatalf("expected one advance, got %d", store.advances)
	}
}

func TestOnboardingThenUploadsReachDocumentCollection(t *testing.T) {
	engine, store := newTestEngine(nil)
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")

	onboarding := map[string]string{
		StepMissionVision: OnboardingSkipped,
		StepTeam:          OnboardingCompletedViaUpload,
	}
	store.setOnboarding("p1", onboarding)

	out, err := engine.Reconcile(ctx, "p1", onboarding, "")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Progress != 25 || out.Stage != StageOnboarding {
		t.Fatalf("expected 25%% in ONBOARDING, got %d %s", out.Progress, out.Stage)
	}

	for _, dt := range []DocumentType{
		DocumentTypeCultureFactors,
		DocumentTypeOrganizationalChart,
		DocumentTypeGoalsObjectives,
		DocumentTypeProductsServices,
		DocumentTypePolicyManual,
		DocumentTypeFinancialData,
	} {
		store.attachDocument("p1", dt)
		if _, err := engine.Reconcile(ctx, "p1", nil, ""); err != nil {
			t.Fatalf("reconcile after %s: %v", dt, err)
		}
	}

	state, _ := store.Project(ctx, "p1")
	if state.Progress != 100 || state.Stage != StageDocumentCollection {
		t.Fatalf("expected 100%% in DOCUMENT_COLLECTION, got %d %s", state.Progress, state.Stage)
	}
}

func TestOrganizationMissionSatisfiesOneItem(t *testing.T) {
	engine, store := newTestEngine(memOrgs{"o1": {Mission: "Make work humane"}})
	ctx := context.Background()
	engine.EnsureChecklist(ctx, "p1")

	out, err := engine.Reconcile(ctx, "p1", nil, "o1")
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if out.Progress != 13 {
		t.Fatalf("expected 13, got %d", out.Progress)
	}
	if len(out.Transitions) != 1 || out.Transitions[0].Source != SourceOrganizationProfile {
		t.Fatalf("expected one organization transition, got %#v", out.Transitions)
	}
	items, _ := store.Items(ctx, "p1")
	if statusOf(items, DocumentTypeMissionVisionValues) != StatusUploaded {
		t.Fatalf("expected mission item uploaded")
	}
}

func TestReconcileReportsMissingProject(t *testing.T) {
	engine, _ := newTestEngine(nil)
	if _, err := engine.Reconcile(context.Background(), "missing", nil, ""); err == nil {
		t.Fatalf("expected error for unknown project")
	}
}
