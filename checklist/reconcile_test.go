package checklist

import "testing"

func templateItems() []Item {
	tpl := DefaultTemplate()
	items := make([]Item, len(tpl))
	for i, t := range tpl {
		items[i] = Item{ID: string(t.DocumentType), DocumentType: t.DocumentType, Status: StatusPending}
	}
	return items
}

func statusOf(items []Item, dt DocumentType) Status {
	for _, it := range items {
		if it.DocumentType == dt {
			return it.Status
		}
	}
	return ""
}

func TestProgressRoundsHalfUp(t *testing.T) {
	cases := []struct {
		completed, total, want int
	}{
		{0, 8, 0},
		{1, 8, 13},
		{2, 8, 25},
		{3, 8, 38},
		{1, 3, 33},
		{2, 3, 67},
		{8, 8, 100},
	}
	for _, tc := range cases {
		items := make([]Item, tc.total)
		for i := range items {
			items[i].Status = StatusPending
			if i < tc.completed {
				items[i].Status = StatusValidated
			}
		}
		got, ok := Progress(items)
		if !ok {
			t.Fatalf("expected progress to be measured for %d items", tc.total)
		}
		if got != tc.want {
			t.Fatalf("Progress(%d/%d) = %d, want %d", tc.completed, tc.total, got, tc.want)
		}
	}

	if _, ok := Progress(nil); ok {
		t.Fatalf("expected empty checklist to be unmeasured")
	}
}

func TestProgressIgnoresRejectedItems(t *testing.T) {
	items := []Item{
		{Status: StatusUploaded},
		{Status: StatusRejected},
		{Status: StatusPending},
		{Status: StatusValidated},
	}
	got, _ := Progress(items)
	if got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}
}

func TestReconcileMapsOnboardingStepsToDocumentTypes(t *testing.T) {
	plan := Reconcile(templateItems(), Signals{Onboarding: map[string]string{
		StepCulture: "we value candor",
		StepGoals:   "  ",
		"unknown":   OnboardingSkipped,
	}})

	if statusOf(plan.Items, DocumentTypeCultureFactors) != StatusUploaded {
		t.Fatalf("expected culture factors uploaded")
	}
	if statusOf(plan.Items, DocumentTypePolicyManual) != StatusUploaded {
		t.Fatalf("expected policy manual uploaded via culture step")
	}
	if statusOf(plan.Items, DocumentTypeGoalsObjectives) != StatusPending {
		t.Fatalf("expected blank goals step to be ignored")
	}
	if len(plan.Transitions) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(plan.Transitions))
	}
	for _, tr := range plan.Transitions {
		if tr.Source != SourceOnboardingSettings || tr.From != StatusPending || tr.To != StatusUploaded {
			t.Fatalf("unexpected transition %#v", tr)
		}
	}
	if plan.Progress != 25 {
		t.Fatalf("expected 25, got %d", plan.Progress)
	}
}

func TestReconcileOnlyPromotesPendingItems(t *testing.T) {
	items := templateItems()
	items[0].Status = StatusRejected
	items[0].DocumentCount = 2
	items[1].Status = StatusValidated

	plan := Reconcile(items, Signals{
		Onboarding:   map[string]string{StepMissionVision: OnboardingCompletedViaUpload, StepCulture: OnboardingSkipped},
		Organization: OrganizationProfile{Mission: "Serve"},
	})

	if plan.Items[0].Status != StatusRejected {
		t.Fatalf("rejected item must stay rejected, got %s", plan.Items[0].Status)
	}
	if plan.Items[1].Status != StatusValidated {
		t.Fatalf("validated item must stay validated, got %s", plan.Items[1].Status)
	}
	for _, it := range plan.Items {
		if !it.Status.Valid() {
			t.Fatalf("invalid status %q", it.Status)
		}
	}
	if items[6].Status != StatusPending {
		t.Fatalf("input slice must not be modified")
	}
}

func TestReconcileIsMonotonic(t *testing.T) {
	items := templateItems()
	items[2].DocumentCount = 1
	first := Reconcile(items, Signals{Onboarding: map[string]string{StepTeam: "yes"}})

	// Dropping every signal must not move anything back.
	second := Reconcile(first.Items, Signals{})
	for i := range first.Items {
		if first.Items[i].Status.Completed() && !second.Items[i].Status.Completed() {
			t.Fatalf("item %s regressed", first.Items[i].DocumentType)
		}
	}
	if len(second.Transitions) != 0 {
		t.Fatalf("expected no transitions, got %d", len(second.Transitions))
	}
	if second.Progress < first.Progress {
		t.Fatalf("progress decreased from %d to %d", first.Progress, second.Progress)
	}
}

func TestReconcileRecordsFirstSourceOnly(t *testing.T) {
	items := templateItems()
	items[0].DocumentCount = 1

	plan := Reconcile(items, Signals{
		Onboarding:   map[string]string{StepMissionVision: OnboardingCompletedViaUpload},
		Organization: OrganizationProfile{Vision: "Lead"},
	})
	if len(plan.Transitions) != 1 {
		t.Fatalf("expected one transition, got %d", len(plan.Transitions))
	}
	if plan.Transitions[0].Source != SourceOnboardingSettings {
		t.Fatalf("expected onboarding source, got %s", plan.Transitions[0].Source)
	}
}

func TestNextStage(t *testing.T) {
	if got := NextStage(StageOnboarding, 100); got != StageDocumentCollection {
		t.Fatalf("expected DOCUMENT_COLLECTION, got %s", got)
	}
	if got := NextStage(StageOnboarding, 99); got != StageOnboarding {
		t.Fatalf("expected ONBOARDING, got %s", got)
	}
	if got := NextStage(StageReview, 100); got != StageReview {
		t.Fatalf("expected REVIEW to be kept, got %s", got)
	}
	if got := NextStage(StageDocumentCollection, 20); got != StageDocumentCollection {
		t.Fatalf("stage must not regress, got %s", got)
	}
}

func TestCanReview(t *testing.T) {
	if CanReview(StatusPending, StatusValidated) {
		t.Fatalf("pending item must not be reviewable")
	}
	if !CanReview(StatusUploaded, StatusRejected) {
		t.Fatalf("uploaded item should be reviewable")
	}
	if CanReview(StatusRejected, StatusValidated) || CanReview(StatusValidated, StatusRejected) {
		t.Fatalf("reviewed item must keep its outcome")
	}
	if CanReview(StatusUploaded, StatusPending) {
		t.Fatalf("review must not target PENDING")
	}
}

func TestParseDocumentType(t *testing.T) {
	if dt, ok := ParseDocumentType(" team_list "); !ok || dt != DocumentTypeTeamList {
		t.Fatalf("expected TEAM_LIST, got %q %v", dt, ok)
	}
	if _, ok := ParseDocumentType("PASSPORT"); ok {
		t.Fatalf("expected unknown type to be rejected")
	}
}

func TestStepTableReferencesTemplateTypes(t *testing.T) {
	inTemplate := map[DocumentType]bool{}
	for _, tpl := range DefaultTemplate() {
		inTemplate[tpl.DocumentType] = true
	}
	for _, step := range StepIDs() {
		for _, dt := range DocumentTypesForStep(step) {
			if !inTemplate[dt] {
				t.Fatalf("step %s maps to %s which is not in the template", step, dt)
			}
		}
	}
}
