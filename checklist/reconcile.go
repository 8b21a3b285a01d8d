package checklist

import "strings"

// Item is the engine's view of a persisted checklist entry.
type Item struct {
	ID            string
	DocumentType  DocumentType
	Status        Status
	DocumentCount int
}

// OrganizationProfile carries the organization fields that can satisfy
// the mission/vision/values checklist entry.
type OrganizationProfile struct {
	Mission string
	Vision  string
	Values  string
}

func (p OrganizationProfile) HasMissionVisionValues() bool {
	return strings.TrimSpace(p.Mission) != "" ||
		strings.TrimSpace(p.Vision) != "" ||
		strings.TrimSpace(p.Values) != ""
}

// Signals are the external facts reconciliation folds into the checklist.
type Signals struct {
	Onboarding   map[string]string
	Organization OrganizationProfile
}

// Transition records a single item status change planned by Reconcile.
type Transition struct {
	ItemID       string
	DocumentType DocumentType
	From         Status
	To           Status
	Source       Source
}

// Plan is the outcome of a pure reconciliation.
type Plan struct {
	Items       []Item
	Transitions []Transition
	Progress    int
	// Measured is false when there are no items and progress must stay untouched.
	Measured bool
}

// Reconcile folds onboarding steps, organization fields and attached documents
// into items. Only PENDING items move, and only to UPLOADED. The input slice is
// not modified.
func Reconcile(items []Item, signals Signals) Plan {
	next := make([]Item, len(items))
	copy(next, items)

	var transitions []Transition
	mark := func(i int, source Source) {
		if next[i].Status != StatusPending {
			return
		}
		transitions = append(transitions, Transition{
			ItemID:       next[i].ID,
			DocumentType: next[i].DocumentType,
			From:         StatusPending,
			To:           StatusUploaded,
			Source:       source,
		})
		next[i].Status = StatusUploaded
	}

	satisfied := satisfiedByOnboarding(signals.Onboarding)
	for i := range next {
		if satisfied[next[i].DocumentType] {
			mark(i, SourceOnboardingSettings)
		}
	}

	if signals.Organization.HasMissionVisionValues() {
		for i := range next {
			if next[i].DocumentType == DocumentTypeMissionVisionValues {
				mark(i, SourceOrganizationProfile)
			}
		}
	}

	for i := range next {
		if next[i].DocumentCount > 0 {
			mark(i, SourceDocumentUpload)
		}
	}

	progress, measured := Progress(next)
	return Plan{
		Items:       next,
		Transitions: transitions,
		Progress:    progress,
		Measured:    measured,
	}
}

// satisfiedByOnboarding resolves truthy onboarding steps to document types.
// Unknown step ids are ignored.
func satisfiedByOnboarding(onboarding map[string]string) map[DocumentType]bool {
	out := make(map[DocumentType]bool)
	for step, value := range onboarding {
		if strings.TrimSpace(value) == "" {
			continue
		}
		for _, dt := range stepDocumentTypes[step] {
			out[dt] = true
		}
	}
	return out
}

// Progress returns round(100 * completed / total). ok is false for an empty list.
func Progress(items []Item) (progress int, ok bool) {
	total := len(items)
	if total == 0 {
		return 0, false
	}
	completed := 0
	for _, it := range items {
		if it.Status.Completed() {
			completed++
		}
	}
	// half-up rounding in integers
	return (200*completed + total) / (2 * total), true
}

// NextStage applies the single automatic stage edge.
func NextStage(current Stage, progress int) Stage {
	if current == StageOnboarding && progress >= 100 {
		return StageDocumentCollection
	}
	return current
}

// ValidStageTransition reports whether a manual stage change is acceptable.
// Manual changes may pick any workflow stage.
func ValidStageTransition(from, to Stage) bool {
	return from.Valid() && to.Valid()
}

// CanReview reports whether an item in status from may be reviewed into to.
// Only UPLOADED items are reviewable; a review outcome is final.
func CanReview(from, to Status) bool {
	if to != StatusValidated && to != StatusRejected {
		return false
	}
	return from == StatusUploaded
}
