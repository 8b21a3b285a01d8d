// Package checklist tracks document-checklist completion for a project and
// derives the project's progress and onboarding stage from it.
package checklist

import "strings"

// Status is the lifecycle state of a checklist item.
// PENDING -> UPLOADED -> VALIDATED | REJECTED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusUploaded  Status = "UPLOADED"
	StatusValidated Status = "VALIDATED"
	StatusRejected  Status = "REJECTED"
)

// Completed reports whether the item counts towards project progress.
func (s Status) Completed() bool {
	return s == StatusUploaded || s == StatusValidated
}

// Reviewed reports whether a reviewer already decided on the item.
func (s Status) Reviewed() bool {
	return s == StatusValidated || s == StatusRejected
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusUploaded, StatusValidated, StatusRejected:
		return true
	}
	return false
}

// DocumentType identifies a kind of document requested from the client.
type DocumentType string

const (
	DocumentTypeMissionVisionValues DocumentType = "MISSION_VISION_VALUES"
	DocumentTypeCultureFactors      DocumentType = "CULTURE_FACTORS"
	DocumentTypeOrganizationalChart DocumentType = "ORGANIZATIONAL_CHART"
	DocumentTypeGoalsObjectives     DocumentType = "GOALS_OBJECTIVES"
	DocumentTypeProductsServices    DocumentType = "PRODUCTS_SERVICES"
	DocumentTypeTeamList            DocumentType = "TEAM_LIST"
	DocumentTypePolicyManual        DocumentType = "POLICY_MANUAL"
	DocumentTypeFinancialData       DocumentType = "FINANCIAL_DATA"
	DocumentTypeOther               DocumentType = "OTHER"
)

var documentTypes = []DocumentType{
	DocumentTypeMissionVisionValues,
	DocumentTypeCultureFactors,
	DocumentTypeOrganizationalChart,
	DocumentTypeGoalsObjectives,
	DocumentTypeProductsServices,
	DocumentTypeTeamList,
	DocumentTypePolicyManual,
	DocumentTypeFinancialData,
	DocumentTypeOther,
}

// ParseDocumentType normalizes raw input into a known document type.
func ParseDocumentType(raw string) (DocumentType, bool) {
	candidate := DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, dt := range documentTypes {
		if dt == candidate {
			return dt, true
		}
	}
	return "", false
}

// Stage is the project's phase in the consulting workflow.
type Stage string

const (
	StageOnboarding          Stage = "ONBOARDING"
	StageDocumentCollection  Stage = "DOCUMENT_COLLECTION"
	StageSurveyDistribution  Stage = "SURVEY_DISTRIBUTION"
	StageInterviewProcessing Stage = "INTERVIEW_PROCESSING"
	StageAIAnalysis          Stage = "AI_ANALYSIS"
	StageReportGeneration    Stage = "REPORT_GENERATION"
	StageReview              Stage = "REVIEW"
	StageDelivered           Stage = "DELIVERED"
)

var stageOrder = []Stage{
	StageOnboarding,
	StageDocumentCollection,
	StageSurveyDistribution,
	StageInterviewProcessing,
	StageAIAnalysis,
	StageReportGeneration,
	StageReview,
	StageDelivered,
}

// Stages returns the workflow stages in order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Index returns the position of the stage in the workflow, or -1.
func (s Stage) Index() int {
	for i, st := range stageOrder {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Index() >= 0 }

// Source names the signal that moved a checklist item.
type Source string

const (
	SourceOnboardingSettings  Source = "ONBOARDING_SETTINGS"
	SourceOrganizationProfile Source = "ORGANIZATION_PROFILE"
	SourceDocumentUpload      Source = "DOCUMENT_UPLOAD"
	SourceTextAnswer          Source = "TEXT_ANSWER"
	SourceReview              Source = "REVIEW"
)
