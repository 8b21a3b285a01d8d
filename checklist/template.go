package checklist

// TemplateItem describes one entry of the default checklist seeded for new projects.
type TemplateItem struct {
	DocumentType DocumentType
	Instructions string
	Order        int
	IsRequired   bool
}

// defaultTemplate is the canonical checklist every project starts with.
// The step table below must only reference document types listed here.
var defaultTemplate = []TemplateItem{
	{DocumentType: DocumentTypeMissionVisionValues, Instructions: "Mission, vision and values of the company", Order: 1, IsRequired: true},
	{DocumentType: DocumentTypeCultureFactors, Instructions: "Cultural factors and organizational context", Order: 2, IsRequired: true},
	{DocumentType: DocumentTypeOrganizationalChart, Instructions: "Up-to-date organizational chart", Order: 3, IsRequired: true},
	{DocumentType: DocumentTypeGoalsObjectives, Instructions: "Current goals and objectives", Order: 4, IsRequired: false},
	{DocumentType: DocumentTypeProductsServices, Instructions: "Product and/or service portfolio", Order: 5, IsRequired: false},
	{DocumentType: DocumentTypeTeamList, Instructions: "Employee list (department and role)", Order: 6, IsRequired: true},
	{DocumentType: DocumentTypePolicyManual, Instructions: "Internal policy manual (if any)", Order: 7, IsRequired: false},
	{DocumentType: DocumentTypeFinancialData, Instructions: "Relevant financial data (if applicable)", Order: 8, IsRequired: false},
}

// Onboarding step ids stored under project settings.onboarding.
const (
	StepMissionVision = "mission-vision"
	StepCulture       = "culture"
	StepOrgChart      = "org-chart"
	StepFinancial     = "financial"
	StepGoals         = "goals"
	StepProducts      = "products"
	StepTeam          = "team"
)

// Values the onboarding UI writes for a step.
const (
	OnboardingCompletedViaUpload = "COMPLETED_VIA_UPLOAD"
	OnboardingSkipped            = "SKIPPED"
)

var stepDocumentTypes = map[string][]DocumentType{
	StepMissionVision: {DocumentTypeMissionVisionValues},
	StepCulture:       {DocumentTypeCultureFactors, DocumentTypePolicyManual},
	StepOrgChart:      {DocumentTypeOrganizationalChart},
	StepFinancial:     {DocumentTypeFinancialData},
	StepGoals:         {DocumentTypeGoalsObjectives},
	StepProducts:      {DocumentTypeProductsServices},
	StepTeam:          {DocumentTypeTeamList},
}

// DefaultTemplate returns a copy of the canonical checklist.
func DefaultTemplate() []TemplateItem {
	out := make([]TemplateItem, len(defaultTemplate))
	copy(out, defaultTemplate)
	return out
}

// StepIDs returns the known onboarding step ids in display order.
func StepIDs() []string {
	return []string{StepMissionVision, StepCulture, StepOrgChart, StepFinancial, StepGoals, StepProducts, StepTeam}
}

// IsStepID reports whether id is a known onboarding step.
func IsStepID(id string) bool {
	_, ok := stepDocumentTypes[id]
	return ok
}

// DocumentTypesForStep returns the document types satisfied by an onboarding step.
func DocumentTypesForStep(step string) []DocumentType {
	types := stepDocumentTypes[step]
	out := make([]DocumentType, len(types))
	copy(out, types)
	return out
}
