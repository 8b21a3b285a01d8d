package models

// All lists every model managed by AutoMigrate, parents first.
func All() []any {
	return []any{
		&Tenant{},
		&Organization{},
		&User{},
		&TeamMember{},
		&Project{},
		&ProjectActivity{},
		&DocumentChecklistItem{},
		&DocumentChecklistHistory{},
		&Document{},
		&Notification{},
		&Survey{},
		&SurveySection{},
		&SurveyQuestion{},
		&SurveyResponse{},
		&SurveyAnswer{},
		&SurveyInvitation{},
		&Interview{},
		&Report{},
		&ReportVersion{},
		&AIConversation{},
		&AIMessage{},
	}
}
