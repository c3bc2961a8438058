package pipeline

import (
	"github.com/pmajor/intake/internal/schema"
)

// Agent names. Each agent pairs a field schema with a generation pipeline.
const (
	AgentApplication = "application"
	AgentDossier     = "dossier"
)

// ContextField is the designated free-text field that accumulates extra
// context supplied at start time and through the refresh operation. It is the
// only field that may change after a session reaches the generated state.
const ContextField = "context"

// applicationSchema describes the government-information access application.
func applicationSchema() *schema.Schema {
	return schema.New(AgentApplication, []schema.Field{
		{Name: "agency", Question: "Which agency or department holds the information you are after?", Priority: 1},
		{Name: "applicant_name", Question: "What is your full name, as it should appear on the application?", Priority: 2},
		{Name: "subject", Question: "Describe the information you are seeking.", Priority: 3},
		{Name: "keywords", Question: "List the key terms or topics the records should cover.", Priority: 4},
		{Name: "date_range", Question: "What period should the application cover?", Priority: 5},
		{Name: "applicant_category", Question: "Which applicant category applies to you (individual, pensioner, student, non-profit, corporate)?", Priority: 6},
		{Name: "agency_email", Question: "What is the information-access contact email for {agency}?", DependsOn: "agency"},
		{Name: "proof_of_category", Question: "What evidence supports your {applicant_category} status?", DependsOn: "applicant_category",
			AllowedValues: []string{"pensioner", "student", "non-profit", "financial hardship"}},
	})
}

var applicationRequired = []string{"agency", "applicant_name", "subject"}

var applicationWarnings = map[string]string{
	"applicant_address": "no destination address provided",
	"applicant_email":   "no applicant email provided; the agency cannot reply electronically",
}

// dossierSchema describes the meeting-preparation dossier agent.
func dossierSchema() *schema.Schema {
	return schema.New(AgentDossier, []schema.Field{
		{Name: "person", Question: "Who are you meeting?", Priority: 1},
		{Name: "company", Question: "Which company or organisation are they with?", Priority: 2},
		{Name: "purpose", Question: "What is the purpose of the meeting?", Priority: 3},
	})
}

var dossierRequired = []string{"person"}

var dossierWarnings = map[string]string{
	"meeting_date": "no meeting date provided",
}

// readyNotice is what the caller relays once nothing is missing.
func readyNotice(agent string) string {
	switch agent {
	case AgentDossier:
		return "All required details are collected. You can generate the dossier."
	default:
		return "All required details are collected. You can generate the application."
	}
}
