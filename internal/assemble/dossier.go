package assemble

import (
	"fmt"
	"strings"

	"github.com/pmajor/intake/utils"
)

// Dossier is the structured record the analysis stage synthesizes from the
// collected research. The JSON tags match the analysis prompt's contract.
type Dossier struct {
	Summary              string      `json:"summary"`
	CareerHighlights     []string    `json:"career_highlights"`
	KnownAssociates      []Associate `json:"known_associates"`
	ConversationStarters []string    `json:"conversation_starters"`
	RelationshipMap      []string    `json:"relationship_map"`
}

// Associate is one person connected to the meeting subject.
type Associate struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Direction string `json:"direction"` // e.g. reports-to, peer, former-colleague
}

// DossierDocument renders the meeting-preparation dossier. Optional sections
// are omitted when their data is empty; annotations are the strategic notes
// derived by the analysis stage.
func DossierDocument(fields map[string]any, d Dossier, annotations []string) string {
	person := utils.Str(fields["person"])
	company := utils.Str(fields["company"])

	var sections []section

	title := "MEETING PREPARATION DOSSIER: " + person
	if company != "" {
		title += " (" + company + ")"
	}
	if v := utils.Str(fields["meeting_date"]); v != "" {
		title += "\nMeeting date: " + v
	}
	if v := utils.Str(fields["purpose"]); v != "" {
		title += "\nPurpose: " + v
	}
	sections = append(sections, section{body: title})

	sections = append(sections, section{body: heading("PROFILE", d.Summary)})
	sections = append(sections, section{body: heading("CAREER HIGHLIGHTS", numberedList(d.CareerHighlights))})
	sections = append(sections, section{body: heading("KNOWN ASSOCIATES", associateList(d.KnownAssociates))})
	sections = append(sections, section{body: heading("RELATIONSHIP MAP", bulleted(d.RelationshipMap))})
	sections = append(sections, section{body: heading("CONVERSATION STARTERS", numberedList(d.ConversationStarters))})
	sections = append(sections, section{body: heading("STRATEGIC NOTES", numberedList(annotations))})

	sections = append(sections, section{body: "Prepared by the intake dossier agent. Verify all details before the meeting."})

	return joinSections(sections)
}

func associateList(associates []Associate) string {
	var lines []string
	for _, a := range associates {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		line := a.Name
		if a.Role != "" {
			line += ", " + a.Role
		}
		if a.Direction != "" {
			line += fmt.Sprintf(" (%s)", a.Direction)
		}
		lines = append(lines, line)
	}
	return bulleted(lines)
}
