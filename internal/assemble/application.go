package assemble

import (
	"fmt"
	"strings"

	"github.com/pmajor/intake/internal/schema"
	"github.com/pmajor/intake/utils"
)

// Categories whose declared applicant qualifies for the 50% processing-charge
// reduction paragraph.
var feeReductionCategories = map[string]bool{
	"pensioner":          true,
	"student":            true,
	"non-profit":         true,
	"financial hardship": true,
}

// Application renders the formal government-information access application.
// expansions are the keyword inclusion clauses produced by the term expander,
// one per collected keyword.
func Application(fields map[string]any, expansions []string) string {
	agency := utils.Str(fields["agency"])
	name := utils.Str(fields["applicant_name"])

	var sections []section

	sections = append(sections, section{body: fmt.Sprintf(
		"FORMAL ACCESS APPLICATION\n\nTo: %s\n\nThis is an application for access to government information under the applicable information access legislation.", agency)})

	var details []string
	details = append(details, "Name: "+name)
	if v := utils.Str(fields["applicant_address"]); v != "" {
		details = append(details, "Postal address: "+v)
	}
	if v := utils.Str(fields["applicant_email"]); v != "" {
		details = append(details, "Email: "+v)
	}
	sections = append(sections, section{body: heading("APPLICANT", bulleted(details))})

	sections = append(sections, section{body: heading("INFORMATION SOUGHT", scopeBody(fields, expansions))})

	if feeReductionEligible(fields) {
		sections = append(sections, section{body: fmt.Sprintf(
			"PROCESSING CHARGE REDUCTION\n\nThe applicant is a %s and applies for a 50%% reduction of any processing charge on that basis.",
			strings.ToLower(utils.Str(fields["applicant_category"])))})
	}

	if v := utils.Str(fields["agency_email"]); v != "" {
		sections = append(sections, section{body: heading("LODGEMENT", "This application is directed to: "+v)})
	}

	// The accumulated free-text context is part of the application body, so a
	// context refresh regenerates a visibly different document.
	if v := utils.Str(fields["context"]); strings.TrimSpace(v) != "" {
		sections = append(sections, section{body: heading("ADDITIONAL CONTEXT",
			"The applicant provides the following context in support of this application:\n\n"+strings.TrimSpace(v))})
	}

	sections = append(sections, section{body: fmt.Sprintf(
		"DECLARATION\n\nI declare that the information provided in this application is true and correct.\n\n%s", name)})

	return joinSections(sections)
}

func scopeBody(fields map[string]any, expansions []string) string {
	var b strings.Builder
	if v := utils.Str(fields["subject"]); v != "" {
		fmt.Fprintf(&b, "%s\n\n", v)
	}
	if v := utils.Str(fields["date_range"]); v != "" {
		fmt.Fprintf(&b, "Period covered: %s\n\n", v)
	}
	keywords := utils.StrList(fields["keywords"])
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "The scope of this application covers the following terms:\n%s", numberedList(keywords))
	}
	if len(expansions) > 0 {
		var clauses []string
		for _, e := range expansions {
			if strings.TrimSpace(e) != "" {
				clauses = append(clauses, "For the avoidance of doubt, "+e+".")
			}
		}
		if len(clauses) > 0 {
			fmt.Fprintf(&b, "\n\n%s", strings.Join(clauses, "\n"))
		}
	}
	return strings.TrimSpace(b.String())
}

// FeeReductionEligible reports whether the declared applicant category
// entitles the applicant to the reduced processing charge.
func feeReductionEligible(fields map[string]any) bool {
	cat := strings.ToLower(strings.TrimSpace(utils.Str(fields["applicant_category"])))
	if schema.Empty(fields["applicant_category"]) {
		return false
	}
	return feeReductionCategories[cat]
}
