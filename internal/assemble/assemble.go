// Package assemble renders final documents by composing boilerplate sections
// with data-driven sections. Sections with no underlying data are omitted
// entirely, never rendered as empty headings.
package assemble

import (
	"fmt"
	"strings"
)

// Divider separates document sections.
const Divider = "\n\n---\n\n"

// section is one candidate part of a document; empty bodies are dropped at
// join time.
type section struct {
	body string
}

func joinSections(sections []section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.body) == "" {
			continue
		}
		parts = append(parts, strings.TrimSpace(s.body))
	}
	return strings.Join(parts, Divider)
}

// numberedList renders items as a 1-based list. Numbering is local to each
// section: every call restarts at 1.
func numberedList(items []string) string {
	var b strings.Builder
	n := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		n++
		fmt.Fprintf(&b, "%d. %s\n", n, item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func bulleted(items []string) string {
	var b strings.Builder
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s\n", item)
	}
	return strings.TrimRight(b.String(), "\n")
}

func heading(title, body string) string {
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return title + "\n\n" + body
}
