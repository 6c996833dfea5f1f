package common

import (
	"strings"
	"unicode"
)

// ProjectNamePrefix is prepended to sanitized client names when creating
// SEMrush projects, so dashboard projects are recognizable in the SEMrush UI.
const ProjectNamePrefix = "SEO_Monitor_"

// maxProjectNameLen caps the full project name, prefix included. SEMrush
// rejects project names longer than this.
const maxProjectNameLen = 50

// SanitizeProjectName strips characters SEMrush does not accept in project
// names, keeping letters, digits, spaces, underscores and hyphens.
func SanitizeProjectName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ProjectNameForClient builds the canonical SEMrush project name for a
// client, truncated to the provider's length limit.
func ProjectNameForClient(clientName string) string {
	name := ProjectNamePrefix + SanitizeProjectName(clientName)
	if len(name) > maxProjectNameLen {
		name = name[:maxProjectNameLen]
	}
	return name
}

// ProjectNameForDomain builds a project name from the domain itself, used
// when no client name is available. Dots survive sanitization here so the
// domain stays readable in the SEMrush UI.
func ProjectNameForDomain(domain string) string {
	var b strings.Builder
	b.Grow(len(domain))

	for _, r := range domain {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		}
	}
	name := ProjectNamePrefix + b.String()
	if len(name) > maxProjectNameLen {
		name = name[:maxProjectNameLen]
	}
	return name
}

// CleanDomain normalizes a client website into the bare domain SEMrush
// expects: scheme and leading "www." are stripped, trailing slashes removed.
func CleanDomain(website string) string {
	domain := strings.TrimSpace(website)
	domain = strings.TrimPrefix(domain, "https://")
	domain = strings.TrimPrefix(domain, "http://")
	domain = strings.TrimPrefix(domain, "www.")
	return strings.TrimRight(domain, "/")
}
