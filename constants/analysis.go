package constants

import (
	"strings"
)

// DocumentType is the kind of medical document the model recognized.
type DocumentType string

const (
	LabReport    DocumentType = "lab_report"
	Prescription DocumentType = "prescription"
	UnknownDoc   DocumentType = "unknown"
)

// Urgency is the triage level reported for a symptom submission.
type Urgency string

const (
	UrgencyLow    Urgency = "Low"
	UrgencyMedium Urgency = "Medium"
	UrgencyHigh   Urgency = "High"
)

var allUrgencies = []Urgency{UrgencyLow, UrgencyMedium, UrgencyHigh}

// UrgencyLevels returns the allowed urgency labels in ascending order.
func UrgencyLevels() []string {
	result := make([]string, len(allUrgencies))
	for i, u := range allUrgencies {
		result[i] = string(u)
	}
	return result
}

// CanonicalUrgency maps a free-form label onto Low/Medium/High.
// Unknown or empty labels resolve to Medium with ok=false.
func CanonicalUrgency(input string) (Urgency, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return UrgencyMedium, false
	}

	synonyms := map[string]Urgency{
		"urgent":    UrgencyHigh,
		"emergency": UrgencyHigh,
		"severe":    UrgencyHigh,
		"critical":  UrgencyHigh,
		"moderate":  UrgencyMedium,
		"medium":    UrgencyMedium,
		"mild":      UrgencyLow,
		"minor":     UrgencyLow,
		"low":       UrgencyLow,
		"high":      UrgencyHigh,
	}
	if u, ok := synonyms[normalized]; ok {
		return u, true
	}

	// "Low/Medium" style answers: take the highest level mentioned
	best, found := UrgencyMedium, false
	for _, u := range allUrgencies {
		if strings.Contains(normalized, strings.ToLower(string(u))) {
			best, found = u, true
		}
	}
	return best, found
}

// CanonicalDocumentType maps the model's document label onto a known type.
func CanonicalDocumentType(input string) (DocumentType, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)

	switch normalized {
	case "lab_report", "lab", "laboratory_report", "lab_results", "blood_test":
		return LabReport, true
	case "prescription", "rx", "medication_list":
		return Prescription, true
	default:
		return UnknownDoc, false
	}
}
