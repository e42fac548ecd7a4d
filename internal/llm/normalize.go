package llm

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

// NormalizeDocument decodes a document-flow reply and fills every optional
// field with its default. Missing "summary" is an ErrInvalidSchema failure.
func NormalizeDocument(raw string) (entity.DocumentAnalysis, error) {
	v, _, err := DecodeLoose(raw)
	if err != nil {
		return entity.DocumentAnalysis{}, err
	}
	if err := ValidateRequired(constants.FlowDocument, v); err != nil {
		return entity.DocumentAnalysis{}, err
	}
	m := v.(map[string]any)

	docType, _ := constants.CanonicalDocumentType(str(m["type"]))
	out := entity.DocumentAnalysis{
		Type:        docType,
		Date:        str(m["date"]),
		Doctor:      str(m["doctor"]),
		LabResults:  []entity.LabResult{},
		Medications: []entity.Medication{},
		Summary:     str(m["summary"]),
	}
	for _, item := range list(m["lab_results"]) {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.LabResults = append(out.LabResults, entity.LabResult{
			Test:   str(obj["test"]),
			Value:  str(obj["value"]),
			Range:  str(obj["range"]),
			Status: labStatus(obj["status"]),
		})
	}
	for _, item := range list(m["medications"]) {
		switch obj := item.(type) {
		case map[string]any:
			out.Medications = append(out.Medications, entity.Medication{
				Name:         str(obj["name"]),
				Dosage:       str(obj["dosage"]),
				Frequency:    str(obj["frequency"]),
				Duration:     str(obj["duration"]),
				Instructions: str(obj["instructions"]),
			})
		case string:
			if name := strings.TrimSpace(obj); name != "" {
				out.Medications = append(out.Medications, entity.Medication{Name: name})
			}
		}
	}
	return out, nil
}

// NormalizeSymptom decodes a symptom-flow reply. symptomSummary and
// recommendedActions are required; every other field gets its default.
func NormalizeSymptom(raw string) (entity.SymptomAnalysis, error) {
	v, _, err := DecodeLoose(raw)
	if err != nil {
		return entity.SymptomAnalysis{}, err
	}
	if err := ValidateRequired(constants.FlowSymptom, v); err != nil {
		return entity.SymptomAnalysis{}, err
	}
	m := v.(map[string]any)
	ra, _ := m["recommendedActions"].(map[string]any)
	dv, _ := ra["doctorVisit"].(map[string]any)

	urgency, _ := constants.CanonicalUrgency(str(ra["urgencyLevel"]))
	return entity.SymptomAnalysis{
		SymptomSummary: str(m["symptomSummary"]),
		PossibleCauses: strList(m["possibleCauses"]),
		RecommendedActions: entity.RecommendedActions{
			UrgencyLevel:   urgency,
			ImmediateSteps: strList(ra["immediateSteps"]),
			HomeRemedies:   strList(ra["homeRemedies"]),
			Medications:    strList(ra["medications"]),
			DoctorVisit: entity.DoctorVisit{
				Required:       boolish(dv["required"]),
				Urgency:        str(dv["urgency"]),
				SpecialistType: str(dv["specialistType"]),
				Reason:         str(dv["reason"]),
			},
		},
		WarningFlags:       strList(m["warningFlags"]),
		PreventiveMeasures: strList(m["preventiveMeasures"]),
		FollowUpNeeded:     boolish(m["followUpNeeded"]),
	}, nil
}

// str renders scalars as trimmed text; null and containers become "".
func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

// strList accepts a list or a lone string and never returns nil.
func strList(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			var s string
			if obj, ok := item.(map[string]any); ok {
				b, _ := json.Marshal(obj)
				s = string(b)
			} else {
				s = str(item)
			}
			if s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func boolish(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y", "1", "required":
			return true
		}
	}
	return false
}

// labStatus maps the model's flag onto "H", "L" or "" for normal.
func labStatus(v any) string {
	s := strings.ToUpper(str(v))
	switch {
	case s == "H" || s == "HIGH" || s == "HH" || strings.HasPrefix(s, "HIGH"):
		return "H"
	case s == "L" || s == "LOW" || s == "LL" || strings.HasPrefix(s, "LOW"):
		return "L"
	default:
		return ""
	}
}
