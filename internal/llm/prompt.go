package llm

import (
	"errors"
	"strings"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

const (
	notProvided  = "Not provided"
	noneReported = "None reported"
)

const documentTemplate = `You are a medical document analyzer. Format lab reports and prescriptions into structured JSON data.

Analyze this medical document and extract key information into structured JSON format.

Document Text:
%TEXT%

Rules:
1. If it's a lab report, include test name, value, range, and status (H for high, L for low, or null for normal)
2. If it's a prescription, include medication details
3. Always identify the document type, date, and doctor's name
4. If the document text is empty or unreadable, say so in the summary

Return ONLY a JSON object with this structure (no other text):
{
  "type": "lab_report" or "prescription",
  "date": "document date",
  "doctor": "doctor name",
  "lab_results": [
    { "test": "test name", "value": "result value", "range": "normal range", "status": "H/L/null" }
  ],
  "medications": [
    { "name": "", "dosage": "", "frequency": "", "duration": "", "instructions": "" }
  ],
  "summary": "brief analysis of key findings"
}`

const symptomTemplate = `As an AI symptom analyzer, analyze these symptoms and provide structured medical guidance. Return ONLY a JSON response in this exact format:

{
    "symptomSummary": "brief summary of symptoms",
    "possibleCauses": ["cause 1", "cause 2"],
    "recommendedActions": {
        "urgencyLevel": "Low/Medium/High",
        "immediateSteps": ["step 1", "step 2"],
        "homeRemedies": ["remedy 1", "remedy 2"],
        "medications": ["medication 1", "medication 2"],
        "doctorVisit": {
            "required": true or false,
            "urgency": "immediate/within 24 hours/within a week/etc",
            "specialistType": "type of doctor if needed",
            "reason": "why visit is needed"
        }
    },
    "warningFlags": ["any concerning symptoms that need immediate attention"],
    "preventiveMeasures": ["measure 1", "measure 2"],
    "followUpNeeded": true or false
}

If a doctor's visit is needed, specify what type of specialist would be most appropriate.

Symptoms Description:
%TEXT%
%CONTEXT%

Please provide a comprehensive but cautious analysis. If there's any possibility of a serious condition, always recommend a doctor's visit.`

// BuildDocumentPrompt embeds extracted document text. Empty text is forwarded as-is.
func BuildDocumentPrompt(t entity.ExtractedText) Prompt {
	return Prompt{
		Flow: constants.FlowDocument,
		Text: strings.Replace(documentTemplate, "%TEXT%", t.Text, 1),
	}
}

// BuildSymptomPrompt fails with common.ErrEmptyInput for blank symptoms.
func BuildSymptomPrompt(symptoms string, pc entity.PatientContext) (Prompt, error) {
	symptoms = strings.TrimSpace(symptoms)
	if symptoms == "" {
		return Prompt{}, common.KindError(common.ErrEmptyInput, errors.New("symptoms description is required"))
	}
	r := strings.NewReplacer("%TEXT%", symptoms, "%CONTEXT%", PatientContextBlock(pc))
	return Prompt{Flow: constants.FlowSymptom, Text: r.Replace(symptomTemplate)}, nil
}

// PatientContextBlock renders the context fields, marking absent ones explicitly.
func PatientContextBlock(pc entity.PatientContext) string {
	var b strings.Builder
	b.WriteString("\nPatient Context:")
	b.WriteString("\n- Age: " + orMarker(string(pc.Age), notProvided))
	b.WriteString("\n- Gender: " + orMarker(pc.Gender, notProvided))
	b.WriteString("\n- Existing Conditions: " + joinOrMarker(pc.ExistingConditions))
	b.WriteString("\n- Current Medications: " + joinOrMarker(pc.Medications))
	return b.String()
}

func orMarker(s, marker string) string {
	if s = strings.TrimSpace(s); s == "" {
		return marker
	}
	return s
}

func joinOrMarker(items []string) string {
	kept := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return noneReported
	}
	return strings.Join(kept, ", ")
}
