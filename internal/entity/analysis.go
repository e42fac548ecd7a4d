package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/reckon/constants"
)

// DocumentAnalysis is the normalized result of the document flow.
// Every field is always populated.
type DocumentAnalysis struct {
	Type        constants.DocumentType `json:"type"`
	Date        string                 `json:"date"`
	Doctor      string                 `json:"doctor"`
	LabResults  []LabResult            `json:"lab_results"`
	Medications []Medication           `json:"medications"`
	Summary     string                 `json:"summary"`
}

type LabResult struct {
	Test   string `json:"test"`
	Value  string `json:"value"`
	Range  string `json:"range"`
	Status string `json:"status"` // "H", "L" or "" for normal
}

type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
}

// SymptomAnalysis is the normalized result of the symptom flow.
type SymptomAnalysis struct {
	SymptomSummary     string             `json:"symptomSummary"`
	PossibleCauses     []string           `json:"possibleCauses"`
	RecommendedActions RecommendedActions `json:"recommendedActions"`
	WarningFlags       []string           `json:"warningFlags"`
	PreventiveMeasures []string           `json:"preventiveMeasures"`
	FollowUpNeeded     bool               `json:"followUpNeeded"`
}

type RecommendedActions struct {
	UrgencyLevel   constants.Urgency `json:"urgencyLevel"`
	ImmediateSteps []string          `json:"immediateSteps"`
	HomeRemedies   []string          `json:"homeRemedies"`
	Medications    []string          `json:"medications"`
	DoctorVisit    DoctorVisit       `json:"doctorVisit"`
}

type DoctorVisit struct {
	Required       bool   `json:"required"`
	Urgency        string `json:"urgency"`
	SpecialistType string `json:"specialistType"`
	Reason         string `json:"reason"`
}

// AnalysisRecord is one persisted pipeline outcome.
type AnalysisRecord struct {
	ID           uuid.UUID                `json:"id"`
	UserID       *uuid.UUID               `json:"userId,omitempty"`
	Flow         constants.Flow           `json:"flow"`
	Source       string                   `json:"source"`
	Status       constants.AnalysisStatus `json:"status"`
	Result       json.RawMessage          `json:"result,omitempty"`
	ErrorKind    string                   `json:"errorKind,omitempty"`
	ErrorMessage string                   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time                `json:"createdAt"`
}
