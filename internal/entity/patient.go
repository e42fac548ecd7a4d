package entity

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// PatientContext is the optional userInfo block sent with a symptom report.
type PatientContext struct {
	Age                Age      `json:"age,omitempty"`
	Gender             string   `json:"gender,omitempty"`
	ExistingConditions []string `json:"existingConditions,omitempty"`
	Medications        []string `json:"medications,omitempty"`
}

// SymptomSubmission is one symptom-flow unit.
type SymptomSubmission struct {
	Symptoms string         `json:"symptoms"`
	UserInfo PatientContext `json:"userInfo"`
}

// Age keeps whatever the client sent; clients send both 42 and "42".
type Age string

func (a *Age) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Age(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*a = Age(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*a = Age(n.String())
	return nil
}
