package entity

import "github.com/joseph-ayodele/reckon/constants"

// Artifact is one uploaded file as accepted by the ingress layer.
// The pipeline reads it and never modifies or deletes it.
type Artifact struct {
	Filename  string `json:"filename"`
	Path      string `json:"path"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
}

// ExtractedText is plain text derived from an artifact or submitted directly.
type ExtractedText struct {
	Text   string               `json:"text"`
	Source constants.SourceKind `json:"source"`
}
