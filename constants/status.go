package constants

// Flow identifies which analysis pipeline a unit runs through.
type Flow string

const (
	FlowDocument Flow = "document"
	FlowSymptom  Flow = "symptom"
)

// SourceKind records where extracted text came from.
type SourceKind string

const (
	SourcePDF     SourceKind = "pdf"
	SourceImage   SourceKind = "image"
	SourceRawText SourceKind = "raw-text"
)

// AnalysisStatus is the stored outcome of one unit (store these exact strings in DB).
type AnalysisStatus string

const (
	AnalysisStatusOK    AnalysisStatus = "ok"
	AnalysisStatusError AnalysisStatus = "error"
)
