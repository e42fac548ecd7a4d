package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/auth"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
	"github.com/joseph-ayodele/reckon/internal/metrics"
	"github.com/joseph-ayodele/reckon/internal/pipeline"
)

type fakeAnalyzer struct {
	mu        sync.Mutex
	artifacts []entity.Artifact
	userIDs   []string
	docErr    map[string]error
	symptom   pipeline.Outcome[entity.SymptomAnalysis]
	lastSub   entity.SymptomSubmission
}

func (f *fakeAnalyzer) AnalyzeDocuments(ctx context.Context, arts []entity.Artifact) ([]pipeline.Outcome[entity.DocumentAnalysis], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts = append(f.artifacts, arts...)
	f.userIDs = append(f.userIDs, common.UserIDFromContext(ctx))
	out := make([]pipeline.Outcome[entity.DocumentAnalysis], len(arts))
	for i, a := range arts {
		out[i].UnitID = a.Filename
		if err, ok := f.docErr[a.Filename]; ok {
			out[i].Err = err
			continue
		}
		out[i].Result = entity.DocumentAnalysis{
			Type:        constants.Prescription,
			Summary:     "summary of " + a.Filename,
			LabResults:  []entity.LabResult{},
			Medications: []entity.Medication{{Name: "Amoxicillin"}},
		}
	}
	return out, nil
}

func (f *fakeAnalyzer) AnalyzeSymptoms(ctx context.Context, sub entity.SymptomSubmission) pipeline.Outcome[entity.SymptomAnalysis] {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSub = sub
	f.userIDs = append(f.userIDs, common.UserIDFromContext(ctx))
	return f.symptom
}

type fakeAuth struct {
	signupErr error
	loginErr  error
	userID    uuid.UUID
}

func (f *fakeAuth) session(email string) *auth.Session {
	return &auth.Session{
		User:  &entity.User{ID: f.userID, FirstName: "Ada", LastName: "Obi", Email: email, Username: "adaobi"},
		Token: "good-token",
	}
}

func (f *fakeAuth) Signup(_ context.Context, req auth.SignupRequest) (*auth.Session, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	return f.session(req.Email), nil
}

func (f *fakeAuth) Login(_ context.Context, req auth.LoginRequest) (*auth.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.session(req.Email), nil
}

func (f *fakeAuth) Verify(token string) (uuid.UUID, error) {
	if token == "good-token" {
		return f.userID, nil
	}
	return uuid.Nil, common.NewAppError("INVALID_TOKEN", "Invalid token", common.ErrUnauthorized)
}

type fakeStore struct {
	recs    []entity.AnalysisRecord
	dbErr   error
	lastLim int
}

func (f *fakeStore) ListByUser(_ context.Context, _ uuid.UUID, limit int) ([]entity.AnalysisRecord, error) {
	f.lastLim = limit
	return f.recs, nil
}

func (f *fakeStore) ExportAnalysesXLSX(context.Context, uuid.UUID) ([]byte, error) {
	return []byte("PK-fake-xlsx"), nil
}

func (f *fakeStore) HealthCheck(context.Context, time.Duration) error { return f.dbErr }

type harness struct {
	srv      *Server
	analyzer *fakeAnalyzer
	auth     *fakeAuth
	store    *fakeStore
	metrics  *metrics.Metrics
	uploads  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		analyzer: &fakeAnalyzer{docErr: map[string]error{}},
		auth:     &fakeAuth{userID: uuid.New()},
		store:    &fakeStore{},
		metrics:  metrics.New(),
		uploads:  filepath.Join(t.TempDir(), "uploads"),
	}
	srv, err := New(Config{UploadDir: h.uploads}, Deps{
		Analyzer: h.analyzer,
		Auth:     h.auth,
		Analyses: h.store,
		Exporter: h.store,
		DB:       h.store,
		Metrics:  h.metrics,
	}, nil)
	require.NoError(t, err)
	h.srv = srv
	return h
}

func (h *harness) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.srv.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type part struct {
	name, contentType, content string
}

func multipartRequest(t *testing.T, field string, parts ...part) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, p.name))
		if p.contentType != "" {
			hdr.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(hdr)
		require.NoError(t, err)
		_, err = io.WriteString(pw, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/prescription/analyze", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{Auth: &fakeAuth{}}, nil)
	assert.Error(t, err)
	_, err = New(Config{}, Deps{Analyzer: &fakeAnalyzer{}}, nil)
	assert.Error(t, err)
}

func TestRootAndHealth(t *testing.T) {
	h := newHarness(t)

	rec := h.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Backend server is running", body["message"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "connected", decode(t, rec)["database"])

	h.store.dbErr = errors.New("down")
	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, "disconnected", decode(t, rec)["database"])

	rec = h.do(httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode(t, rec)["message"])
}

func TestSignupAndLogin(t *testing.T) {
	h := newHarness(t)

	rec := h.do(jsonRequest(http.MethodPost, "/api/auth/signup",
		`{"firstName":"Ada","lastName":"Obi","email":"ada@example.com","username":"adaobi","password":"secret1"}`))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "User registered successfully", body["message"])
	assert.Equal(t, "good-token", body["token"])
	user := body["user"].(map[string]any)
	assert.Equal(t, "Ada Obi", user["name"])
	assert.Equal(t, h.auth.userID.String(), user["id"])
	assert.Equal(t, false, user["isDoctor"])
	assert.NotContains(t, user, "passwordHash")

	rec = h.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"ada@example.com","password":"secret1"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", decode(t, rec)["message"])

	t.Run("duplicate", func(t *testing.T) {
		h.auth.signupErr = common.NewAppError("EMAIL_TAKEN", "An account with this email already exists", common.ErrConflict)
		defer func() { h.auth.signupErr = nil }()
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/signup", `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "An account with this email already exists", decode(t, rec)["message"])
	})

	t.Run("bad credentials", func(t *testing.T) {
		h.auth.loginErr = auth.ErrInvalidCredentials
		defer func() { h.auth.loginErr = nil }()
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"x@example.com","password":"nope"}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid credentials", decode(t, rec)["message"])
	})

	t.Run("store failure", func(t *testing.T) {
		h.auth.loginErr = common.KindError(common.ErrDatabase, errors.New("conn refused"))
		defer func() { h.auth.loginErr = nil }()
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":"x@example.com","password":"nope"}`))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "Server error", decode(t, rec)["message"])
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := h.do(jsonRequest(http.MethodPost, "/api/auth/login", `{"email":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid JSON", decode(t, rec)["message"])
	})
}

func TestAnalyzeDocuments(t *testing.T) {
	h := newHarness(t)
	h.analyzer.docErr["blurry.png"] = common.KindError(common.ErrExtractionFailed, errors.New("tesseract exited 1"))

	rec := h.do(multipartRequest(t, "prescription",
		part{"rx.pdf", "application/pdf", "%PDF-1.4"},
		part{"blurry.png", "image/png", "png-bytes"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Results []struct {
			Filename string                   `json:"filename"`
			FilePath string                   `json:"filePath"`
			Analysis *entity.DocumentAnalysis `json:"analysis"`
			Error    string                   `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Analysis completed", body.Message)
	require.Len(t, body.Results, 2)

	assert.Equal(t, "rx.pdf", body.Results[0].Filename)
	require.NotNil(t, body.Results[0].Analysis)
	assert.Equal(t, "summary of rx.pdf", body.Results[0].Analysis.Summary)
	assert.Empty(t, body.Results[0].Error)

	assert.Equal(t, "blurry.png", body.Results[1].Filename)
	assert.Nil(t, body.Results[1].Analysis)
	assert.Contains(t, body.Results[1].Error, "text extraction failed")

	require.Len(t, h.analyzer.artifacts, 2)
	stored := h.analyzer.artifacts[0]
	assert.Equal(t, constants.MediaTypePDF, stored.MediaType)
	assert.Equal(t, int64(len("%PDF-1.4")), stored.Size)
	assert.Equal(t, h.uploads, filepath.Dir(stored.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(stored.Path), "prescription-"))
	assert.NotEqual(t, filepath.Base(stored.Path), filepath.Base(h.analyzer.artifacts[1].Path))
	content, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(content))
}

func TestAnalyzeDocuments_Rejections(t *testing.T) {
	h := newHarness(t)

	t.Run("no files", func(t *testing.T) {
		rec := h.do(multipartRequest(t, "other", part{"rx.pdf", "application/pdf", "x"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "Please upload at least one file (PDF or image)", body["message"])
		assert.Contains(t, body["help"], "prescription")
	})

	t.Run("not multipart", func(t *testing.T) {
		rec := h.do(jsonRequest(http.MethodPost, "/api/prescription/analyze", `{}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad type", func(t *testing.T) {
		rec := h.do(multipartRequest(t, "prescription", part{"notes.txt", "text/plain", "hello"}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "Invalid file type")
	})

	t.Run("too many", func(t *testing.T) {
		parts := make([]part, constants.MaxUploadFiles+1)
		for i := range parts {
			parts[i] = part{fmt.Sprintf("p%d.png", i), "image/png", "x"}
		}
		rec := h.do(multipartRequest(t, "prescription", parts...))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := strings.Repeat("a", constants.MaxUploadBytes+1)
		rec := h.do(multipartRequest(t, "prescription", part{"big.pdf", "application/pdf", big}))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decode(t, rec)["message"], "too large")
	})

	t.Run("extension fallback for octet-stream", func(t *testing.T) {
		rec := h.do(multipartRequest(t, "prescription", part{"scan.JPEG", "application/octet-stream", "jpg"}))
		require.Equal(t, http.StatusOK, rec.Code)
		last := h.analyzer.artifacts[len(h.analyzer.artifacts)-1]
		assert.Equal(t, constants.MediaTypeJPEG, last.MediaType)
		assert.Equal(t, ".jpeg", filepath.Ext(last.Path))
	})

	assert.Len(t, h.analyzer.artifacts, 1)
}

func TestServeUpload(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.MkdirAll(h.uploads, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(h.uploads, "prescription-1-abc.pdf"), []byte("%PDF"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(h.uploads), "secret.txt"), []byte("no"), 0o644))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/prescription/file/prescription-1-abc.pdf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())

	for _, path := range []string{
		"/api/prescription/file/missing.pdf",
		"/api/prescription/file/..%2Fsecret.txt",
		"/api/prescription/file/.hidden",
	} {
		rec := h.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
}

func TestAnalyzeSymptoms(t *testing.T) {
	h := newHarness(t)
	h.analyzer.symptom = pipeline.Outcome[entity.SymptomAnalysis]{
		UnitID: pipeline.SymptomUnitID,
		Result: entity.SymptomAnalysis{
			SymptomSummary:     "Tension headache.",
			RecommendedActions: entity.RecommendedActions{UrgencyLevel: constants.UrgencyLow},
		},
	}

	rec := h.do(jsonRequest(http.MethodPost, "/api/symptoms/analyze",
		`{"symptoms":"headache for two days","userInfo":{"age":34,"gender":"female","medications":["ibuprofen"]}}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Tension headache.", body["analysis"].(map[string]any)["symptomSummary"])
	assert.Equal(t, entity.Age("34"), h.analyzer.lastSub.UserInfo.Age)
	assert.Equal(t, []string{"ibuprofen"}, h.analyzer.lastSub.UserInfo.Medications)
}

func TestAnalyzeSymptoms_Failures(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"empty", common.ErrEmptyInput, http.StatusBadRequest, "Please provide a description of your symptoms"},
		{"gateway down", common.KindError(common.ErrGatewayUnavailable, context.DeadlineExceeded),
			http.StatusServiceUnavailable, "The AI service is temporarily unavailable. Please try again in a few minutes."},
		{"bad schema", common.KindError(common.ErrInvalidSchema, errors.New("missing symptomSummary")),
			http.StatusInternalServerError, "Unable to process the symptoms analysis. Please try again or rephrase your symptoms."},
		{"unparsable", fmt.Errorf("decode: %w", common.ErrUnparsableResponse),
			http.StatusInternalServerError, "Unable to process the symptoms analysis. Please try again or rephrase your symptoms."},
		{"provider error", common.KindError(common.ErrGatewayError, errors.New("status 400")),
			http.StatusInternalServerError, "An error occurred while analyzing symptoms. Please try again."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.analyzer.symptom = pipeline.Outcome[entity.SymptomAnalysis]{UnitID: pipeline.SymptomUnitID, Err: tc.err}
			rec := h.do(jsonRequest(http.MethodPost, "/api/symptoms/analyze", `{"symptoms":"x"}`))
			assert.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tc.message, body["message"])
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	h := newHarness(t)
	h.analyzer.symptom = pipeline.Outcome[entity.SymptomAnalysis]{Result: entity.SymptomAnalysis{SymptomSummary: "ok"}}

	req := jsonRequest(http.MethodPost, "/api/symptoms/analyze", `{"symptoms":"cough"}`)
	rec := h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = jsonRequest(http.MethodPost, "/api/symptoms/analyze", `{"symptoms":"cough"}`)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = jsonRequest(http.MethodPost, "/api/symptoms/analyze", `{"symptoms":"cough"}`)
	req.Header.Set("Authorization", "Bearer forged")
	rec = h.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["message"])

	assert.Equal(t, []string{"", h.auth.userID.String()}, h.analyzer.userIDs)
}

func TestAnalysesRoutes(t *testing.T) {
	h := newHarness(t)
	h.store.recs = []entity.AnalysisRecord{{ID: uuid.New(), Flow: constants.FlowSymptom, Status: constants.AnalysisStatusOK}}

	rec := h.do(httptest.NewRequest(http.MethodGet, "/api/analyses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/analyses", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec = h.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["message"])
	assert.Zero(t, h.store.lastLim, "store must not be queried")

	req = httptest.NewRequest(http.MethodGet, "/api/analyses?limit=10000", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode(t, rec)["analyses"], 1)
	assert.Equal(t, maxListLimit, h.store.lastLim)

	req = httptest.NewRequest(http.MethodGet, "/api/analyses?limit=abc", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	assert.Equal(t, http.StatusBadRequest, h.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/analyses/export", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec = h.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Equal(t, "PK-fake-xlsx", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(httptest.NewRequest(http.MethodGet, "/", nil))

	rec := h.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reckon_http_requests_total{method="GET",route="/",status="200"} 1`)
}

func TestCORS(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/symptoms/analyze", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := h.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
