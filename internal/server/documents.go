package server

import (
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

type documentResult struct {
	Filename string                   `json:"filename"`
	FilePath string                   `json:"filePath,omitempty"`
	Analysis *entity.DocumentAnalysis `json:"analysis,omitempty"`
	Error    string                   `json:"error,omitempty"`
}

type documentsResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Results []documentResult `json:"results"`
}

// handleAnalyzeDocuments accepts up to MaxUploadFiles documents under the
// "prescription" field and answers with one result per file.
func (s *Server) handleAnalyzeDocuments(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil && err != http.ErrNotMultipart {
		return c.JSON(http.StatusBadRequest, failureResponse{Message: "Invalid multipart request", Error: err.Error()})
	}
	var files []*multipart.FileHeader
	if form != nil {
		files = form.File[constants.UploadField]
		defer func() { _ = form.RemoveAll() }()
	}
	if len(files) == 0 {
		return c.JSON(http.StatusBadRequest, failureResponse{
			Message: "Please upload at least one file (PDF or image)",
			Help:    `Send files using multipart/form-data with field name "prescription"`,
		})
	}
	if len(files) > constants.MaxUploadFiles {
		return c.JSON(http.StatusBadRequest, failureResponse{
			Message: fmt.Sprintf("Too many files. At most %d files are allowed per request.", constants.MaxUploadFiles),
		})
	}

	for _, fh := range files {
		if fh.Size > constants.MaxUploadBytes {
			return c.JSON(http.StatusBadRequest, failureResponse{
				Message: fmt.Sprintf("File %s is too large. Maximum size is %dMB.", fh.Filename, constants.MaxUploadBytes>>20),
			})
		}
		if _, ok := uploadMediaType(fh); !ok {
			return c.JSON(http.StatusBadRequest, failureResponse{
				Message: "Invalid file type. Only JPG, PNG and PDF files are allowed.",
			})
		}
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		s.logger.Error("http.upload.mkdir_failed", "dir", s.cfg.UploadDir, "error", err)
		return c.JSON(http.StatusInternalServerError, failureResponse{Message: "Error processing prescription", Error: "upload storage unavailable"})
	}

	artifacts := make([]entity.Artifact, 0, len(files))
	for _, fh := range files {
		a, err := s.storeUpload(fh)
		if err != nil {
			s.logger.Error("http.upload.store_failed", "filename", fh.Filename, "error", err)
			return c.JSON(http.StatusInternalServerError, failureResponse{Message: "Error processing prescription", Error: err.Error()})
		}
		artifacts = append(artifacts, a)
	}

	outcomes, err := s.deps.Analyzer.AnalyzeDocuments(c.Request().Context(), artifacts)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, failureResponse{Message: "Error processing prescription", Error: err.Error()})
	}

	results := make([]documentResult, len(outcomes))
	for i, o := range outcomes {
		results[i] = documentResult{Filename: artifacts[i].Filename}
		if o.OK() {
			analysis := o.Result
			results[i].FilePath = artifacts[i].Path
			results[i].Analysis = &analysis
		} else {
			results[i].Error = o.Err.Error()
		}
	}
	return c.JSON(http.StatusOK, documentsResponse{
		Success: true,
		Message: "Analysis completed",
		Results: results,
	})
}

// uploadMediaType resolves the declared part type, falling back to the
// extension when the client sent none or a generic one.
func uploadMediaType(fh *multipart.FileHeader) (string, bool) {
	declared := fh.Header.Get(echo.HeaderContentType)
	if mt, _, err := mime.ParseMediaType(declared); err == nil && mt != "application/octet-stream" {
		_, ok := constants.AllowedMediaTypes[mt]
		return mt, ok
	}
	mt, ok := constants.AllowedExtensions[constants.NormalizeExt(filepath.Ext(fh.Filename))]
	return mt, ok
}

// storeUpload copies the part into the upload dir under a unique name.
func (s *Server) storeUpload(fh *multipart.FileHeader) (entity.Artifact, error) {
	mediaType, _ := uploadMediaType(fh)
	ext := constants.NormalizeExt(filepath.Ext(fh.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		ext = extensionFor(mediaType)
	}
	name := fmt.Sprintf("prescription-%d-%s.%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
	dst := filepath.Join(s.cfg.UploadDir, name)

	src, err := fh.Open()
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("open part: %w", err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("create %s: %w", name, err)
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dst)
		return entity.Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}

	return entity.Artifact{
		Filename:  filepath.Base(fh.Filename),
		Path:      dst,
		MediaType: mediaType,
		Size:      n,
	}, nil
}

func extensionFor(mediaType string) string {
	switch mediaType {
	case constants.MediaTypePDF:
		return "pdf"
	case constants.MediaTypePNG:
		return "png"
	default:
		return "jpg"
	}
}

// handleServeUpload returns a stored upload by its generated name.
func (s *Server) handleServeUpload(c echo.Context) error {
	name, err := url.PathUnescape(c.Param("filename"))
	notFound := func() error {
		return c.JSON(http.StatusNotFound, failureResponse{Message: "File not found"})
	}
	if err != nil || name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || strings.ContainsAny(name, `/\`) {
		return notFound()
	}
	path := filepath.Join(s.cfg.UploadDir, name)
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return notFound()
	}
	return c.File(path)
}
