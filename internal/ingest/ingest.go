package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/reckon/constants"
	"github.com/joseph-ayodele/reckon/internal/common"
	"github.com/joseph-ayodele/reckon/internal/entity"
)

// AllowedExt checks if a file extension is in the allowed set (pdf/jpg/jpeg/png).
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}

// ArtifactFromPath describes a local file as an artifact. The media type
// comes from the extension; anything outside the allow-list is rejected.
func ArtifactFromPath(path string) (entity.Artifact, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("abs path: %w", err)
	}
	ext := constants.NormalizeExt(filepath.Ext(abs))
	mediaType, ok := constants.AllowedExtensions[ext]
	if !ok {
		return entity.Artifact{}, common.KindError(common.ErrUnsupportedMediaType, fmt.Errorf("extension %q", ext))
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return entity.Artifact{}, fmt.Errorf("stat: %w", err)
	}
	if fi.IsDir() {
		return entity.Artifact{}, fmt.Errorf("%s is a directory", abs)
	}
	return entity.Artifact{
		Filename:  filepath.Base(abs),
		Path:      abs,
		MediaType: mediaType,
		Size:      fi.Size(),
	}, nil
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Deduper remembers content hashes so a file saved twice with the same
// bytes is only analyzed once.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]string
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]string)}
}

// Seen records the hash of path and reports whether identical content was
// recorded before. The returned hash is empty when the file could not be read.
func (d *Deduper) Seen(path string) (bool, string, error) {
	sum, err := HashFile(path)
	if err != nil {
		return false, "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[sum]; ok {
		return true, sum, nil
	}
	d.seen[sum] = path
	return false, sum, nil
}
