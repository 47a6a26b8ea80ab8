package content

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"chattrain/internal/domain"
	"chattrain/internal/infra/metrics"
)

var contentTypes = map[string]string{
	".pdf":  "application/pdf",
	".md":   "text/markdown; charset=utf-8",
	".txt":  "text/plain; charset=utf-8",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
}

// FileServer resolves and serves scenario documents. It is the only component
// handling untrusted path input: resolution normalizes the candidate path and
// verifies containment with filepath.Rel, never a string prefix check, so a
// sibling directory sharing a prefix cannot be reached.
type FileServer struct {
	root    string
	maxSize int64
	log     *zerolog.Logger
}

func NewFileServer(root string, maxSize int64, logger *zerolog.Logger) *FileServer {
	l := logger.With().Str("component", "FileServer").Logger()
	return &FileServer{root: root, maxSize: maxSize, log: &l}
}

// Resolve maps (scenarioID, filename) to an absolute path strictly confined
// under root/scenarioID. Escape attempts return domain.ErrSecurity and are
// logged as security events; unknown files return domain.ErrNotFound;
// disallowed extensions or oversized files return domain.ErrValidation.
func (f *FileServer) Resolve(scenarioID, filename string) (string, error) {
	scenarioDir, err := filepath.Abs(filepath.Join(f.root, scenarioID))
	if err != nil {
		return "", domain.ErrNotFound
	}
	candidate := filepath.Join(scenarioDir, filename)

	if !f.confined(scenarioDir, candidate) {
		metrics.IncDocumentSecurityBlock()
		f.log.Warn().Str("scenario_id", scenarioID).Str("filename", filename).
			Msg("path escape attempt blocked")
		return "", fmt.Errorf("%q: %w", filename, domain.ErrSecurity)
	}

	fi, err := os.Stat(candidate)
	if err != nil || !fi.Mode().IsRegular() {
		return "", domain.ErrNotFound
	}

	// Symlinks may point anywhere; re-verify the fully resolved path.
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return "", domain.ErrNotFound
	}
	resolvedDir, err := filepath.EvalSymlinks(scenarioDir)
	if err != nil {
		return "", domain.ErrNotFound
	}
	if !f.confined(resolvedDir, resolved) {
		metrics.IncDocumentSecurityBlock()
		f.log.Warn().Str("scenario_id", scenarioID).Str("filename", filename).
			Msg("symlink escape attempt blocked")
		return "", fmt.Errorf("%q: %w", filename, domain.ErrSecurity)
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if _, ok := contentTypes[ext]; !ok {
		return "", fmt.Errorf("extension %q not allowed: %w", ext, domain.ErrValidation)
	}
	if fi.Size() > f.maxSize {
		return "", fmt.Errorf("file exceeds %d bytes: %w", f.maxSize, domain.ErrValidation)
	}
	return resolved, nil
}

func (f *FileServer) confined(dir, candidate string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(candidate))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Document is a resolved, readable document ready to be written to a client.
type Document struct {
	Path        string
	ContentType string
	ETag        string
	Size        int64
	Body        []byte
}

// Serve resolves then reads the document, returning bytes, content type and a
// cache-validation token derived from size and mtime.
func (f *FileServer) Serve(scenarioID, filename string) (*Document, error) {
	path, err := f.Resolve(scenarioID, filename)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	ext := strings.ToLower(filepath.Ext(path))
	metrics.IncDocumentServed(ext)
	return &Document{
		Path:        path,
		ContentType: contentTypes[ext],
		ETag:        etagFor(fi.Size(), fi.ModTime().UnixNano()),
		Size:        fi.Size(),
		Body:        b,
	}, nil
}

func etagFor(size, mtime int64) string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d-%d", size, mtime)))
	return hex.EncodeToString(sum[:])
}
