package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// OversizedPlaceholder replaces the content of files above the size ceiling.
const OversizedPlaceholder = "[File too large to be read]"

// ErrInvalidEncoding is returned for files that are not valid UTF-8.
var ErrInvalidEncoding = errors.New("content is not valid UTF-8")

// Scanner reads note content under a size ceiling.
type Scanner struct {
	fsys    fs.FS
	maxSize int64
	logger  *slog.Logger
}

// NewScanner creates a scanner over fsys. Files strictly larger than maxSize
// bytes are not read.
func NewScanner(fsys fs.FS, maxSize int64, logger *slog.Logger) *Scanner {
	return &Scanner{fsys: fsys, maxSize: maxSize, logger: logger}
}

// Read returns the text of the file at relPath with line endings normalized
// to "\n". An oversized file yields OversizedPlaceholder and no error. On any
// other failure the content is empty and the error describes the cause.
func (s *Scanner) Read(relPath string) (string, error) {
	info, err := fs.Stat(s.fsys, relPath)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", relPath, err)
	}

	if info.Size() > s.maxSize {
		s.logger.Warn("note exceeds size ceiling, storing placeholder",
			slog.String("path", relPath),
			slog.Int64("size", info.Size()),
			slog.Int64("max_size", s.maxSize))
		return OversizedPlaceholder, nil
	}

	data, err := fs.ReadFile(s.fsys, relPath)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", relPath, err)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("%s: %w", relPath, ErrInvalidEncoding)
	}

	return normalizeNewlines(string(data)), nil
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
