package filestorage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/mert/schoolhub/internal/pkg/logger"
)

// RosterArchive keeps a copy of every uploaded roster file so a batch can be
// inspected or replayed after the fact
type RosterArchive interface {
	ArchiveRoster(schoolID, uploadID int64, fileName string, data []byte) (string, error)
}

// LocalStorage archives roster files on the local filesystem, one
// subdirectory per school
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a LocalStorage rooted at basePath, creating the
// directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error().Err(err).Str("path", basePath).Msg("Failed to create storage directory")
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}
	logger.Info().Str("path", basePath).Msg("Local storage directory ensured")

	return &LocalStorage{basePath: basePath}, nil
}

// ArchiveRoster writes the uploaded file under
// <base>/school_<schoolID>/<uploadID>_<name> and returns the stored path.
// The upload ID prefix keeps repeated uploads of the same file distinct.
func (ls *LocalStorage) ArchiveRoster(schoolID, uploadID int64, fileName string, data []byte) (string, error) {
	dir := filepath.Join(ls.basePath, fmt.Sprintf("school_%d", schoolID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Error().Err(err).Str("path", dir).Msg("Failed to create school archive directory")
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	dstPath := filepath.Join(dir, fmt.Sprintf("%d_%s", uploadID, sanitizeFileName(fileName)))
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		logger.Error().Err(err).Str("path", dstPath).Msg("Failed to write archived roster")
		return "", fmt.Errorf("failed to archive roster file: %w", err)
	}

	logger.Info().Str("path", dstPath).Int64("uploadID", uploadID).Msg("Roster file archived")
	return dstPath, nil
}

// sanitizeFileName strips path separators and control characters from a
// client-supplied file name
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\' || unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "upload"
	}
	return b.String()
}
