// Package recordings persists call audio on disk, addressed by content hash.
// All metadata is derived from the filesystem; call rows carry only the hash.
package recordings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// MaxRecordingBytes bounds a single archived recording.
const MaxRecordingBytes int64 = 32 << 20

var (
	ErrNotFound = errors.New("recording not found")
	ErrTooLarge = errors.New("recording too large")
)

// Archive stores recordings under root as prefix/hash.wav, deduplicated by
// content hash.
type Archive struct {
	root     string
	maxBytes int64
	logger   *slog.Logger
}

func NewArchive(log *slog.Logger, root string) (*Archive, error) {
	if log == nil {
		log = slog.Default()
	}
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("archive root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create archive root: %w", err)
	}
	return &Archive{
		root:     root,
		maxBytes: MaxRecordingBytes,
		logger:   log.With(slog.String("component", "recordings")),
	}, nil
}

// Store hashes and persists the audio stream, returning the content hash and
// size. A stream whose hash already exists on disk is deduplicated without a
// second write.
func (a *Archive) Store(ctx context.Context, reader io.Reader) (string, int64, error) {
	if reader == nil {
		return "", 0, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	tempFile, err := os.CreateTemp(a.root, "spool-*")
	if err != nil {
		return "", 0, fmt.Errorf("create spool file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	hasher := sha256.New()
	limited := &io.LimitedReader{R: reader, N: a.maxBytes + 1}
	written, err := io.Copy(io.MultiWriter(tempFile, hasher), limited)
	if err != nil {
		return "", 0, fmt.Errorf("spool recording: %w", err)
	}
	if written > a.maxBytes {
		return "", 0, fmt.Errorf("%w: max %d bytes", ErrTooLarge, a.maxBytes)
	}
	if written == 0 {
		return "", 0, fmt.Errorf("recording payload is empty")
	}
	contentHash := hex.EncodeToString(hasher.Sum(nil))

	finalPath := a.pathFor(contentHash)
	// Filesystem dedup: identical audio keeps the existing file.
	if _, statErr := os.Stat(finalPath); statErr == nil {
		return contentHash, written, nil
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("create hash prefix dir: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", 0, fmt.Errorf("flush spool file: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", 0, fmt.Errorf("store recording: %w", err)
	}
	keepFile = true

	a.logger.Debug("recording archived",
		slog.String("content_hash", contentHash),
		slog.Int64("bytes", written),
	)
	return contentHash, written, nil
}

// Open returns a reader for the archived recording with the given hash.
func (a *Archive) Open(contentHash string) (io.ReadCloser, error) {
	contentHash = strings.TrimSpace(contentHash)
	if len(contentHash) < 2 {
		return nil, ErrNotFound
	}
	file, err := os.Open(a.pathFor(contentHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return file, nil
}

func (a *Archive) pathFor(contentHash string) string {
	return filepath.Join(a.root, contentHash[:2], contentHash+".wav")
}
