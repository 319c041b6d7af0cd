package recordings

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	archive, err := NewArchive(testLogger(), t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	return archive
}

func TestStoreAndOpen(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)
	payload := []byte("RIFF....WAVEfmt ")

	hash, size, err := archive.Store(context.Background(), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if size != int64(len(payload)) {
		t.Fatalf("size = %d, want %d", size, len(payload))
	}
	sum := sha256.Sum256(payload)
	if want := hex.EncodeToString(sum[:]); hash != want {
		t.Fatalf("hash = %s, want %s", hash, want)
	}

	reader, err := archive.Open(hash)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read recording: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("recording bytes differ")
	}
}

func TestStoreDeduplicates(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)
	payload := []byte("same audio twice")

	first, _, err := archive.Store(context.Background(), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("first Store: %v", err)
	}
	second, _, err := archive.Store(context.Background(), bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("second Store: %v", err)
	}
	if first != second {
		t.Fatalf("hashes differ: %s vs %s", first, second)
	}

	entries, err := os.ReadDir(filepath.Join(archive.root, first[:2]))
	if err != nil {
		t.Fatalf("read prefix dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("prefix dir has %d entries, want 1", len(entries))
	}
}

func TestStoreRejectsOversize(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)
	archive.maxBytes = 16

	_, _, err := archive.Store(context.Background(), strings.NewReader(strings.Repeat("x", 17)))
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
}

func TestStoreRejectsEmpty(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)

	if _, _, err := archive.Store(context.Background(), bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestStoreLeavesNoSpoolFiles(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)
	archive.maxBytes = 8

	_, _, _ = archive.Store(context.Background(), strings.NewReader("way past the limit"))

	entries, err := os.ReadDir(archive.root)
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), "spool-") {
			t.Fatalf("spool file left behind: %s", entry.Name())
		}
	}
}

func TestOpenUnknownHash(t *testing.T) {
	t.Parallel()
	archive := newTestArchive(t)

	if _, err := archive.Open(strings.Repeat("ab", 32)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if _, err := archive.Open(""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank hash err = %v, want ErrNotFound", err)
	}
}

func TestNewArchiveRequiresRoot(t *testing.T) {
	t.Parallel()
	if _, err := NewArchive(testLogger(), "  "); err == nil {
		t.Fatal("expected error for blank root")
	}
}
