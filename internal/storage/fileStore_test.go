package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

func TestMain(m *testing.M) {
	logger_i.Init()
	os.Exit(m.Run())
}

func newStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return fs
}

func TestWriteReadRoundtrip(t *testing.T) {
	fs := newStore(t)
	content := []byte("# Parsed markdown\n\nsome content")

	path, err := fs.Write(config.ParsedFileDir, "report.md", content)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if filepath.Base(path) != "report.md" {
		t.Errorf("unexpected artifact path %s", path)
	}

	got, err := fs.Read(config.ParsedFileDir, "report.md")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("roundtrip mismatch: got %q want %q", got, content)
	}
}

func TestReadMissingIsNotFound(t *testing.T) {
	fs := newStore(t)
	_, err := fs.Read(config.ParsedFileDir, "ghost.md")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestListRejectsUnknownDirectory(t *testing.T) {
	fs := newStore(t)
	_, err := fs.List("secret_stuff")
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("expected Validation, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	fs := newStore(t)
	if _, err := fs.Write(config.UploadedFileDir, "doomed.txt", []byte("x")); err != nil {
		t.Fatal(err)
	}

	if err := fs.Delete(config.UploadedFileDir, "doomed.txt"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	err := fs.Delete(config.UploadedFileDir, "doomed.txt")
	if !fault.IsKind(err, fault.KindNotFound) {
		t.Errorf("second delete: expected NotFound, got %v", err)
	}
	err = fs.Delete("not_a_stage", "doomed.txt")
	if !fault.IsKind(err, fault.KindValidation) {
		t.Errorf("bad directory: expected Validation, got %v", err)
	}
}

func TestPathNeverEscapesRoot(t *testing.T) {
	fs := newStore(t)
	p := fs.Path(config.UploadedFileDir, "../../etc/passwd")
	if strings.Contains(p, "..") {
		t.Errorf("path traversal not flattened: %s", p)
	}
}

// A reader racing concurrent overwrites must always observe one complete
// version of the artifact, never a truncated mix.
func TestConcurrentWritesStayAtomic(t *testing.T) {
	fs := newStore(t)
	big := strings.Repeat("abcdefgh", 8192)

	var wg sync.WaitGroup
	var fail error
	var mu sync.Mutex

	if _, err := fs.Write(config.ParsedFileDir, "race.md", []byte(big)); err != nil {
		t.Fatal(err)
	}

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				if _, err := fs.Write(config.ParsedFileDir, "race.md", []byte(big)); err != nil {
					mu.Lock()
					fail = err
					mu.Unlock()
					return
				}
			}
		}()
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				data, err := fs.Read(config.ParsedFileDir, "race.md")
				if err != nil {
					mu.Lock()
					fail = err
					mu.Unlock()
					return
				}
				if len(data) != len(big) {
					mu.Lock()
					fail = errors.New("observed truncated artifact")
					mu.Unlock()
					return
				}
			}
		}()
	}
	wg.Wait()
	if fail != nil {
		t.Fatalf("atomicity violated: %v", fail)
	}
}
