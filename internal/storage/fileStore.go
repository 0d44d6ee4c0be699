package storage

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

// StageDirs is the whitelist the list/delete endpoints accept. Anything else
// is a validation error, never a path the caller gets to walk.
var StageDirs = []string{
	config.UploadedFileDir,
	config.ParsedFileDir,
	config.EditedFileDir,
	config.SummarizedFileDir,
	config.SparseIndexDir,
}

// FileStore persists stage artifacts under one root, one directory per
// pipeline stage. All writes go through a temp file and a rename so a
// concurrent reader never sees a half written artifact.
type FileStore struct {
	root   string
	logger *logger_i.Logger
}

func NewFileStore(root string) (*FileStore, error) {
	fs := &FileStore{
		root:   root,
		logger: logger_i.NewLogger("FileStore"),
	}
	for _, dir := range StageDirs {
		if err := os.MkdirAll(filepath.Join(root, dir), 0750); err != nil {
			return nil, fault.Storage(err, "creating stage directory %s", dir)
		}
	}
	fs.logger.Info("File store initialized", "root", root)
	return fs, nil
}

func (fs *FileStore) IsStageDir(dir string) bool {
	for _, d := range StageDirs {
		if d == dir {
			return true
		}
	}
	return false
}

// Path returns the artifact location for a stage directory and filename.
// Filenames are flattened to their base so "../" never escapes the root.
func (fs *FileStore) Path(dir, filename string) string {
	return filepath.Join(fs.root, dir, filepath.Base(filename))
}

func (fs *FileStore) Write(dir, filename string, data []byte) (string, error) {
	target := fs.Path(dir, filename)

	tmp, err := os.CreateTemp(filepath.Join(fs.root, dir), ".tmp-*")
	if err != nil {
		return "", fault.Storage(err, "creating temp file for %s", filename)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fault.Storage(err, "writing %s", filename)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fault.Storage(err, "closing temp file for %s", filename)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return "", fault.Storage(err, "committing %s", filename)
	}

	fs.logger.Debug("Wrote artifact", "path", target, "bytes", len(data))
	return target, nil
}

func (fs *FileStore) Read(dir, filename string) ([]byte, error) {
	target := fs.Path(dir, filename)
	data, err := os.ReadFile(target)
	if os.IsNotExist(err) {
		return nil, fault.NotFound("file %s not found in %s", filepath.Base(filename), dir)
	}
	if err != nil {
		return nil, fault.Storage(err, "reading %s", target)
	}
	return data, nil
}

func (fs *FileStore) Exists(dir, filename string) bool {
	_, err := os.Stat(fs.Path(dir, filename))
	return err == nil
}

func (fs *FileStore) List(dir string) ([]string, error) {
	if !fs.IsStageDir(dir) {
		return nil, fault.Validation("invalid directory %q", dir)
	}
	entries, err := os.ReadDir(filepath.Join(fs.root, dir))
	if err != nil {
		return nil, fault.Storage(err, "listing %s", dir)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (fs *FileStore) Delete(dir, filename string) error {
	if !fs.IsStageDir(dir) {
		return fault.Validation("invalid directory %q", dir)
	}
	target := fs.Path(dir, filename)
	err := os.Remove(target)
	if os.IsNotExist(err) {
		return fault.NotFound("file %s not found in %s", filepath.Base(filename), dir)
	}
	if err != nil {
		return fault.Storage(err, "deleting %s", target)
	}
	fs.logger.Debug("Deleted artifact", "path", target)
	return nil
}
