package document

import (
	"path"
	"strings"
	"time"
)

type Stage string

const (
	StageUploaded   Stage = "UPLOADED"
	StageParsed     Stage = "PARSED"
	StageEdited     Stage = "EDITED"
	StageSummarized Stage = "SUMMARIZED"
	StageIngested   Stage = "INGESTED"
)

// Document is the per-filename pipeline record. It lives in the registry so
// every service instance agrees on how far a file has progressed.
type Document struct {
	Filename       string    `json:"filename"` //unique key, original upload name
	Stage          Stage     `json:"stage"`
	UploadedPath   string    `json:"uploaded_path,omitempty"`
	ParsedPath     string    `json:"parsed_path,omitempty"`
	EditedPath     string    `json:"edited_path,omitempty"`
	SummarizedPath string    `json:"summarized_path,omitempty"`
	SparsePath     string    `json:"sparse_path,omitempty"`
	ChunkCount     int       `json:"chunk_count,omitempty"`
	CreatedTime    time.Time `json:"created_time"`
	UpdatedTime    time.Time `json:"updated_time"`
}

// ActiveContentPath returns the artifact downstream stages must read: the
// edit always wins over the original parse. Empty means summarize/ingest
// have nothing to work with yet.
func (d *Document) ActiveContentPath() string {
	if d.EditedPath != "" {
		return d.EditedPath
	}
	return d.ParsedPath
}

func (d *Document) Ingested() bool {
	return d.Stage == StageIngested
}

// Advance moves the stage pointer forward but never backwards: re-parsing an
// ingested document keeps it ingested, the artifact is simply overwritten.
func (d *Document) Advance(to Stage) {
	if rank(to) > rank(d.Stage) {
		d.Stage = to
	}
	d.UpdatedTime = time.Now()
}

func rank(s Stage) int {
	switch s {
	case StageUploaded:
		return 0
	case StageParsed:
		return 1
	case StageEdited:
		return 2
	case StageSummarized:
		return 3
	case StageIngested:
		return 4
	}
	return -1
}

// BaseName strips the extension the way artifacts are keyed on disk:
// report.pdf parses into report.md, summarizes into report.md and so on.
func BaseName(filename string) string {
	base := path.Base(filename)
	if i := strings.LastIndex(base, "."); i > 0 {
		return base[:i]
	}
	return base
}
