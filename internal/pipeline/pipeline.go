package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/data/registry"
	"github.com/docupipe/docupipe/internal/domain/document"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/metrics"
	"github.com/docupipe/docupipe/internal/parse"
	"github.com/docupipe/docupipe/internal/rag/chunk"
	"github.com/docupipe/docupipe/internal/rag/embedding"
	"github.com/docupipe/docupipe/internal/rag/hybrid"
	"github.com/docupipe/docupipe/internal/rag/sparse"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
	"github.com/docupipe/docupipe/internal/storage"
	"github.com/docupipe/docupipe/internal/summarize"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

// IngestResult reports what one ingest run produced.
type IngestResult struct {
	Filename   string
	ChunkCount int
}

// Service is the pipeline orchestrator: it owns stage sequencing, the
// per-filename serialization, the single-retry policy for transient upstream
// failures, and the registry bookkeeping. Handlers call this, never the
// adapters directly.
type Service interface {
	Upload(ctx context.Context, filename string, data []byte) (document.Document, error)
	ListFiles(ctx context.Context, dir string) ([]string, error)
	Parse(ctx context.Context, filename string) (string, error)
	SaveEdit(ctx context.Context, filename string, content string) error
	ReadEdit(ctx context.Context, filename string) (string, error)
	Summarize(ctx context.Context, filename string) (string, error)
	Ingest(ctx context.Context, filename string) (IngestResult, error)
	Search(ctx context.Context, query string, topK int, alpha float64) ([]hybrid.Result, error)
	DeleteFile(ctx context.Context, dir string, filename string) error
	GetDocument(ctx context.Context, filename string) (document.Document, error)
}

type service struct {
	files      *storage.FileStore
	registry   registry.DocumentRegistry
	parser     parse.Parser
	summarizer summarize.Summarizer
	embedder   embedding.Embedder
	dense      vectordb.DenseIndex
	namespace  string

	locks    *keyedLocks
	sparseMu sync.Mutex //load-modify-write of the shared sparse index file
	logger   *logger_i.Logger
}

func NewService(
	files *storage.FileStore,
	reg registry.DocumentRegistry,
	parser parse.Parser,
	summarizer summarize.Summarizer,
	embedder embedding.Embedder,
	dense vectordb.DenseIndex,
) Service {
	return &service{
		files:      files,
		registry:   reg,
		parser:     parser,
		summarizer: summarizer,
		embedder:   embedder,
		dense:      dense,
		namespace:  config.DefaultNamespace,
		locks:      newKeyedLocks(),
		logger:     logger_i.NewLogger("Pipeline"),
	}
}

func (s *service) Upload(ctx context.Context, filename string, data []byte) (_ document.Document, err error) {
	log := s.traceLogger(ctx, filename)
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("upload", time.Since(start), err) }()

	if filename == "" {
		return document.Document{}, fault.Validation("file must have a filename")
	}
	if len(data) == 0 {
		return document.Document{}, fault.Validation("uploaded file is empty")
	}

	lock := s.locks.get(filename)
	lock.Lock()
	defer lock.Unlock()

	uploadedPath, err := s.files.Write(config.UploadedFileDir, filename, data)
	if err != nil {
		return document.Document{}, err
	}

	doc, found := s.registry.Get(ctx, filename)
	if !found {
		doc = document.Document{
			Filename:    filename,
			Stage:       document.StageUploaded,
			CreatedTime: time.Now(),
		}
	}
	doc.UploadedPath = uploadedPath
	doc.Advance(document.StageUploaded)

	if err := s.registry.Save(ctx, doc); err != nil {
		return document.Document{}, err
	}
	log.Info("Uploaded document", "bytes", len(data))
	return doc, nil
}

func (s *service) ListFiles(ctx context.Context, dir string) ([]string, error) {
	return s.files.List(dir)
}

func (s *service) Parse(ctx context.Context, filename string) (_ string, err error) {
	log := s.traceLogger(ctx, filename)
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("parse", time.Since(start), err) }()

	lock := s.locks.get(filename)
	lock.Lock()
	defer lock.Unlock()

	doc, found := s.registry.Get(ctx, filename)
	if !found {
		return "", fault.NotFound("file %s not found", filename)
	}

	raw, err := s.files.Read(config.UploadedFileDir, filename)
	if err != nil {
		return "", err
	}

	var markdown string
	err = s.withRetry(ctx, log, "parse", func() error {
		var callErr error
		markdown, callErr = s.parser.Parse(ctx, filename, raw)
		return callErr
	})
	if err != nil {
		//failed parse leaves any previously persisted artifact untouched
		return "", err
	}
	if markdown == "" {
		return "", fault.Upstream(nil, false, "parser produced empty content")
	}

	artifact := document.BaseName(filename) + ".md"
	parsedPath, err := s.files.Write(config.ParsedFileDir, artifact, []byte(markdown))
	if err != nil {
		return "", err
	}

	doc.ParsedPath = parsedPath
	doc.Advance(document.StageParsed)
	if err := s.registry.Save(ctx, doc); err != nil {
		return "", err
	}
	log.Info("Parsed document", "markdownBytes", len(markdown))
	return markdown, nil
}

func (s *service) SaveEdit(ctx context.Context, filename string, content string) (err error) {
	log := s.traceLogger(ctx, filename)
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("edit", time.Since(start), err) }()

	if content == "" {
		return fault.Validation("edited content must not be empty")
	}

	lock := s.locks.get(filename)
	lock.Lock()
	defer lock.Unlock()

	doc, found := s.registry.Get(ctx, filename)
	if !found {
		return fault.NotFound("file %s not found", filename)
	}

	artifact := document.BaseName(filename) + ".md"
	editedPath, err := s.files.Write(config.EditedFileDir, artifact, []byte(content))
	if err != nil {
		return err
	}

	doc.EditedPath = editedPath
	doc.Advance(document.StageEdited)
	if err := s.registry.Save(ctx, doc); err != nil {
		return err
	}
	log.Info("Saved edited content", "bytes", len(content))
	return nil
}

func (s *service) ReadEdit(ctx context.Context, filename string) (string, error) {
	doc, found := s.registry.Get(ctx, filename)
	if !found || doc.EditedPath == "" {
		return "", fault.NotFound("no edited content for %s", filename)
	}
	data, err := s.files.Read(config.EditedFileDir, document.BaseName(filename)+".md")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *service) Summarize(ctx context.Context, filename string) (_ string, err error) {
	log := s.traceLogger(ctx, filename)
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("summarize", time.Since(start), err) }()

	lock := s.locks.get(filename)
	lock.Lock()
	defer lock.Unlock()

	doc, content, err := s.activeContent(ctx, filename)
	if err != nil {
		return "", err
	}

	var summary string
	err = s.withRetry(ctx, log, "summarize", func() error {
		var callErr error
		summary, callErr = s.summarizer.Summarize(ctx, content)
		return callErr
	})
	if err != nil {
		return "", err
	}

	artifact := document.BaseName(filename) + ".md"
	summarizedPath, err := s.files.Write(config.SummarizedFileDir, artifact, []byte(summary))
	if err != nil {
		return "", err
	}

	doc.SummarizedPath = summarizedPath
	doc.Advance(document.StageSummarized)
	if err := s.registry.Save(ctx, doc); err != nil {
		return "", err
	}
	log.Info("Summarized document", "summaryBytes", len(summary))
	return summary, nil
}

func (s *service) Ingest(ctx context.Context, filename string) (_ IngestResult, err error) {
	log := s.traceLogger(ctx, filename)
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("ingest", time.Since(start), err) }()

	lock := s.locks.get(filename)
	lock.Lock()
	defer lock.Unlock()

	doc, content, err := s.activeContent(ctx, filename)
	if err != nil {
		return IngestResult{}, err
	}

	chunks := chunk.Split(filename, content)
	if len(chunks) == 0 {
		return IngestResult{}, fault.Validation("document %s has no indexable content", filename)
	}

	if err := s.dense.EnsureCollection(ctx); err != nil {
		return IngestResult{}, err
	}

	vectors, err := s.embedChunks(ctx, log, chunks)
	if err != nil {
		return IngestResult{}, err
	}

	err = s.withRetry(ctx, log, "dense upsert", func() error {
		return s.dense.ReplaceDocument(ctx, s.namespace, filename, chunks, vectors)
	})
	if err != nil {
		return IngestResult{}, err
	}

	if err := s.updateSparseIndex(filename, chunks); err != nil {
		return IngestResult{}, err
	}

	doc.ChunkCount = len(chunks)
	doc.SparsePath = s.files.Path(config.SparseIndexDir, s.sparseArtifact())
	doc.Advance(document.StageIngested)
	if err := s.registry.Save(ctx, doc); err != nil {
		return IngestResult{}, err
	}

	metrics.IncrementDocumentsIngested()
	log.Info("Ingested document", "chunks", len(chunks))
	return IngestResult{Filename: filename, ChunkCount: len(chunks)}, nil
}

func (s *service) Search(ctx context.Context, query string, topK int, alpha float64) (_ []hybrid.Result, err error) {
	log := s.traceLogger(ctx, "")
	start := time.Now()
	defer func() { metrics.CaptureStageMetrics("search", time.Since(start), err) }()

	if query == "" {
		return nil, fault.Validation("query must not be empty")
	}
	if topK <= 0 {
		topK = config.HybridTopKDefault
	}
	if topK > config.HybridTopKMax {
		topK = config.HybridTopKMax
	}

	//empty corpus is an empty result, not an error
	docs, err := s.registry.List(ctx)
	if err != nil {
		return nil, err
	}
	anyIngested := false
	for _, d := range docs {
		if d.Ingested() {
			anyIngested = true
			break
		}
	}
	if !anyIngested {
		log.Debug("Hybrid search on empty corpus")
		return []hybrid.Result{}, nil
	}

	var queryVector []float32
	err = s.withRetry(ctx, log, "query embedding", func() error {
		var callErr error
		queryVector, callErr = s.embedder.GetEmbedding(ctx, query)
		return callErr
	})
	if err != nil {
		return nil, err
	}

	denseHits, err := s.dense.Query(ctx, s.namespace, queryVector, topK)
	if err != nil {
		return nil, err
	}

	sparseIdx, err := s.loadSparseIndex()
	if err != nil {
		return nil, err
	}
	sparseHits := sparseIdx.Score(query, topK)

	results := hybrid.Combine(denseHits, sparseHits, alpha, topK)
	log.Debug("Hybrid search complete", "dense", len(denseHits), "sparse", len(sparseHits), "merged", len(results))
	return results, nil
}

func (s *service) DeleteFile(ctx context.Context, dir string, filename string) error {
	if err := s.files.Delete(dir, filename); err != nil {
		return err
	}

	//keep the registry record honest about which artifacts still exist
	doc, found := s.registry.Get(ctx, filename)
	if !found && dir != config.UploadedFileDir {
		//artifact files are named after the document's base name
		doc, found = s.findByArtifact(ctx, filename)
	}
	if found {
		switch dir {
		case config.UploadedFileDir:
			doc.UploadedPath = ""
		case config.ParsedFileDir:
			doc.ParsedPath = ""
		case config.EditedFileDir:
			doc.EditedPath = ""
		case config.SummarizedFileDir:
			doc.SummarizedPath = ""
		}
		if err := s.registry.Save(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) findByArtifact(ctx context.Context, artifact string) (document.Document, bool) {
	docs, err := s.registry.List(ctx)
	if err != nil {
		return document.Document{}, false
	}
	for _, d := range docs {
		if document.BaseName(d.Filename)+".md" == artifact {
			return d, true
		}
	}
	return document.Document{}, false
}

func (s *service) GetDocument(ctx context.Context, filename string) (document.Document, error) {
	doc, found := s.registry.Get(ctx, filename)
	if !found {
		return document.Document{}, fault.NotFound("file %s not found", filename)
	}
	return doc, nil
}

// activeContent enforces the content precondition shared by summarize and
// ingest, and resolves the edited-over-parsed preference.
func (s *service) activeContent(ctx context.Context, filename string) (document.Document, string, error) {
	doc, found := s.registry.Get(ctx, filename)
	if !found {
		return document.Document{}, "", fault.NotFound("file %s not found", filename)
	}
	if doc.ActiveContentPath() == "" {
		return document.Document{}, "", fault.NotFound("file %s has no parsed or edited content", filename)
	}

	dir := config.ParsedFileDir
	if doc.EditedPath != "" {
		dir = config.EditedFileDir
	}
	data, err := s.files.Read(dir, document.BaseName(filename)+".md")
	if err != nil {
		return document.Document{}, "", err
	}
	return doc, string(data), nil
}

func (s *service) embedChunks(ctx context.Context, log *logger_i.Logger, chunks []chunk.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))

	batchSize := config.EmbeddingBatchSize
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, 0, end-i)
		for _, c := range chunks[i:end] {
			texts = append(texts, c.Content)
		}

		var batch [][]float32
		err := s.withRetry(ctx, log, "embedding batch", func() error {
			var callErr error
			batch, callErr = s.embedder.BatchEmbedding(ctx, texts)
			return callErr
		})
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

func (s *service) updateSparseIndex(filename string, chunks []chunk.Chunk) error {
	s.sparseMu.Lock()
	defer s.sparseMu.Unlock()

	idx, err := s.loadSparseIndexLocked()
	if err != nil {
		return err
	}
	idx.ReplaceDocument(filename, chunks)

	data, err := idx.Marshal()
	if err != nil {
		return err
	}
	_, err = s.files.Write(config.SparseIndexDir, s.sparseArtifact(), data)
	return err
}

func (s *service) loadSparseIndex() (*sparse.Index, error) {
	s.sparseMu.Lock()
	defer s.sparseMu.Unlock()
	return s.loadSparseIndexLocked()
}

func (s *service) loadSparseIndexLocked() (*sparse.Index, error) {
	if !s.files.Exists(config.SparseIndexDir, s.sparseArtifact()) {
		return sparse.NewIndex(), nil
	}
	data, err := s.files.Read(config.SparseIndexDir, s.sparseArtifact())
	if err != nil {
		return nil, err
	}
	return sparse.Load(data)
}

func (s *service) sparseArtifact() string {
	return s.namespace + ".json"
}

// withRetry applies the orchestrator's policy: at most one automatic retry,
// and only when the adapter marked the failure retryable.
func (s *service) withRetry(ctx context.Context, log *logger_i.Logger, step string, fn func() error) error {
	err := fn()
	for attempt := 0; err != nil && attempt < config.UpstreamRetryLimit && fault.IsRetryable(err); attempt++ {
		if ctx.Err() != nil {
			return err
		}
		log.Warn("Retrying transient upstream failure", "step", step, "error", err)
		err = fn()
	}
	return err
}

func (s *service) traceLogger(ctx context.Context, filename string) *logger_i.Logger {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))
	if filename != "" {
		log = log.With("filename", filename)
	}
	return log
}
