package pipeline_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/data/registry"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/pipeline"
	"github.com/docupipe/docupipe/internal/rag/sparse"
	"github.com/docupipe/docupipe/internal/rag/vectordb"
	"github.com/docupipe/docupipe/internal/storage"
)

type testDeps struct {
	service    pipeline.Service
	parser     *MockParser
	summarizer *MockSummarizer
	embedder   *MockEmbedder
	dense      *MockDenseIndex
	dataDir    string
}

func newTestService(t *testing.T) testDeps {
	t.Helper()

	dir := t.TempDir()
	files, err := storage.NewFileStore(dir)
	require.NoError(t, err)

	deps := testDeps{
		parser:     &MockParser{},
		summarizer: &MockSummarizer{},
		embedder:   &MockEmbedder{},
		dense:      &MockDenseIndex{},
		dataDir:    dir,
	}
	deps.service = pipeline.NewService(files, registry.InitInMemoryRegistry(), deps.parser, deps.summarizer, deps.embedder, deps.dense)
	return deps
}

func uploadAndParse(t *testing.T, d testDeps, filename string) {
	t.Helper()
	ctx := context.Background()
	_, err := d.service.Upload(ctx, filename, []byte("%PDF-fake-bytes"))
	require.NoError(t, err)
	_, err = d.service.Parse(ctx, filename)
	require.NoError(t, err)
}

func loadSparseIndex(t *testing.T, d testDeps) *sparse.Index {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(d.dataDir, config.SparseIndexDir, config.DefaultNamespace+".json"))
	require.NoError(t, err)
	idx, err := sparse.Load(data)
	require.NoError(t, err)
	return idx
}

func TestUploadValidation(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	_, err := d.service.Upload(ctx, "", []byte("data"))
	assert.True(t, fault.IsKind(err, fault.KindValidation))

	_, err = d.service.Upload(ctx, "empty.pdf", nil)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestSummarizeBeforeParseIsNotFound(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	_, err := d.service.Upload(ctx, "report.pdf", []byte("%PDF-fake-bytes"))
	require.NoError(t, err)

	_, err = d.service.Summarize(ctx, "report.pdf")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))

	_, err = d.service.Ingest(ctx, "report.pdf")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestSummarizeUnknownFileIsNotFound(t *testing.T) {
	d := newTestService(t)

	_, err := d.service.Summarize(context.Background(), "never-uploaded.pdf")
	assert.True(t, fault.IsKind(err, fault.KindNotFound))
}

func TestEditedContentIsPreferred(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	require.NoError(t, d.service.SaveEdit(ctx, "report.pdf", "reviewer corrected text"))

	_, err := d.service.Summarize(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "reviewer corrected text", d.summarizer.LastText)
}

func TestSaveEditRoundTrip(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	content := "# Title\n\nline one\nline two with unicode: §±µ\n"
	require.NoError(t, d.service.SaveEdit(ctx, "report.pdf", content))

	got, err := d.service.ReadEdit(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestReIngestReplacesNotDuplicates(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	first, err := d.service.Ingest(ctx, "report.pdf")
	require.NoError(t, err)
	require.Greater(t, first.ChunkCount, 0)

	second, err := d.service.Ingest(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)

	assert.Len(t, d.dense.StoredChunks(config.DefaultNamespace, "report.pdf"), second.ChunkCount)

	idx := loadSparseIndex(t, d)
	assert.Equal(t, second.ChunkCount, idx.ChunkCount("report.pdf"))
}

func TestSearchOnEmptyCorpus(t *testing.T) {
	d := newTestService(t)

	results, err := d.service.Search(context.Background(), "anything", 5, 0.5)
	require.NoError(t, err)
	assert.Empty(t, results)
	//no point paying for an embedding when there is nothing to match
	assert.Equal(t, 0, d.embedder.QueryCalls)
}

func TestSearchValidation(t *testing.T) {
	d := newTestService(t)

	_, err := d.service.Search(context.Background(), "", 5, 0.5)
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestSearchMergesDenseAndSparse(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	d.parser.OnParse = func(ctx context.Context, filename string, raw []byte) (string, error) {
		return "the quarterly revenue grew strongly this period", nil
	}
	uploadAndParse(t, d, "report.pdf")
	_, err := d.service.Ingest(ctx, "report.pdf")
	require.NoError(t, err)

	d.dense.OnQuery = func(ctx context.Context, namespace string, vector []float32, topK int) ([]vectordb.Hit, error) {
		return []vectordb.Hit{{Ref: "report.pdf:0", Filename: "report.pdf", Content: "the quarterly revenue grew strongly this period", Score: 0.9}}, nil
	}

	results, err := d.service.Search(ctx, "quarterly revenue", 5, 0.5)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	//the chunk matched by both retrievers carries both component scores
	top := results[0]
	assert.Equal(t, "report.pdf:0", top.Ref)
	assert.Greater(t, top.Dense, 0.0)
	assert.Greater(t, top.Sparse, 0.0)
}

func TestParseRetriesOnceOnRetryableFault(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	attempts := 0
	d.parser.OnParse = func(ctx context.Context, filename string, raw []byte) (string, error) {
		attempts++
		if attempts == 1 {
			return "", fault.Upstream(nil, true, "rate limited")
		}
		return "recovered markdown", nil
	}

	_, err := d.service.Upload(ctx, "flaky.pdf", []byte("%PDF-fake-bytes"))
	require.NoError(t, err)

	markdown, err := d.service.Parse(ctx, "flaky.pdf")
	require.NoError(t, err)
	assert.Equal(t, "recovered markdown", markdown)
	assert.Equal(t, 2, attempts)
}

func TestParseDoesNotRetryNonRetryableFault(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	d.parser.OnParse = func(ctx context.Context, filename string, raw []byte) (string, error) {
		return "", fault.Upstream(nil, false, "unsupported file")
	}

	_, err := d.service.Upload(ctx, "bad.pdf", []byte("%PDF-fake-bytes"))
	require.NoError(t, err)

	_, err = d.service.Parse(ctx, "bad.pdf")
	assert.True(t, fault.IsKind(err, fault.KindUpstream))
	assert.Equal(t, 1, d.parser.Calls)
}

func TestFailedParseKeepsPriorArtifact(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	d.parser.OnParse = func(ctx context.Context, filename string, raw []byte) (string, error) {
		return "", fault.Upstream(nil, false, "provider exploded")
	}
	_, err := d.service.Parse(ctx, "report.pdf")
	require.Error(t, err)

	//the original markdown is still there for the later stages
	_, err = d.service.Summarize(ctx, "report.pdf")
	assert.NoError(t, err)
}

func TestConcurrentIngestSameFile(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = d.service.Ingest(ctx, "report.pdf")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	doc, err := d.service.GetDocument(ctx, "report.pdf")
	require.NoError(t, err)
	idx := loadSparseIndex(t, d)
	assert.Equal(t, doc.ChunkCount, idx.ChunkCount("report.pdf"))
	assert.Len(t, d.dense.StoredChunks(config.DefaultNamespace, "report.pdf"), doc.ChunkCount)
}

func TestConcurrentParseAndIngestSameFile(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	//every parse emits a distinct full body; a half-written artifact would
	//show up as a chunk that matches none of them
	var revision int32
	bodies := sync.Map{}
	d.parser.OnParse = func(ctx context.Context, filename string, raw []byte) (string, error) {
		n := atomic.AddInt32(&revision, 1)
		body := fmt.Sprintf("revision %03d of the report body, short enough for a single chunk", n)
		bodies.Store(body, true)
		return body, nil
	}
	uploadAndParse(t, d, "report.pdf")

	var wg sync.WaitGroup
	parseErrs := make([]error, 6)
	ingestErrs := make([]error, 6)
	for i := 0; i < 6; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_, parseErrs[n] = d.service.Parse(ctx, "report.pdf")
		}(i)
		go func(n int) {
			defer wg.Done()
			_, ingestErrs[n] = d.service.Ingest(ctx, "report.pdf")
		}(i)
	}
	wg.Wait()

	for i := 0; i < 6; i++ {
		require.NoError(t, parseErrs[i])
		require.NoError(t, ingestErrs[i])
	}

	isFullBody := func(content string) bool {
		_, ok := bodies.Load(content)
		return ok
	}

	stored := d.dense.StoredChunks(config.DefaultNamespace, "report.pdf")
	require.Len(t, stored, 1)
	assert.True(t, isFullBody(stored[0].Content), "dense chunk is a truncated artifact: %q", stored[0].Content)

	idx := loadSparseIndex(t, d)
	require.Equal(t, 1, idx.ChunkCount("report.pdf"))
	hits := idx.Score("revision report body", 1)
	require.NotEmpty(t, hits)
	assert.True(t, isFullBody(hits[0].Content), "sparse chunk is a truncated artifact: %q", hits[0].Content)
}

func TestConcurrentIngestDistinctFiles(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	names := []string{"a.pdf", "b.pdf", "c.pdf"}
	for _, n := range names {
		uploadAndParse(t, d, n)
	}

	var wg sync.WaitGroup
	errs := make([]error, len(names))
	for i, n := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			_, errs[i] = d.service.Ingest(ctx, name)
		}(i, n)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	idx := loadSparseIndex(t, d)
	for _, n := range names {
		assert.Greater(t, idx.ChunkCount(n), 0, n)
	}
}

func TestDeleteFileClearsArtifactReference(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	uploadAndParse(t, d, "report.pdf")

	require.NoError(t, d.service.DeleteFile(ctx, config.ParsedFileDir, "report.md"))

	doc, err := d.service.GetDocument(ctx, "report.pdf")
	require.NoError(t, err)
	assert.Empty(t, doc.ParsedPath)
	assert.NotEmpty(t, doc.UploadedPath)
}

func TestDeleteFileInvalidDirectory(t *testing.T) {
	d := newTestService(t)

	err := d.service.DeleteFile(context.Background(), "not_a_stage_dir", "x.pdf")
	assert.True(t, fault.IsKind(err, fault.KindValidation))
}

func TestStageProgression(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	_, err := d.service.Upload(ctx, "report.pdf", []byte("%PDF-fake-bytes"))
	require.NoError(t, err)
	doc, _ := d.service.GetDocument(ctx, "report.pdf")
	assert.Equal(t, "UPLOADED", string(doc.Stage))

	_, err = d.service.Parse(ctx, "report.pdf")
	require.NoError(t, err)
	doc, _ = d.service.GetDocument(ctx, "report.pdf")
	assert.Equal(t, "PARSED", string(doc.Stage))

	_, err = d.service.Ingest(ctx, "report.pdf")
	require.NoError(t, err)
	doc, _ = d.service.GetDocument(ctx, "report.pdf")
	assert.Equal(t, "INGESTED", string(doc.Stage))

	//re-uploading never moves the stage backwards
	_, err = d.service.Upload(ctx, "report.pdf", []byte("%PDF-new-bytes"))
	require.NoError(t, err)
	doc, _ = d.service.GetDocument(ctx, "report.pdf")
	assert.Equal(t, "INGESTED", string(doc.Stage))
}
