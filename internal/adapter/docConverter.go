package adapter

import (
	"github.com/docupipe/docupipe/internal/api"
	"github.com/docupipe/docupipe/internal/domain/document"
	"github.com/docupipe/docupipe/internal/domain/fault"
	"github.com/docupipe/docupipe/internal/rag/hybrid"
)

func ToFileResponse(doc document.Document) api.FileResponse {
	return api.FileResponse{
		Filename: doc.Filename,
		FilePath: doc.UploadedPath,
	}
}

func ToParseResponse(doc document.Document, markdown string) api.ParseResponse {
	return api.ParseResponse{
		TextContent: markdown,
		Metadata: api.ContentMetadata{
			FileName: doc.Filename,
			FilePath: doc.ParsedPath,
		},
	}
}

func ToSummaryResponse(doc document.Document, summary string) api.SummaryResponse {
	return api.SummaryResponse{
		Summary: summary,
		Metadata: api.ContentMetadata{
			FileName: doc.Filename,
			FilePath: doc.SummarizedPath,
		},
	}
}

func ToDocumentResponse(doc document.Document) api.DocumentResponse {
	return api.DocumentResponse{
		Filename:    doc.Filename,
		Stage:       string(doc.Stage),
		ChunkCount:  doc.ChunkCount,
		CreatedTime: doc.CreatedTime,
		UpdatedTime: doc.UpdatedTime,
	}
}

func ToSearchResponse(query string, results []hybrid.Result) api.SearchResponse {
	hits := make([]api.SearchHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, api.SearchHit{
			Filename:    r.Filename,
			ChunkRef:    r.Ref,
			Content:     r.Content,
			Score:       r.Score,
			DenseScore:  r.Dense,
			SparseScore: r.Sparse,
		})
	}
	return api.SearchResponse{Query: query, Results: hits}
}

func ToErrorResponse(err error) api.ErrorResponse {
	f := fault.From(err)
	return api.ErrorResponse{
		Error:     f.Message,
		Kind:      string(f.Kind),
		Retryable: f.Retryable,
	}
}
