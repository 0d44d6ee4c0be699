package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/docupipe/docupipe/internal/adapter"
	"github.com/docupipe/docupipe/internal/adapter/utils"
	"github.com/docupipe/docupipe/internal/api"
	"github.com/docupipe/docupipe/internal/config"
)

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// UploadFileHandler godoc
// @Summary      Upload a document
// @Description  Receives a file via multipart/form-data and stores it as the pipeline's raw input.
// @Tags         Pipeline
// @Accept       multipart/form-data
// @Produce      json
// @Param        file  formData  file  true  "The document to upload"
// @Success      201  {object}  api.FileResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /uploadfile/ [post]
func UploadFileHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", "remote", r.RemoteAddr)
		return
	}

	if err := r.ParseMultipartForm(config.MaxUploadSizeBytes); err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("file")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	data, err := io.ReadAll(fileReader)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not read file")
		return
	}

	doc, err := pipelineService.Upload(r.Context(), fileMetadata.Filename, data)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusCreated, adapter.ToFileResponse(doc))
}

// ListFilesHandler godoc
// @Summary      List files in a stage directory
// @Tags         Pipeline
// @Produce      json
// @Param        directory  path  string  true  "Stage directory name"
// @Success      200  {object}  api.FilesListResponse
// @Failure      400  {object}  api.ErrorResponse
// @Router       /listfiles/{directory} [get]
func ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	dir := utils.GetChiURLParam(r, "directory")
	files, err := pipelineService.ListFiles(r.Context(), dir)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.FilesListResponse{Files: files})
}

// ParseFileHandler godoc
// @Summary      Parse an uploaded document into markdown
// @Description  Runs the uploaded file through the parsing provider and persists the markdown artifact.
// @Tags         Pipeline
// @Produce      json
// @Param        filename  path  string  true  "Uploaded filename"
// @Success      200  {object}  api.ParseResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /parsefile/{filename} [get]
func ParseFileHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	filename := utils.GetChiURLParam(r, "filename")
	markdown, err := pipelineService.Parse(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}

	doc, err := pipelineService.GetDocument(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToParseResponse(doc, markdown))
}

// SaveContentHandler godoc
// @Summary      Save manually edited content
// @Description  Persists reviewer-corrected markdown. Later stages prefer this over the parsed artifact.
// @Tags         Pipeline
// @Accept       json
// @Produce      json
// @Param        filename  path  string             true  "Uploaded filename"
// @Param        request   body  api.ContentUpdate  true  "Edited markdown content"
// @Success      200  {object}  api.SuccessResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /savecontent/{filename} [post]
func SaveContentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	var update api.ContentUpdate
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logRH.Error("Couldn't close the save content reader :", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		logRH.Warn("Bad save content request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}

	filename := utils.GetChiURLParam(r, "filename")
	if err := pipelineService.SaveEdit(r.Context(), filename, update.Content); err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.SuccessResponse{Status: "success", Message: "content saved for " + filename})
}

// SummarizeContentHandler godoc
// @Summary      Summarize document content
// @Description  Sends the active content (edited when present, parsed otherwise) to the language model.
// @Tags         Pipeline
// @Produce      json
// @Param        filename  path  string  true  "Uploaded filename"
// @Success      200  {object}  api.SummaryResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /summarizecontent/{filename} [get]
func SummarizeContentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	filename := utils.GetChiURLParam(r, "filename")
	summary, err := pipelineService.Summarize(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}

	doc, err := pipelineService.GetDocument(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSummaryResponse(doc, summary))
}

// IngestDocumentsHandler godoc
// @Summary      Ingest a document into the hybrid indexes
// @Description  Chunks the active content, embeds it into the vector store and rebuilds the document's sparse stats. Re-ingest replaces, never duplicates.
// @Tags         Retrieval
// @Produce      json
// @Param        filename  path  string  true  "Uploaded filename"
// @Success      200  {object}  api.IngestResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /ingestdocuments/{filename} [post]
func IngestDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	filename := utils.GetChiURLParam(r, "filename")
	result, err := pipelineService.Ingest(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.IngestResponse{
		Status:     "success",
		Filename:   result.Filename,
		ChunkCount: result.ChunkCount,
	})
}

// HybridSearchHandler godoc
// @Summary      Hybrid dense/sparse search
// @Description  Runs the query against the vector store and the BM25 index, normalizes both score sets and merges them with the alpha weight.
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Param        request  body  api.SearchRequest  true  "Query with optional top_k and alpha"
// @Success      200  {object}  api.SearchResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /hybridsearch/ [post]
func HybridSearchHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	var req api.SearchRequest
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			logRH.Error("Couldn't close the hybrid search reader :", "error", err)
		}
	}(r.Body)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logRH.Warn("Bad hybrid search request", "error", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}

	alpha := config.HybridAlphaDefault
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if alpha < 0 || alpha > 1 {
		WriteErrorResponse(w, http.StatusBadRequest, "alpha must be between 0 and 1")
		return
	}

	results, err := pipelineService.Search(r.Context(), req.Query, req.TopK, alpha)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToSearchResponse(req.Query, results))
}

// DeleteFileHandler godoc
// @Summary      Delete a file from a stage directory
// @Tags         Pipeline
// @Produce      json
// @Param        directory  path  string  true  "Stage directory name"
// @Param        filename   path  string  true  "Filename to delete"
// @Success      200  {object}  api.SuccessResponse
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /deletefile/{directory}/{filename} [delete]
func DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	dir := utils.GetChiURLParam(r, "directory")
	filename := utils.GetChiURLParam(r, "filename")
	if err := pipelineService.DeleteFile(r.Context(), dir, filename); err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, api.SuccessResponse{Status: "success", Message: "deleted " + filename + " from " + dir})
}

// GetDocumentHandler godoc
// @Summary      Get a document's pipeline state
// @Tags         Pipeline
// @Produce      json
// @Param        filename  path  string  true  "Uploaded filename"
// @Success      200  {object}  api.DocumentResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /documents/{filename} [get]
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		return
	}

	filename := utils.GetChiURLParam(r, "filename")
	doc, err := pipelineService.GetDocument(r.Context(), filename)
	if err != nil {
		writeFaultResponse(w, err)
		return
	}
	writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(doc))
}
