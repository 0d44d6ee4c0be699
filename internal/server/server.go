package server

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/docupipe/docupipe/internal/adapter/utils"
	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/middleware"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

var (
	server  *http.Server
	_logger *logger_i.Logger
)

type ShutdownParams struct {
	GracefulShutdown chan os.Signal
	StopExecution    chan bool
	CloseServices    context.CancelFunc
}

func CreateServer(listenAddr string) {
	_logger = logger_i.NewLogger("Server")

	r := utils.GetRouter()

	r.Router.Get("/", middleware.GetHandler)
	r.Router.Post("/uploadfile/", middleware.UploadFileHandler)
	r.Router.Get("/listfiles/{directory}", middleware.ListFilesHandler)
	r.Router.Get("/parsefile/{filename}", middleware.ParseFileHandler)
	r.Router.Post("/savecontent/{filename}", middleware.SaveContentHandler)
	r.Router.Get("/summarizecontent/{filename}", middleware.SummarizeContentHandler)
	r.Router.Post("/ingestdocuments/{filename}", middleware.IngestDocumentsHandler)
	r.Router.Post("/hybridsearch/", middleware.HybridSearchHandler)
	r.Router.Delete("/deletefile/{directory}/{filename}", middleware.DeleteFileHandler)
	r.Router.Get("/documents/{filename}", middleware.GetDocumentHandler)

	server = &http.Server{
		Addr:         listenAddr,
		Handler:      r.Router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	_logger.Info("Server is listening at", "address", listenAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		_logger.Error("Server crashed", "error :", err.Error(), "addr", listenAddr)
	}
}

func ShutDownHandler(shutdownParams ShutdownParams) {
	state := <-shutdownParams.GracefulShutdown
	println("\nServer is shutting down", state)

	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownContextTimeout)
	defer cancel()

	done := make(chan struct{})

	go func() {
		server.SetKeepAlivesEnabled(false)

		if err := server.Shutdown(ctx); err != nil {
			_logger.Error("Could not shutdown gracefully: %s", err)
		}

		shutdownParams.CloseServices()
		close(shutdownParams.StopExecution)
		close(done)
	}()

	select {
	case <-done:
		_logger.Info("Gracefully is shutting down")
	case <-ctx.Done():
		_logger.Info("Force Shut down")
		os.Exit(1)
	}
}
