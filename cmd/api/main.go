// @title           Document Pipeline & Hybrid Search API
// @version         1.0
// @description     This API handles document upload, parsing, summarization and hybrid dense/sparse retrieval
// @termsOfService  http://swagger.io/terms/

// @contact.name    API Support
// @contact.url
// @contact.email

// @license.name    Apache 2.0
// @license.url     http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8004
// @BasePath  /
// @schemes   http https
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/docupipe/docupipe/internal/config"
	"github.com/docupipe/docupipe/internal/data/registry"
	"github.com/docupipe/docupipe/internal/handlers"
	"github.com/docupipe/docupipe/internal/parse"
	"github.com/docupipe/docupipe/internal/parse/llamaparse"
	"github.com/docupipe/docupipe/internal/parse/local"
	"github.com/docupipe/docupipe/internal/pipeline"
	"github.com/docupipe/docupipe/internal/rag/embedding"
	"github.com/docupipe/docupipe/internal/rag/embedding/googleEmbedding"
	"github.com/docupipe/docupipe/internal/rag/embedding/openaiEmbedding"
	"github.com/docupipe/docupipe/internal/rag/vectordb/qdrantDB"
	"github.com/docupipe/docupipe/internal/server"
	"github.com/docupipe/docupipe/internal/storage"
	"github.com/docupipe/docupipe/internal/summarize"
	"github.com/docupipe/docupipe/internal/summarize/gemini"
	"github.com/docupipe/docupipe/internal/summarize/openaiSummarizer"
	"github.com/docupipe/docupipe/pkg/logger_i"
)

var listenAddr string

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	config.LoadDotEnv()
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.Parse()

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	fileStore, err := storage.NewFileStore(config.DataDir())
	if err != nil {
		logger.Error("Could not initialize the file store", "error", err)
		return
	}

	var documentRegistry registry.DocumentRegistry
	if redisRegistry := registry.GetRedisRegistry(serviceContext); redisRegistry != nil {
		documentRegistry = redisRegistry
	} else {
		logger.Error("Redis registry is offline")
		if !config.FallbackToInMemory {
			return
		}
		documentRegistry = registry.InitInMemoryRegistry()
	}

	parser := selectParser(logger)
	summarizer := selectSummarizer(serviceContext)
	embedder := selectEmbedder(serviceContext)
	vectorDB := qdrantDB.GetQdrantClient(serviceContext)

	if parser == nil || summarizer == nil || embedder == nil || vectorDB == nil {
		logger.Error("One or more external services failed to initialize. Shutting down.")
		logger.Debug("Available services : ", "Parser", parser != nil, "Summarizer", summarizer != nil, "Embedder", embedder != nil, "VectorDB", vectorDB != nil)
		return
	}

	pipelineService := pipeline.NewService(fileStore, documentRegistry, parser, summarizer, embedder, vectorDB)
	handlers.Init(pipelineService)

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		CloseServices:    closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

// selectParser prefers the managed parsing service and falls back to the
// local extractor when no API key is provisioned.
func selectParser(logger *logger_i.Logger) parse.Parser {
	if key := config.LlamaParseAPIKey(); key != "" {
		return llamaparse.NewClient(config.LlamaParseBaseURL, key)
	}
	logger.Warn("LLAMAPARSE_API_KEY is not set, using the local extractor")
	return local.NewExtractor()
}

func selectSummarizer(ctx context.Context) summarize.Summarizer {
	switch config.SummaryProvider {
	case "gemini":
		return gemini.GetGeminiSummarizer(ctx, config.GeminiModelName, config.GoogleAPIKey())
	default:
		return openaiSummarizer.GetOpenAISummarizer(config.OpenAIChatModel, config.OpenAIAPIKey())
	}
}

func selectEmbedder(ctx context.Context) embedding.Embedder {
	switch config.EmbeddingProvider {
	case "google":
		return googleEmbedding.GetGoogleEmbeddingClient(ctx, config.GoogleEmbeddingModel, config.GoogleAPIKey())
	default:
		return openaiEmbedding.GetOpenAIEmbeddingClient(config.OpenAIEmbeddingModel, config.OpenAIAPIKey())
	}
}
