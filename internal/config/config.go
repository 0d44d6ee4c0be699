package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	IS_PROD        = false
	LOG_LEVEL_PROD = slog.LevelInfo
	TRACE_ID_KEY   = "traceId"

	RATE_LIMIT_PER_SECOND       = 2
	BURST_RATE_LIMIT_PER_SECOND = 5

	//server timeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 150 * time.Second //must exceed ParseTimeout, every stage answers synchronously
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	ServerListenAddr = ":8004"

	//upload
	MaxUploadSizeBytes = 32 << 20 //32mb

	//storage - one directory per pipeline stage
	UploadedFileDir   = "uploaded_files"
	ParsedFileDir     = "parsed_files"
	EditedFileDir     = "edited_files"
	SummarizedFileDir = "summarized_files"
	SparseIndexDir    = "bm25_indexes"

	//outbound provider timeouts
	ParseTimeout     = 120 * time.Second //LlamaParse polls until the job settles
	SummarizeTimeout = 60 * time.Second
	EmbedTimeout     = 30 * time.Second
	QueryTimeout     = 30 * time.Second

	//parsing service
	LlamaParseBaseURL      = "https://api.cloud.llamaindex.ai/api/v1/parsing"
	LlamaParsePollInterval = 2 * time.Second

	//summarization
	SummaryProvider  = "openai" // "openai" | "gemini"
	OpenAIChatModel  = "gpt-4.1-mini"
	GeminiModelName  = "gemini-2.5-flash-lite-preview-09-2025"
	SummaryMaxTokens = 512

	//embeddings
	EmbeddingProvider                   = "openai" // "openai" | "google"
	OpenAIEmbeddingModel                = "text-embedding-3-large"
	GoogleEmbeddingModel                = "gemini-embedding-001"
	EmbeddingOutputDimensionality int32 = 1536
	EmbeddingBatchSize                  = 100

	//chunking
	ChunkMaxChars     = 1000
	ChunkOverlapChars = 150
	ChunkMaxTokens    = 512

	//vectorDB
	VectorCollectionName    = "docupipe-hybrid"
	DefaultNamespace        = "docupipe-namespace"
	QdrantConnectionTimeout = 30 * time.Second
	QdrantHost              = "127.0.0.1"
	QdrantGrpcPort          = 6334
	QdrantUseTLS            = false
	QdrantPoolSize          = 1

	//hybrid search
	HybridAlphaDefault = 0.5
	HybridTopKDefault  = 3
	HybridTopKMax      = 50

	//sparse index (BM25)
	BM25K1 float64 = 1.5
	BM25B  float64 = 0.75

	//pipeline
	UpstreamRetryLimit = 1 //one automatic retry on retryable upstream failures

	//http client pooling for the parsing adapter
	MaxIdleConns        = 50
	MaxIdleConnsPerHost = 25
	IdleConnTimeout     = 60 * time.Second

	//redis document registry
	redisHost           = "127.0.0.1"
	redisPort           = "6379"
	RedisAddr           = redisHost + ":" + redisPort
	RedisPassword       = ""
	RedisRegistryDB     = 0
	RegistryKeyPrefix   = "doc:"
	FallbackToInMemory  = true //if redis init fails, stage state lives in-process
	NoAuthBypass        = true //flip off once a real token is provisioned
)

// AuthToken is the bearer token checked by the auth middleware.
var AuthToken = os.Getenv("AUTH_TOKEN")

// LoadDotEnv pulls a local .env into the process environment. Missing file is
// fine, deployments set real env vars.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func GetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func DataDir() string {
	return GetEnv("DATA_DIR", ".")
}

func LlamaParseAPIKey() string { return os.Getenv("LLAMAPARSE_API_KEY") }
func OpenAIAPIKey() string     { return os.Getenv("OPENAI_API_KEY") }
func GoogleAPIKey() string     { return os.Getenv("GOOGLE_API_KEY") }
