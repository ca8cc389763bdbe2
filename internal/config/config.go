package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      int
	LogLevel  string
	LogFormat string

	LLMProvider    string
	GroqAPIKey     string
	GroqBaseURL    string
	GroqModel      string
	LLMTemperature float64
	LLMMaxTokens   int

	OllamaHost     string
	OllamaModel    string
	EmbeddingModel string

	IndexBackend   string
	VectorStoreDir string
	SymptomIndex   string
	MedicalIndex   string
	DatabaseURL    string

	RetrievalK          int
	QueryExpansionCount int

	STTProvider        string
	STTLanguageCode    string
	STTAudioEncoding   string
	WhisperDefaultSize string

	AnalysisTimeout      time.Duration
	TranscriptionTimeout time.Duration

	ParserDetailsChars  int
	ParserTextChars     int
	ParserFallbackChars int
	ParserMaxListItems  int

	EventsBackend string
	NatsURL       string
	NatsToken     string
	KafkaBrokers  []string
	KafkaTopic    string
}

// Load reads configuration from the environment, after merging an optional
// .env file from the working directory.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:      envInt("TRIAGE_PORT", 8090),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		LLMProvider:    envStr("LLM_PROVIDER", "groq"),
		GroqAPIKey:     envStr("GROQ_API_KEY", ""),
		GroqBaseURL:    envStr("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		GroqModel:      envStr("GROQ_MODEL", "meta-llama/llama-4-scout-17b-16e-instruct"),
		LLMTemperature: envFloat("LLM_TEMPERATURE", 0.3),
		LLMMaxTokens:   envInt("LLM_MAX_TOKENS", 1024),

		OllamaHost:     envStr("OLLAMA_HOST", ""),
		OllamaModel:    envStr("OLLAMA_MODEL", "llama3.1"),
		EmbeddingModel: envStr("EMBEDDING_MODEL", "all-minilm"),

		IndexBackend:   envStr("INDEX_BACKEND", "file"),
		VectorStoreDir: envStr("VECTORSTORE_DIR", "vectorstore"),
		SymptomIndex:   envStr("SYMPTOM_INDEX", "symptom_preg_db"),
		MedicalIndex:   envStr("MEDICAL_INDEX", "medical_db"),
		DatabaseURL:    envStr("DATABASE_URL", ""),

		RetrievalK:          envInt("RETRIEVAL_K", 3),
		QueryExpansionCount: envInt("QUERY_EXPANSION_COUNT", 3),

		STTProvider:        envStr("STT_PROVIDER", "whisper"),
		STTLanguageCode:    envStr("STT_LANGUAGE_CODE", "en-US"),
		STTAudioEncoding:   envStr("STT_AUDIO_ENCODING", "ENCODING_UNSPECIFIED"),
		WhisperDefaultSize: envStr("WHISPER_DEFAULT_SIZE", "medium"),

		AnalysisTimeout:      envDuration("ANALYSIS_TIMEOUT", 90*time.Second),
		TranscriptionTimeout: envDuration("TRANSCRIPTION_TIMEOUT", 120*time.Second),

		ParserDetailsChars:  envInt("PARSER_DETAILS_CHARS", 500),
		ParserTextChars:     envInt("PARSER_TEXT_CHARS", 300),
		ParserFallbackChars: envInt("PARSER_FALLBACK_CHARS", 200),
		ParserMaxListItems:  envInt("PARSER_MAX_LIST_ITEMS", 5),

		EventsBackend: envStr("EVENTS_BACKEND", "none"),
		NatsURL:       envStr("NATS_URL", "nats://localhost:4222"),
		NatsToken:     envStr("NATS_TOKEN", ""),
		KafkaBrokers:  envList("KAFKA_BROKERS", nil),
		KafkaTopic:    envStr("KAFKA_TOPIC", "triage.analysis.completed"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
