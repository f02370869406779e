package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/creativemate/pkg/provider/stt/whisper"
)

// ValidLLMProviders lists the accepted names for providers.llm.name.
var ValidLLMProviders = map[string]bool{
	"ollama":    true,
	"openai":    true,
	"anthropic": true,
	"gemini":    true,
	"deepseek":  true,
	"mistral":   true,
	"groq":      true,
	"llamacpp":  true,
	"llamafile": true,
}

// ValidSTTProviders lists the accepted names for providers.stt.name.
var ValidSTTProviders = map[string]bool{
	"whisper":        true,
	"whisper-native": true,
}

// ValidEmbeddingsProviders lists the accepted names for providers.embeddings.name.
var ValidEmbeddingsProviders = map[string]bool{
	"ollama": true,
	"openai": true,
}

// Load reads and validates the YAML configuration file at path. Values absent
// from the file keep their defaults from [Default].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes and validates YAML configuration from r. Unknown
// fields are rejected so typos surface immediately instead of being silently
// ignored.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file means "all defaults".
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: decode: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors. All problems found are
// reported together in a single joined error. Suspicious but workable values
// only produce warnings.
func (c *Config) Validate() error {
	var errs []error

	if !c.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("config: invalid log.level %q (want debug, info, warn or error)", c.Log.Level))
	}

	if name := c.Providers.LLM.Name; name != "" && !ValidLLMProviders[name] {
		errs = append(errs, fmt.Errorf("config: unknown providers.llm.name %q", name))
	}
	if name := c.Providers.STT.Name; name != "" && !ValidSTTProviders[name] {
		errs = append(errs, fmt.Errorf("config: unknown providers.stt.name %q", name))
	}
	if name := c.Providers.Embeddings.Name; name != "" && !ValidEmbeddingsProviders[name] {
		errs = append(errs, fmt.Errorf("config: unknown providers.embeddings.name %q", name))
	}

	if c.Providers.STT.Name == "whisper-native" && c.Providers.STT.ModelPath == "" {
		errs = append(errs, errors.New("config: providers.stt.model_path is required for whisper-native"))
	}
	if size := c.Providers.STT.ModelSize; size != "" && !whisper.ModelSize(size).IsValid() {
		errs = append(errs, fmt.Errorf("config: unknown providers.stt.model_size %q", size))
	}

	if c.Knowledge.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("config: knowledge.chunk_size must be positive, got %d", c.Knowledge.ChunkSize))
	}
	if c.Knowledge.ChunkOverlap < 0 {
		errs = append(errs, fmt.Errorf("config: knowledge.chunk_overlap must not be negative, got %d", c.Knowledge.ChunkOverlap))
	}
	if c.Knowledge.ChunkSize > 0 && c.Knowledge.ChunkOverlap >= c.Knowledge.ChunkSize {
		errs = append(errs, fmt.Errorf("config: knowledge.chunk_overlap (%d) must be smaller than knowledge.chunk_size (%d)",
			c.Knowledge.ChunkOverlap, c.Knowledge.ChunkSize))
	}
	if c.Knowledge.TopK <= 0 {
		errs = append(errs, fmt.Errorf("config: knowledge.top_k must be positive, got %d", c.Knowledge.TopK))
	}
	if c.Knowledge.EmbeddingDimensions <= 0 {
		errs = append(errs, fmt.Errorf("config: knowledge.embedding_dimensions must be positive, got %d", c.Knowledge.EmbeddingDimensions))
	}
	if c.Knowledge.Collection == "" {
		errs = append(errs, errors.New("config: knowledge.collection must not be empty"))
	}

	if c.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.sample_rate must be positive, got %d", c.Capture.SampleRate))
	}
	if c.Capture.Channels <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.channels must be positive, got %d", c.Capture.Channels))
	}
	if c.Capture.FrameSamples <= 0 {
		errs = append(errs, fmt.Errorf("config: capture.frame_samples must be positive, got %d", c.Capture.FrameSamples))
	}

	if c.Timeouts.RetrievalMs <= 0 {
		errs = append(errs, fmt.Errorf("config: timeouts.retrieval_ms must be positive, got %d", c.Timeouts.RetrievalMs))
	}
	if c.Timeouts.TranscriptionMs <= 0 {
		errs = append(errs, fmt.Errorf("config: timeouts.transcription_ms must be positive, got %d", c.Timeouts.TranscriptionMs))
	}

	// Soft warnings for configurations that will work but likely not as
	// intended.
	if c.Knowledge.PostgresDSN == "" {
		slog.Warn("config: knowledge.postgres_dsn is empty, knowledge-base retrieval will be disabled")
	}
	if c.Capture.SampleRate > 0 && c.Capture.SampleRate != 16000 {
		slog.Warn("config: capture.sample_rate differs from 16000, native whisper transcription will reject captured audio",
			"sample_rate", c.Capture.SampleRate)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		slog.Warn("config: chat.temperature outside the usual [0, 2] range", "temperature", c.Chat.Temperature)
	}

	return errors.Join(errs...)
}
