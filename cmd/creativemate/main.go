// Command creativemate is the conversational backend for the CreativeMate
// creative-writing assistant.
//
// The frontend spawns it per request: one JSON object on stdin, the result on
// stdout (streamed "data: {...}" events for chat, a plain message for
// ingestion and transcription). All diagnostics go to stderr. With -live the
// backend instead records audio from a raw PCM stream, transcribes it on
// interrupt and runs the transcript through the chat pipeline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/creativemate/internal/app"
	"github.com/MrWong99/creativemate/internal/capability"
	"github.com/MrWong99/creativemate/internal/chat"
	"github.com/MrWong99/creativemate/internal/config"
	"github.com/MrWong99/creativemate/internal/knowledge"
	"github.com/MrWong99/creativemate/internal/observe"
	"github.com/MrWong99/creativemate/internal/protocol"
	"github.com/MrWong99/creativemate/pkg/audio/capture"
	"github.com/MrWong99/creativemate/pkg/audio/capture/pcmreader"
	"github.com/MrWong99/creativemate/pkg/docstore"
	"github.com/MrWong99/creativemate/pkg/docstore/postgres"
	"github.com/MrWong99/creativemate/pkg/provider/embeddings"
	ollamaembed "github.com/MrWong99/creativemate/pkg/provider/embeddings/ollama"
	oaembed "github.com/MrWong99/creativemate/pkg/provider/embeddings/openai"
	"github.com/MrWong99/creativemate/pkg/provider/llm"
	"github.com/MrWong99/creativemate/pkg/provider/llm/anyllm"
	"github.com/MrWong99/creativemate/pkg/provider/stt"
	"github.com/MrWong99/creativemate/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	livePath := flag.String("live", "", "record from a raw 16-bit PCM stream at this path instead of reading a request from stdin")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "creativemate: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the output protocol, so everything else goes to stderr.
	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	slog.Debug("creativemate starting",
		"config", *configPath,
		"log_level", cfg.Log.Level,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "creativemate",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	provider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to create llm provider", "name", cfg.Providers.LLM.Name, "err", err)
		return 1
	}
	slog.Debug("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name, "model", cfg.Providers.LLM.Model)

	speech, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		// Voice input degrades gracefully; the rest of the pipeline still works.
		slog.Warn("failed to create stt provider, voice input disabled",
			"name", cfg.Providers.STT.Name, "err", err)
		speech = nil
	}

	embedder, err := buildEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Warn("failed to create embeddings provider, knowledge base disabled",
			"name", cfg.Providers.Embeddings.Name, "err", err)
		embedder = nil
	}

	// ── Vector store ──────────────────────────────────────────────────────────
	var store docstore.Index
	if cfg.Knowledge.PostgresDSN != "" && embedder != nil {
		pg, err := postgres.NewIndex(ctx, cfg.Knowledge.PostgresDSN, cfg.Knowledge.EmbeddingDimensions)
		if err != nil {
			slog.Warn("failed to connect to vector store, knowledge base disabled", "err", err)
		} else {
			store = pg
			defer pg.Close()
		}
	}

	var kb *knowledge.Base
	if store != nil && embedder != nil {
		kb = knowledge.New(store, embedder, nil, knowledge.Config{
			Collection:       cfg.Knowledge.Collection,
			ChunkSize:        cfg.Knowledge.ChunkSize,
			ChunkOverlap:     cfg.Knowledge.ChunkOverlap,
			TopK:             cfg.Knowledge.TopK,
			RetrievalTimeout: time.Duration(cfg.Timeouts.RetrievalMs) * time.Millisecond,
		}, logger, metrics)
	}

	// ── Capability probe ──────────────────────────────────────────────────────
	caps := capability.Probe(ctx, logger,
		capability.Checker{Name: "retrieval", Check: readyCheck(kb)},
		capability.Checker{Name: "speech", Check: speechCheck(speech)},
	)

	// ── Pipeline ──────────────────────────────────────────────────────────────
	var retriever chat.Retriever
	if caps.Retrieval && kb != nil {
		retriever = kb
	}
	transcriptionTimeout := time.Duration(cfg.Timeouts.TranscriptionMs) * time.Millisecond
	pipeline := chat.NewPipeline(provider, speech, caps.Speech, retriever, chat.Config{
		Temperature:          cfg.Chat.Temperature,
		MaxTokens:            cfg.Chat.MaxTokens,
		TranscriptionTimeout: transcriptionTimeout,
	}, logger, metrics)

	// ── Live capture mode ─────────────────────────────────────────────────────
	if *livePath != "" {
		return runLive(ctx, *livePath, cfg, speech, caps, pipeline, logger)
	}

	// ── One request from stdin ────────────────────────────────────────────────
	application := app.New(kb, pipeline, speech, caps.Speech, transcriptionTimeout, logger)
	return application.Run(ctx, os.Stdin, os.Stdout)
}

// runLive records from a raw PCM stream until the first interrupt, then
// transcribes the capture and runs the transcript through the chat pipeline.
func runLive(ctx context.Context, path string, cfg *config.Config, speech stt.Engine, caps capability.Capabilities, pipeline *chat.Pipeline, logger *slog.Logger) int {
	if !caps.Speech || speech == nil {
		slog.Error("live mode needs a working stt provider")
		return 1
	}

	recorder := capture.NewRecorder(pcmreader.New(path), speech, capture.Config{
		SampleRate:   cfg.Capture.SampleRate,
		Channels:     cfg.Capture.Channels,
		FrameSamples: cfg.Capture.FrameSamples,
		JoinTimeout:  time.Duration(cfg.Capture.JoinTimeoutMs) * time.Millisecond,
	}, logger)

	if err := recorder.Start(ctx); err != nil {
		slog.Error("failed to start recording", "err", err)
		return 1
	}
	slog.Info("recording — press Ctrl+C to stop and transcribe", "source", path)

	<-ctx.Done()

	// The signal context is spent; transcription needs a fresh one.
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Timeouts.TranscriptionMs)*time.Millisecond)
	defer cancel()

	transcript, ok := recorder.Stop(stopCtx)
	if !ok {
		slog.Info("nothing transcribable was captured")
		return 0
	}
	slog.Info("captured speech", "language", transcript.Language, "duration", transcript.Duration)

	pipeline.Handle(stopCtx, chat.Request{
		Prompt:   transcript.Text,
		HadAudio: true,
	}, protocol.NewWriter(os.Stdout))
	return 0
}

// loadConfig loads the config file, falling back to built-in defaults when
// the default path does not exist. An explicitly given path must exist.
func loadConfig(path string) (*config.Config, error) {
	explicit := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			explicit = true
		}
	})

	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return config.Default(), nil
	}
	return cfg, err
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	name := entry.Name
	if name == "" {
		name = "ollama"
	}
	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(name, entry.Model, opts...)
}

func buildSTT(entry config.ProviderEntry) (stt.Engine, error) {
	switch entry.Name {
	case "", "whisper":
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		return whisper.New(entry.BaseURL, opts...)
	case "whisper-native":
		return whisper.NewNative(entry.ModelPath)
	default:
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
}

func buildEmbeddings(entry config.ProviderEntry) (embeddings.Provider, error) {
	switch entry.Name {
	case "", "ollama":
		return ollamaembed.New(entry.BaseURL, entry.Model)
	case "openai":
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", entry.Name)
	}
}

// readyCheck probes the knowledge base. A nil base is never ready.
func readyCheck(kb *knowledge.Base) func(context.Context) error {
	if kb == nil {
		return nil
	}
	return kb.Ready
}

// speechCheck reports whether a speech engine was constructed. Construction
// already validates reachability where possible (the native engine loads its
// model file).
func speechCheck(engine stt.Engine) func(context.Context) error {
	if engine == nil {
		return nil
	}
	return func(context.Context) error { return nil }
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
