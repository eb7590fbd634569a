// Command socra is the main entry point for the Socra storytelling server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tadams048/socra/internal/config"
	"github.com/tadams048/socra/internal/conversation"
	"github.com/tadams048/socra/internal/health"
	"github.com/tadams048/socra/internal/images"
	"github.com/tadams048/socra/internal/observe"
	"github.com/tadams048/socra/internal/playback"
	"github.com/tadams048/socra/internal/tts"
	"github.com/tadams048/socra/pkg/provider/imagegen"
	"github.com/tadams048/socra/pkg/provider/imagegen/runware"
	llmopenai "github.com/tadams048/socra/pkg/provider/llm/openai"
	ttsprov "github.com/tadams048/socra/pkg/provider/tts"
	"github.com/tadams048/socra/pkg/provider/tts/elevenlabs"
	ttsopenai "github.com/tadams048/socra/pkg/provider/tts/openai"
)

const defaultCacheDir = "imagecache"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "socra: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "socra: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("socra starting",
		"config", *configPath,
		"metrics_addr", cfg.Server.MetricsAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "socra",
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sdCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	// ── Build the pipeline ────────────────────────────────────────────────────
	coordinator, imageQueue, sequencer, err := buildPipeline(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "err", err)
		return 1
	}
	defer sequencer.Close()

	// ── Metrics + health endpoint ─────────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(
			health.Checker{Name: "image_cache", Check: func(context.Context) error {
				dir := cfg.Cache.Dir
				if dir == "" {
					dir = defaultCacheDir
				}
				return os.MkdirAll(dir, 0o755)
			}},
		).Register(mux)

		srv := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server error", "err", err)
			}
		}()
		defer func() {
			sdCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sdCtx)
		}()
	}

	// ── Greeting ──────────────────────────────────────────────────────────────
	if cfg.Story.Greeting != "" {
		if err := coordinator.Speak(ctx, cfg.Story.Greeting); err != nil {
			slog.Warn("greeting failed", "err", err)
		}
	}

	slog.Info("server ready; type a prompt, /persona <name>, /stop, or /quit")

	// ── Interactive loop ──────────────────────────────────────────────────────
	if err := repl(ctx, cfg, coordinator); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("shutdown signal received, stopping…")
	coordinator.Stop()
	imageQueue.Wait()
	slog.Info("goodbye")
	return 0
}

// buildPipeline instantiates the providers and wires the turn pipeline.
func buildPipeline(cfg *config.Config) (*conversation.Coordinator, *images.Queue, *playback.Sequencer, error) {
	// Primary TTS.
	primary, err := buildSynthesizer(cfg.Providers.TTS)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("tts provider: %w", err)
	}

	// Optional fallback TTS.
	var secondary ttsprov.Synthesizer
	if cfg.Providers.TTSFallback.Name != "" {
		secondary, err = buildSynthesizer(cfg.Providers.TTSFallback)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("tts fallback provider: %w", err)
		}
	}

	gateway, err := tts.NewGateway(primary, secondary)
	if err != nil {
		return nil, nil, nil, err
	}

	// LLM.
	provider, err := llmopenai.New(cfg.Providers.LLM.APIKey, cfg.Providers.LLM.Model)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("llm provider: %w", err)
	}

	// Playback.
	player, err := playback.NewExecPlayer(cfg.Playback.Command)
	if err != nil {
		return nil, nil, nil, err
	}
	sequencer := playback.NewSequencer(player)

	// Image generation.
	imageProvider, err := buildImageProvider(cfg.Providers.Image)
	if err != nil {
		sequencer.Close()
		return nil, nil, nil, fmt.Errorf("image provider: %w", err)
	}
	cacheDir := cfg.Cache.Dir
	if cacheDir == "" {
		cacheDir = defaultCacheDir
	}
	cacheEntries := cfg.Cache.MaxEntries
	if cacheEntries == 0 {
		cacheEntries = 10
	}
	imageQueue := images.NewQueue(imageProvider, cacheDir, cacheEntries)

	// Coordinator.
	opts := []conversation.Option{
		conversation.WithVoice(cfg.Story.VoiceID),
		conversation.WithSystemPrompt(cfg.Story.SystemPrompt),
	}
	if cfg.Story.SummaryTimeoutMillis > 0 {
		opts = append(opts, conversation.WithSummaryTimeout(
			time.Duration(cfg.Story.SummaryTimeoutMillis)*time.Millisecond))
	}
	coordinator, err := conversation.New(provider, gateway, sequencer, imageQueue, opts...)
	if err != nil {
		sequencer.Close()
		return nil, nil, nil, err
	}
	return coordinator, imageQueue, sequencer, nil
}

// buildSynthesizer constructs a speech provider from a config entry.
func buildSynthesizer(entry config.ProviderEntry) (ttsprov.Synthesizer, error) {
	switch entry.Name {
	case "elevenlabs":
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, elevenlabs.WithBaseURL(entry.BaseURL))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	case "openai":
		var opts []ttsopenai.Option
		if entry.Model != "" {
			opts = append(opts, ttsopenai.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, ttsopenai.WithBaseURL(entry.BaseURL))
		}
		return ttsopenai.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown tts provider %q", entry.Name)
	}
}

// buildImageProvider constructs the illustration provider from a config entry.
func buildImageProvider(entry config.ProviderEntry) (imagegen.Provider, error) {
	switch entry.Name {
	case "runware":
		var opts []runware.Option
		if entry.Model != "" {
			opts = append(opts, runware.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, runware.WithBaseURL(entry.BaseURL))
		}
		if prefix := entry.Options["style_prefix"]; prefix != "" {
			opts = append(opts, runware.WithStylePrefix(prefix))
		}
		return runware.New(entry.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown image provider %q", entry.Name)
	}
}

// repl reads prompts and commands from stdin until EOF or ctx cancellation.
func repl(ctx context.Context, cfg *config.Config, c *conversation.Coordinator) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit":
				return nil
			case line == "/stop":
				c.Stop()
			case strings.HasPrefix(line, "/persona "):
				switchPersona(cfg, c, strings.TrimPrefix(line, "/persona "))
			default:
				if err := c.Submit(ctx, line); err != nil {
					if errors.Is(err, conversation.ErrTurnInProgress) {
						fmt.Println("socra: a turn is already running; use /stop first")
						continue
					}
					slog.Error("turn failed", "err", err)
					if msg := c.ErrorMessage(); msg != "" {
						fmt.Println("socra:", msg)
					}
				}
			}
		}
	}
}

// switchPersona activates the named persona from config.
func switchPersona(cfg *config.Config, c *conversation.Coordinator, name string) {
	for _, p := range cfg.Personas {
		if p.Name != name {
			continue
		}
		voice := p.VoiceID
		if voice == "" {
			voice = cfg.Story.VoiceID
		}
		c.SetPersona(p.Name, p.SystemPrompt, voice)
		fmt.Println("socra: persona switched to", p.Name)
		return
	}
	fmt.Println("socra: unknown persona", name)
}

// newLogger builds a text slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
