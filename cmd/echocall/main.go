package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/echoes-ai/echocall/pkg/history"
	"github.com/echoes-ai/echocall/pkg/identity"
	"github.com/echoes-ai/echocall/pkg/llm"
	"github.com/echoes-ai/echocall/pkg/server"
	"github.com/echoes-ai/echocall/pkg/store"
	"github.com/echoes-ai/echocall/pkg/trace"
	"github.com/echoes-ai/echocall/pkg/tts"
)

func main() {
	godotenv.Load()

	ctx := context.Background()
	if err := trace.Initialize(ctx, trace.DefaultConfig()); err != nil {
		log.Fatalf("initialize tracing: %v", err)
	}
	defer trace.Shutdown(context.Background())

	kv, err := newKV()
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	hist := history.NewStore(kv)

	llmProvider, err := newLLMProvider(ctx)
	if err != nil {
		log.Fatalf("create llm provider: %v", err)
	}

	ttsProvider, err := tts.NewElevenLabsProvider(tts.ElevenLabsConfig{
		APIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		VoiceID: getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
	})
	if err != nil {
		log.Fatalf("create tts provider: %v", err)
	}

	var cloner *tts.Cloner
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		cloner, err = tts.NewCloner(key, "")
		if err != nil {
			log.Fatalf("create voice cloner: %v", err)
		}
	}

	cfg := server.DefaultConfig()
	cfg.Addr = getEnv("ECHOCALL_ADDR", ":8080")
	cfg.AuthToken = os.Getenv("ECHOCALL_AUTH_TOKEN")

	srv := server.NewServer(cfg, identity.NewGuestProvider(), hist, llmProvider, ttsProvider, cloner)
	if err := srv.Start(); err != nil {
		log.Fatalf("start gateway: %v", err)
	}
	log.Printf("echocall gateway listening on %s (llm=%s, tts=%s)", cfg.Addr, llmProvider.Name(), ttsProvider.Name())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

// newKV opens the persistence backend: files under ECHOCALL_DATA_DIR,
// or memory when unset.
func newKV() (store.KV, error) {
	if dir := os.Getenv("ECHOCALL_DATA_DIR"); dir != "" {
		return store.NewFileStore(dir)
	}
	log.Println("ECHOCALL_DATA_DIR not set, using in-memory store")
	return store.NewMemoryStore(), nil
}

// newLLMProvider picks the text generation backend from the
// environment. OpenAI wins when both keys are present.
func newLLMProvider(ctx context.Context) (llm.Provider, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg := llm.DefaultOpenAIConfig(key)
		if model := os.Getenv("OPENAI_MODEL"); model != "" {
			cfg.Model = model
		}
		return llm.NewOpenAIProvider(cfg)
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg := llm.DefaultGeminiConfig(key)
		if model := os.Getenv("GEMINI_MODEL"); model != "" {
			cfg.Model = model
		}
		return llm.NewGeminiProvider(ctx, cfg)
	}
	return nil, errors.New("set OPENAI_API_KEY or GEMINI_API_KEY")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
