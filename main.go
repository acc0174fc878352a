package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/ArunBabu98/sellist-server/config"
	"github.com/ArunBabu98/sellist-server/internal/ebay"
	"github.com/ArunBabu98/sellist-server/internal/llm"
	"github.com/ArunBabu98/sellist-server/internal/pipeline"
	"github.com/ArunBabu98/sellist-server/internal/server"
	"github.com/ArunBabu98/sellist-server/internal/storage"
)

const logFileName = "sellist-server.log"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	// Check if required config is missing
	if missing := checkRequiredConfig(); len(missing) > 0 {
		if isInteractiveTerminal() {
			// Interactive terminal - run setup wizard
			if !runSetupWizard() {
				waitOnWindows()
				os.Exit(1)
			}
		} else {
			// Non-interactive (systemd, k8s, etc.) - fail with clear error
			fatalWithWait("missing required config: %s", strings.Join(missing, ", "))
		}
	}

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it, and ProtectSystem=strict
	// makes the working directory read-only).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fatalWithWait("failed to open log file: %v", err)
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		multiWriter := io.MultiWriter(consoleWriter, fileWriter)
		log.Logger = log.Output(multiWriter)

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	// Token encryption key (required)
	tokenKey := os.Getenv("SELLIST_TOKEN_KEY")
	if tokenKey == "" {
		fatalWithWait("SELLIST_TOKEN_KEY is not set")
	}

	// Database path (optional, defaults to sellist.db)
	dbPath := os.Getenv("SELLIST_DB_PATH")
	if dbPath == "" {
		dbPath = "sellist.db"
	}

	// Derive encryption key from passphrase
	encryptionKey, err := storage.DeriveKey(tokenKey)
	if err != nil {
		fatalWithWait("failed to derive encryption key: %v", err)
	}

	store, err := storage.NewSQLiteStore(dbPath, encryptionKey)
	if err != nil {
		fatalWithWait("failed to initialize store: %v", err)
	}
	defer store.Close()
	log.Info().Str("dbPath", dbPath).Msg("store initialized")

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	model, err := buildModel(ctx)
	if err != nil {
		fatalWithWait("failed to initialize vision model: %v", err)
	}
	log.Info().Str("model", model.Name()).Msg("vision model initialized")

	// Wrap with cache
	cachedModel := llm.NewCachedModel(model, store)
	log.Info().Msg("vision response caching enabled")

	pipe := pipeline.New(cachedModel, pipeline.Config{
		Condensed:  envBool("PIPELINE_CONDENSED"),
		SkipTriage: envBool("PIPELINE_SKIP_TRIAGE"),
	})

	devMode := envBool("SELLIST_DEV_MODE")
	srv := server.New(pipe, store, devMode)

	// Publishing is optional; without eBay credentials the server only
	// generates listings.
	if clientID := os.Getenv("EBAY_CLIENT_ID"); clientID != "" {
		sandbox := envBool("EBAY_SANDBOX")
		auth := ebay.NewAuthenticator(
			clientID,
			os.Getenv("EBAY_CLIENT_SECRET"),
			os.Getenv("EBAY_REDIRECT_URI"),
			store,
			sandbox,
		)
		baseURL := ebay.ApiBaseUrl
		if sandbox {
			baseURL = ebay.SandboxApiBaseUrl
		}
		client := ebay.NewClient(ebay.ClientOpts{
			BaseURL:       baseURL,
			MarketplaceID: os.Getenv("EBAY_MARKETPLACE_ID"),
			TokenSource:   auth,
		})
		srv.WithPublisher(client)
		log.Info().Bool("sandbox", sandbox).Msg("ebay publishing enabled")
	} else {
		log.Info().Msg("EBAY_CLIENT_ID not set, publishing disabled")
	}

	addr := os.Getenv("SELLIST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, addr)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// buildModel constructs the configured vision provider. Gemini is the
// default; set VISION_PROVIDER=openai to use the fallback provider.
func buildModel(ctx context.Context) (llm.Model, error) {
	if os.Getenv("VISION_PROVIDER") == "openai" {
		return llm.NewOpenAIModel(os.Getenv("OPENAI_API_KEY")), nil
	}
	return llm.NewGeminiModel(ctx, os.Getenv("GEMINI_API_KEY"))
}

func envBool(name string) bool {
	v, err := strconv.ParseBool(os.Getenv(name))
	return err == nil && v
}
