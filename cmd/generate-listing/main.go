package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ArunBabu98/sellist-server/config"
	"github.com/ArunBabu98/sellist-server/internal/llm"
	"github.com/ArunBabu98/sellist-server/internal/pipeline"
)

func main() {
	condensed := flag.Bool("condensed", false, "use the two-call condensed pipeline")
	skipTriage := flag.Bool("skip-triage", false, "skip the image-quality triage phase")
	condition := flag.String("condition", "", "seller-stated condition override")
	provider := flag.String("provider", "gemini", "vision provider: gemini or openai")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image-path> [image-path...]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY - Required for Gemini\n")
		fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY - Required for OpenAI\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	config.LoadEnvFile()

	var images []pipeline.ImageInput
	for i, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read image %s: %v\n", path, err)
			os.Exit(1)
		}
		images = append(images, pipeline.ImageInput{
			Data:     data,
			MIMEType: getMimeType(path),
			Index:    i,
		})
	}

	ctx := context.Background()

	var model llm.Model
	switch *provider {
	case "gemini":
		var err error
		model, err = llm.NewGeminiModel(ctx, os.Getenv("GEMINI_API_KEY"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating Gemini model: %v\n", err)
			os.Exit(1)
		}
	case "openai":
		model = llm.NewOpenAIModel(os.Getenv("OPENAI_API_KEY"))
	default:
		fmt.Fprintf(os.Stderr, "Unknown provider: %s (use gemini or openai)\n", *provider)
		os.Exit(1)
	}

	pipe := pipeline.New(model, pipeline.Config{
		Condensed:  *condensed,
		SkipTriage: *skipTriage,
	})

	outcome := pipe.Run(ctx, images, pipeline.Options{
		UserProvidedCondition: *condition,
	})

	switch outcome.Status {
	case pipeline.StatusSuccess:
		out, err := json.MarshalIndent(outcome.Payload, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to marshal payload: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		fmt.Fprintf(os.Stderr, "\nCorrelation ID: %s\nProcessing:     %s\n",
			outcome.Meta.CorrelationID, outcome.Meta.ProcessingTime)
	default:
		fmt.Fprintf(os.Stderr, "Outcome: %s\nReason:  %s\nDetails: %s\n",
			outcome.Status, outcome.Reason, outcome.Details)
		os.Exit(1)
	}
}

func getMimeType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
