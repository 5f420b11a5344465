package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/ainteg/docpipe/internal/models"
	cfgPkg "github.com/ainteg/docpipe/pkg/config"
	"github.com/ainteg/docpipe/pkg/extract"
	"github.com/ainteg/docpipe/pkg/ingest"
	"github.com/ainteg/docpipe/pkg/invoice"
	"github.com/ainteg/docpipe/pkg/llm"
	"github.com/ainteg/docpipe/pkg/ocr"
	"github.com/ainteg/docpipe/pkg/store"
	"github.com/ainteg/docpipe/server"
)

type flags struct {
	ConfigPath string
	Serve      bool
	IngestDir  string
	Invoice    string
	Reset      bool
	Scope      string
}

func main() {
	f := parseFlags()

	config, err := cfgPkg.LoadConfig(f.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}
	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		os.Exit(1)
	}

	if err := run(f, config); err != nil {
		log.Fatal(err)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.ConfigPath, "config", "", "Path to config file")
	flag.BoolVar(&f.Serve, "serve", false, "Run the HTTP API server")
	flag.StringVar(&f.IngestDir, "ingest", "", "Ingest every document in a directory")
	flag.StringVar(&f.Invoice, "invoice", "", "OCR, index and parse a single invoice file")
	flag.BoolVar(&f.Reset, "reset", false, "Delete all indexed collections")
	flag.StringVar(&f.Scope, "scope", models.CollectionGeneral, "Collection to chat against (general or invoices)")
	flag.Parse()

	return f
}

// pipeline bundles the wired components so each mode can pick what it needs.
type pipeline struct {
	store      *store.VectorStore
	ingestor   *ingest.Ingestor
	arbitrator *ocr.Arbitrator
	extractor  *invoice.Extractor
	chatEngine *llm.ChatEngine
}

func buildPipeline(config *cfgPkg.Config) (*pipeline, error) {
	vectorStore, err := store.NewWithConfig(store.VectorStoreConfig{
		ConnString: config.Database.URL,
		VectorDim:  config.Database.VectorDim,
		BatchSize:  config.Database.BatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector store: %v", err)
	}

	embedder, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:   config.Embedding.Model,
		BaseURL: config.Embedding.BaseURL,
		Timeout: time.Duration(config.Embedding.TimeoutSeconds) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %v", err)
	}

	ingestor := ingest.NewWithConfig(ingest.IngestorConfig{
		ChunkSize:     config.Processor.ChunkSize,
		ChunkOverlap:  config.Processor.ChunkOverlap,
		MaxTextLength: config.Processor.MaxTextLength,
		MaxChunks:     config.Processor.MaxChunks,
	}, embedder, vectorStore)

	chatEngine, err := llm.NewWithConfig(llm.ChatConfig{
		Provider:    config.LLM.Provider,
		Model:       config.LLM.Model,
		MaxTokens:   config.LLM.MaxTokens,
		Temperature: config.LLM.Temperature,
		BaseURL:     config.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %v", err)
	}

	visionModel, err := llm.NewModel(config.LLM.Provider, config.OCR.VisionModel, config.LLM.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vision model: %v", err)
	}

	arbitrator := ocr.NewArbitrator(
		ocr.NewTesseract(ocr.TesseractConfig{
			Languages: config.OCR.Languages,
			DPI:       config.OCR.LocalDPI,
		}),
		ocr.NewVision(visionModel, ocr.VisionConfig{
			MaxPages:       config.OCR.MaxVisionPages,
			DPI:            config.OCR.VisionDPI,
			PagesPerSecond: config.OCR.PagesPerSecond,
		}),
		ocr.ArbitratorConfig{
			EngineTimeout: time.Duration(config.OCR.TimeoutSeconds) * time.Second,
			MinTextLength: config.OCR.MinTextLength,
		},
	)

	extractionModel, err := llm.NewModel(config.LLM.Provider, config.LLM.Model, config.LLM.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extraction model: %v", err)
	}

	return &pipeline{
		store:      vectorStore,
		ingestor:   ingestor,
		arbitrator: arbitrator,
		extractor:  invoice.NewExtractor(extractionModel),
		chatEngine: chatEngine,
	}, nil
}

func run(f flags, config *cfgPkg.Config) error {
	p, err := buildPipeline(config)
	if err != nil {
		return err
	}
	defer p.store.Close()

	ctx := context.Background()

	switch {
	case f.Reset:
		return runReset(ctx, p)
	case f.IngestDir != "":
		return runIngest(ctx, p, f.IngestDir)
	case f.Invoice != "":
		return runInvoice(ctx, p, f.Invoice)
	case f.Serve:
		srv, err := server.New(server.Config{
			Port:      config.Server.Port,
			Streaming: config.UI.Streaming,
		}, p.ingestor, p.arbitrator, p.extractor, p.chatEngine, p.store)
		if err != nil {
			return err
		}
		return srv.ListenAndServe()
	default:
		return runChat(ctx, p, f.Scope, config.UI.Streaming)
	}
}

func runReset(ctx context.Context, p *pipeline) error {
	for _, collection := range []string{models.CollectionGeneral, models.CollectionInvoices} {
		if err := p.store.DeleteCollection(ctx, collection); err != nil {
			return fmt.Errorf("failed to delete collection %s: %v", collection, err)
		}
		color.Green("✓ Deleted collection %s", collection)
	}
	return nil
}

func runIngest(ctx context.Context, p *pipeline, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %v", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	if len(files) == 0 {
		color.Yellow("No files found in %s", dir)
		return nil
	}

	color.Blue("\nIngesting %d files from %s\n", len(files), dir)
	bar := getProgressBar(len(files), "📄 Indexing documents...")

	var chunks, failed int
	for _, path := range files {
		text, err := extract.FromFile(path)
		if err != nil {
			log.Printf("skipping %s: %v", filepath.Base(path), err)
			failed++
			bar.Add(1)
			continue
		}

		meta := models.Metadata{Filename: filepath.Base(path), DocType: models.DocTypeGeneral}
		result, err := p.ingestor.AddDocument(ctx, text, meta, models.CollectionGeneral)
		if err != nil {
			log.Printf("skipping %s: %v", filepath.Base(path), err)
			failed++
			bar.Add(1)
			continue
		}

		chunks += result.Chunks
		bar.Add(1)
	}
	bar.Finish()

	color.Green("\n✓ Indexed %d files into %d chunks", len(files)-failed, chunks)
	if failed > 0 {
		color.Yellow("✗ %d files skipped", failed)
	}
	return nil
}

func runInvoice(ctx context.Context, p *pipeline, path string) error {
	spinner := getSpinner("🔍 Running OCR...")

	isPDF := strings.EqualFold(filepath.Ext(path), ".pdf")
	var image []byte
	if !isPDF {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		image = data
	}

	result, err := p.arbitrator.Recognize(ctx, path, isPDF, image)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return fmt.Errorf("OCR failed: %v", err)
	}
	color.Green("✓ OCR complete (engine: %s, score A %.3f, score B %.3f)",
		result.Engine, result.ScoreA, result.ScoreB)

	meta := models.Metadata{Filename: filepath.Base(path), DocType: models.DocTypeInvoice}
	added, err := p.ingestor.AddDocument(ctx, result.Text, meta, models.CollectionInvoices)
	if err != nil {
		return fmt.Errorf("failed to index invoice: %v", err)
	}
	color.Green("✓ Indexed %d chunks", added.Chunks)

	parsed := p.extractor.ParseInvoiceText(ctx, result.Text)
	if parsed.Source == invoice.SourceFallbackRegex {
		color.Yellow("⚠ structured extraction degraded to regex fallback")
	}

	out, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runChat(ctx context.Context, p *pipeline, scope string, streaming bool) error {
	if scope != models.CollectionGeneral && scope != models.CollectionInvoices {
		return fmt.Errorf("unknown scope %q", scope)
	}

	color.Cyan("\nChat with your documents (scope: %s, type 'exit' to quit)", scope)

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(query) == "exit" {
			break
		}

		querySpinner := getSpinner("🔍 Searching documents...")
		results, err := p.ingestor.Search(ctx, query, scope, 0)
		querySpinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error querying documents: %v\n", err)
			continue
		}

		if streaming {
			stream, err := p.chatEngine.AnswerStream(ctx, query, results)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}

			fmt.Print("\n")
			assistantPrompt("Assistant: ")
			for chunk := range stream {
				fmt.Print(chunk)
			}
			fmt.Print("\n")
		} else {
			responseSpinner := getSpinner("🤖 Generating response...")
			answer, err := p.chatEngine.Answer(ctx, query, results)
			responseSpinner.Finish()
			fmt.Print("\r")

			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("Assistant: %s\n", answer)
		}
	}

	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
