// Command chat is an interactive terminal client for the retrieval
// pipeline: it ingests the files given on the command line and then
// answers questions about them in a loop.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/andrew/multidoc-chat/pkg/config"
	"github.com/andrew/multidoc-chat/pkg/extract"
	"github.com/andrew/multidoc-chat/pkg/llm"
	"github.com/andrew/multidoc-chat/pkg/retrieval"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to the YAML config file")
	dataDir    = flag.String("data-dir", "", "Index/document data directory (overrides config)")
	topK       = flag.Int("top-k", 0, "Number of chunks to retrieve per question (0 = config default)")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Retrieval.DataDir = *dataDir
	}

	client, err := llm.NewClient(llm.Options{
		Backend: cfg.LLM.Backend,
		Model:   cfg.LLM.Model,
		BaseURL: cfg.LLM.OllamaURL,
		APIKey:  cfg.LLM.APIKey(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing LLM backend: %v\n", err)
		os.Exit(1)
	}
	if client != nil {
		defer client.Close()
	}

	svc, err := retrieval.New(retrieval.Config{
		DataDir:      cfg.Retrieval.DataDir,
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		TopK:         cfg.Retrieval.TopK,
		MaxTokens:    cfg.Retrieval.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
	}, client)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing retrieval service: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nShutting down...")
		cancel()
		os.Exit(0)
	}()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	// Ingest any documents passed on the command line before chatting.
	if paths := flag.Args(); len(paths) > 0 {
		texts := make([]string, 0, len(paths))
		for _, path := range paths {
			text, err := extract.FromFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", path, err)
				os.Exit(1)
			}
			texts = append(texts, text)
		}
		n, err := svc.Ingest(ctx, texts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error ingesting documents: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %s from %d file(s)\n", boldCyan(fmt.Sprintf("%d chunks", n)), len(paths))
	}

	fmt.Println(boldGreen("📚 Document Chat"))
	fmt.Printf("Index holds %s indexed chunks\n", boldCyan(fmt.Sprint(svc.Len())))
	if svc.Degraded() {
		fmt.Println(color.YellowString("No LLM backend configured: answers will be placeholders."))
	}
	fmt.Println("Type your question and press Enter. Type 'exit' or press Ctrl+C to quit.")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if strings.EqualFold(question, "exit") {
			break
		}

		answer, err := svc.Query(ctx, question, *topK, cfg.Retrieval.MaxTokens)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		fmt.Printf("%s %s\n\n", boldCyan("Assistant:"), strings.TrimSpace(answer))
	}
}
