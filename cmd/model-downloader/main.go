// Command model-downloader provisions local GGUF model weights so the
// generation backend can run fully offline.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"

	"github.com/andrew/multidoc-chat/pkg/download"
)

var (
	modelsDir = flag.String("models-dir", "models", "Directory to store downloaded models")
	modelURL  = flag.String("url", "", "Download a single model from this URL instead of the default set")
	fileName  = flag.String("filename", "", "Target filename when -url is set")
)

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("\nAborting downloads...")
		cancel()
	}()

	models := download.DefaultModels
	if *modelURL != "" {
		name := *fileName
		if name == "" {
			name = filepath.Base(*modelURL)
		}
		models = []download.Model{{Name: name, Filename: name, URL: *modelURL}}
	}

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	fmt.Println(boldGreen("Downloading model weights"))

	failed := 0
	for _, m := range models {
		dest := filepath.Join(*modelsDir, m.Filename)
		if _, err := os.Stat(dest); err == nil {
			fmt.Printf("%s %s already present, skipping\n", color.CyanString("•"), m.Filename)
			continue
		}

		fmt.Printf("%s %s\n", color.CyanString("→"), m.Name)
		err := download.Fetch(ctx, m.URL, dest, func(done, total int64) {
			if total > 0 {
				fmt.Printf("\r  %s: %.1f%% (%d/%d MB)", m.Filename,
					float64(done)/float64(total)*100, done>>20, total>>20)
			} else {
				fmt.Printf("\r  %s: %d MB", m.Filename, done>>20)
			}
		})
		fmt.Println()
		if err != nil {
			color.Red("  failed: %v", err)
			failed++
			continue
		}
		fmt.Printf("  saved to %s\n", dest)
	}

	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d download(s) failed\n", failed)
		os.Exit(1)
	}
	fmt.Println(boldGreen("All downloads completed"))
}
