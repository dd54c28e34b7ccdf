//go:build ignore

// Package main generates a synthetic guide site for benchmarking.
// Usage: go run scripts/generate-test-site.go -sections 500 -output testdata/bench-site
//
// The generated site is a single index.html whose sections are fragment
// placeholders, plus one content file per section. Section bodies reuse a
// fixed vocabulary so search benchmarks hit realistic term overlap.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

var (
	numSections = flag.Int("sections", 500, "Number of fragment sections to generate")
	outputDir   = flag.String("output", "testdata/bench-site", "Site output directory")
	seed        = flag.Int64("seed", 42, "Random seed for reproducibility")
)

// topics feed section titles; words feed bodies. Drawn from the domain a
// real setup guide covers so queries like "audio" or "storage" behave
// like they would on a live site.
var topics = []string{
	"Audio", "Display", "Storage", "Battery", "Network", "Controls",
	"Performance", "Emulation", "Desktop Mode", "Plugins", "Themes",
	"Backups", "Firmware", "Troubleshooting",
}

var words = []string{
	"deck", "settings", "menu", "press", "hold", "button", "enable",
	"disable", "install", "restart", "slider", "profile", "default",
	"custom", "driver", "update", "cache", "partition", "format",
	"mount", "overlay", "shader", "latency", "framerate", "toggle",
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	contentDir := filepath.Join(*outputDir, "content")
	if err := os.MkdirAll(contentDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create output dir: %v\n", err)
		os.Exit(1)
	}

	var page strings.Builder
	page.WriteString("<!DOCTYPE html>\n<html><head><title>Benchmark Guide</title></head><body>\n")
	page.WriteString(`<main id="content">` + "\n")

	for i := 0; i < *numSections; i++ {
		id := fmt.Sprintf("section-%04d", i)
		src := id + ".html"
		fmt.Fprintf(&page, `  <section id=%q data-content-src=%q></section>`+"\n", id, src)

		if err := writeFragment(filepath.Join(contentDir, src), rng, i); err != nil {
			fmt.Fprintf(os.Stderr, "write fragment %s: %v\n", src, err)
			os.Exit(1)
		}
	}

	page.WriteString("</main>\n</body></html>\n")
	if err := os.WriteFile(filepath.Join(*outputDir, "index.html"), []byte(page.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write index.html: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d sections under %s\n", *numSections, *outputDir)
}

// writeFragment emits one content file: a heading plus a few paragraphs
// of vocabulary-controlled filler.
func writeFragment(path string, rng *rand.Rand, n int) error {
	topic := topics[n%len(topics)]

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>%s %d</h2>\n", topic, n)
	paragraphs := 2 + rng.Intn(4)
	for p := 0; p < paragraphs; p++ {
		b.WriteString("<p>")
		length := 20 + rng.Intn(40)
		for w := 0; w < length; w++ {
			if w > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(words[rng.Intn(len(words))])
		}
		b.WriteString("</p>\n")
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
