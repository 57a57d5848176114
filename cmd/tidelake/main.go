// Package main implements the unified tidelake binary. It drives the lake
// engine's four call surfaces (infer, suggest, plan, exec) from the command
// line, reading JSON records from a file or stdin and printing JSON results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tidelake/tidelake/internal/config"
	"github.com/tidelake/tidelake/internal/lake"
	"github.com/tidelake/tidelake/internal/partition"
	"github.com/tidelake/tidelake/internal/planner"
	"github.com/tidelake/tidelake/internal/schema"
	"github.com/tidelake/tidelake/pkg/types"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		mode        string
		datasetID   string
		inputFile   string
		format      string
		strategy    string
		columns     string
		patterns    string
		sqlText     string
		priority    string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&mode, "mode", "", "Operation mode: infer, suggest, plan, exec")
	flag.StringVar(&datasetID, "dataset", "default", "Dataset identifier")
	flag.StringVar(&inputFile, "input", "", "JSON records file (default: stdin)")
	flag.StringVar(&format, "format", "json", "Record format: json, csv")
	flag.StringVar(&strategy, "strategy", "", "Partition strategy to materialize (range, hash, list, hybrid, time)")
	flag.StringVar(&columns, "columns", "", "Comma-separated partition columns")
	flag.StringVar(&patterns, "patterns", "", "Comma-separated access patterns (time_range, point_lookup)")
	flag.StringVar(&sqlText, "sql", "", "SQL text for plan and exec modes")
	flag.StringVar(&priority, "priority", "normal", "Query priority: high, normal, low")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Tidelake - Data Lake Query & Execution Core\n\n")
		fmt.Fprintf(os.Stderr, "Usage: tidelake --mode <mode> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tidelake --mode infer --dataset orders --input records.json\n")
		fmt.Fprintf(os.Stderr, "  tidelake --mode suggest --dataset orders --patterns time_range < records.json\n")
		fmt.Fprintf(os.Stderr, "  tidelake --mode plan --sql \"SELECT * FROM orders WHERE id=1\"\n")
		fmt.Fprintf(os.Stderr, "  tidelake --mode exec --sql \"SELECT 1\" --priority high\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  TIDELAKE_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  TIDELAKE_STORAGE_TYPE   Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  TIDELAKE_S3_BUCKET      S3 bucket for scheme manifests\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}
	if showVersion {
		fmt.Printf("tidelake version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}
	if mode == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	engine, err := lake.New(cfg, lake.Options{Logger: logger})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Shutdown()

	ctx := context.Background()
	var out interface{}

	switch mode {
	case "infer":
		records, err := readRecords(inputFile)
		if err != nil {
			fatal(err)
		}
		out, err = engine.InferSchema("cli", records, schema.Format(format), datasetID)
		if err != nil {
			fatal(err)
		}
	case "suggest":
		records, err := readRecords(inputFile)
		if err != nil {
			fatal(err)
		}
		out, err = engine.SuggestPartitioning("cli", datasetID, records, partition.AccessPatterns{
			Kinds: splitList(patterns),
		})
		if err != nil {
			fatal(err)
		}
		if strategy != "" {
			out, err = engine.CreatePartitionScheme(ctx, "cli", datasetID, records,
				types.PartitionStrategy(strategy), splitList(columns))
			if err != nil {
				fatal(err)
			}
		}
	case "plan":
		if sqlText == "" {
			fatal(fmt.Errorf("plan mode requires --sql"))
		}
		query := &types.Query{ID: "cli-plan", SQL: sqlText}
		plan, err := engine.OptimizeQuery("cli", query)
		if err != nil {
			fatal(err)
		}
		analysis, err := engine.AnalyzeQuery("cli", query)
		if err != nil {
			fatal(err)
		}
		out = struct {
			Plan     *types.Plan       `json:"plan"`
			Analysis *planner.Analysis `json:"analysis"`
		}{plan, analysis}
	case "exec":
		if sqlText == "" {
			fatal(fmt.Errorf("exec mode requires --sql"))
		}
		out, err = engine.ExecuteWithLoadBalancing(ctx, "cli", &types.Query{
			ID:       "cli-exec",
			SQL:      sqlText,
			Priority: types.Priority(priority),
		})
		if err != nil {
			fatal(err)
		}
	default:
		fatal(fmt.Errorf("unknown mode %q (want infer, suggest, plan, or exec)", mode))
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatal(err)
	}
}

// readRecords loads JSON records from a file or stdin. Both a top-level
// array and newline-delimited objects are accepted.
func readRecords(path string) ([]lake.Record, error) {
	var r io.Reader = os.Stdin
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil, nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var records []lake.Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("failed to parse records: %w", err)
		}
		return records, nil
	}

	var records []lake.Record
	dec := json.NewDecoder(strings.NewReader(trimmed))
	for dec.More() {
		var rec lake.Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to parse record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// splitList splits a comma-separated flag value into its entries,
// trimming whitespace and dropping empty items.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "tidelake: %v\n", err)
	os.Exit(1)
}
