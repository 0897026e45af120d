// Command pgx-analyze runs the pharmacogenomic pipeline on a VCF file and
// prints the report.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/pharmaguard-mcp-server/internal/domain"
	"github.com/pharmaguard-mcp-server/internal/explain"
	"github.com/pharmaguard-mcp-server/internal/knowledge"
	"github.com/pharmaguard-mcp-server/internal/logging"
	"github.com/pharmaguard-mcp-server/internal/service"
	"github.com/pharmaguard-mcp-server/pkg/vcf"
)

const version = "1.0.0"

type options struct {
	drugs      []string
	format     string
	output     string
	model      string
	provider   string
	llmModel   string
	noExplain  bool
	listDrugs  bool
	parseOnly  bool
	logLevel   string
	timeout    time.Duration
	maxBytes   int
	showVer    bool
	showHelp   bool
	inputPaths []string
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Ignoring .env: %v\n", err)
	}

	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := run(context.Background(), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "pgx-analyze: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := pflag.NewFlagSet("pgx-analyze", pflag.ContinueOnError)
	opts := &options{}

	fs.StringSliceVarP(&opts.drugs, "drug", "d", nil, "Drug to assess (repeatable or comma separated)")
	fs.StringVarP(&opts.format, "format", "f", formatJSON, "Output format: json, yaml or text")
	fs.StringVarP(&opts.output, "output", "o", "", "Write the report to this file instead of stdout")
	fs.StringVar(&opts.model, "confidence-model", string(domain.CONFIDENCE_RULE_TABLE), "Confidence model: rule_table or variant_count")
	fs.StringVar(&opts.provider, "llm-provider", os.Getenv("PHARMAGUARD_LLM_PROVIDER"), "Explanation provider: gemini, openai, claude (empty for rule-based)")
	fs.StringVar(&opts.llmModel, "llm-model", os.Getenv("PHARMAGUARD_LLM_MODEL"), "Provider model name")
	fs.BoolVar(&opts.noExplain, "no-explain", false, "Skip explanations")
	fs.BoolVarP(&opts.listDrugs, "list-drugs", "l", false, "List supported drugs and exit")
	fs.BoolVar(&opts.parseOnly, "parse-only", false, "Parse the VCF and print its summary without inference")
	fs.StringVar(&opts.logLevel, "log-level", "warn", "Log level written to stderr")
	fs.DurationVar(&opts.timeout, "timeout", 2*time.Minute, "Overall analysis timeout")
	fs.IntVar(&opts.maxBytes, "max-bytes", vcf.DefaultMaxContentBytes, "Maximum VCF size in bytes")
	fs.BoolVarP(&opts.showVer, "version", "V", false, "Print version information")
	fs.BoolVarP(&opts.showHelp, "help", "h", false, "Show this help message")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pgx-analyze [options] <file.vcf|->\n\n")
		fmt.Fprintf(os.Stderr, "Reads VCF from the file argument, or stdin when it is \"-\" or omitted.\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.showHelp {
		fs.Usage()
		os.Exit(0)
	}
	opts.inputPaths = fs.Args()
	if len(opts.inputPaths) > 1 {
		return nil, fmt.Errorf("expected one VCF file, got %d", len(opts.inputPaths))
	}
	if err := validateFormat(opts.format); err != nil {
		return nil, err
	}
	return opts, nil
}

func run(ctx context.Context, opts *options, stdin io.Reader, stdout io.Writer) error {
	if opts.showVer {
		fmt.Fprintf(stdout, "pgx-analyze %s\n", version)
		return nil
	}

	model, err := domain.ParseConfidenceModel(opts.model)
	if err != nil {
		return err
	}

	logger := logging.New(opts.logLevel, logging.FORMAT_TEXT)
	kb := knowledge.Default()

	analyzerOpts := []service.AnalyzerOption{
		service.WithConfidenceModel(model),
		service.WithMaxContentBytes(opts.maxBytes),
	}
	if !opts.noExplain {
		llm := domain.LLMConfig{
			Provider:       opts.provider,
			Model:          opts.llmModel,
			APIKey:         apiKey(opts.provider),
			Temperature:    0.3,
			MaxTokens:      1024,
			Timeout:        30 * time.Second,
			RequestsPerMin: 60,
		}
		explainer, err := explain.NewExplainer(ctx, logger, kb, llm, nil, 0)
		if err != nil {
			return err
		}
		analyzerOpts = append(analyzerOpts, service.WithExplainer(explainer))
	}
	analyzer := service.NewAnalyzerService(logger, kb, analyzerOpts...)

	out := stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("creating output: %w", err)
		}
		defer f.Close()
		out = f
	}

	if opts.listDrugs {
		rules := make([]*domain.DrugRule, 0)
		for _, name := range analyzer.SupportedDrugs() {
			if rule, ok := analyzer.Rule(name); ok {
				rules = append(rules, rule)
			}
		}
		return writeDrugs(out, opts.format, rules)
	}

	content, err := readInput(opts.inputPaths, stdin, opts.maxBytes)
	if err != nil {
		return err
	}

	if opts.parseOnly {
		parsed, err := analyzer.ParseVCF(content)
		if err != nil {
			return err
		}
		return writeParsed(out, opts.format, parsed)
	}

	if len(opts.drugs) == 0 {
		opts.drugs = analyzer.SupportedDrugs()
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	report, err := analyzer.Analyze(ctx, content, opts.drugs)
	if err != nil {
		return err
	}
	return writeReport(out, opts.format, report)
}

func readInput(paths []string, stdin io.Reader, maxBytes int) (string, error) {
	r := stdin
	if len(paths) == 1 && paths[0] != "-" {
		if !strings.EqualFold(filepath.Ext(paths[0]), ".vcf") {
			return "", fmt.Errorf("%s: only .vcf files are accepted", paths[0])
		}
		f, err := os.Open(paths[0])
		if err != nil {
			return "", err
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, int64(maxBytes)+1))
	if err != nil {
		return "", fmt.Errorf("reading VCF: %w", err)
	}
	return string(data), nil
}

func apiKey(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini":
		return os.Getenv("GEMINI_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "claude", "anthropic":
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}
