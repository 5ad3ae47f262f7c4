// Command domfilter filters HTML from a file, stdin or a URL and prints the extracted content.
//
//	domfilter -url https://example.com -f div,id,content -mode text
//	curl -s https://example.com | domfilter -f a,href -mode attr -attr href
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/edgecomet/domfilter/internal/app"
	"github.com/edgecomet/domfilter/internal/common/config"
	"github.com/edgecomet/domfilter/internal/common/configtypes"
	"github.com/edgecomet/domfilter/internal/common/logger"
	"github.com/edgecomet/domfilter/internal/pipeline"
	"github.com/edgecomet/domfilter/pkg/filter"
)

// patternFlags collects repeated -f values
type patternFlags []filter.Pattern

func (p *patternFlags) String() string {
	parts := make([]string, len(*p))
	for i, pattern := range *p {
		parts[i] = pattern.String()
	}
	return strings.Join(parts, " ")
}

func (p *patternFlags) Set(value string) error {
	pattern, err := filter.ParseSpec(value)
	if err != nil {
		return err
	}
	*p = append(*p, pattern)
	return nil
}

type options struct {
	configPath string
	url        string
	file       string
	patterns   patternFlags
	mode       string
	attr       string
	index      int
	indexSet   bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("domfilter", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "c", "", "path to configuration file (optional)")
	fs.StringVar(&opts.url, "url", "", "fetch the document from this URL")
	fs.StringVar(&opts.file, "file", "", "read the document from this file (default: stdin)")
	fs.Var(&opts.patterns, "f", "filter as tag[,attr[,value]]; repeat to filter within previous matches")
	fs.StringVar(&opts.mode, "mode", string(pipeline.ModeInner), "output: inner, text, outer, count or attr")
	fs.StringVar(&opts.attr, "attr", "", "attribute name for -mode attr")
	fs.IntVar(&opts.index, "index", 0, "print only the n-th match (0-based)")
	fs.BoolVar(&opts.verbose, "v", false, "debug logging on stderr")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "index" {
			opts.indexSet = true
		}
	})
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if opts.url != "" && opts.file != "" {
		return nil, errors.New("-url and -file are mutually exclusive")
	}
	if len(opts.patterns) == 0 {
		return nil, errors.New("at least one -f filter is required")
	}
	return opts, nil
}

func loadConfig(opts *options) (*configtypes.Config, error) {
	var cfg *configtypes.Config
	if opts.configPath == "" {
		cfg = config.Default()
		cfg.Log.Level = configtypes.LogLevelWarn
	} else {
		var err error
		cfg, err = config.Load(opts.configPath, false, zap.NewNop())
		if err != nil {
			return nil, err
		}
	}

	// stdout carries the result only
	cfg.Log.Console.Output = configtypes.LogOutputStderr
	if opts.verbose {
		cfg.Log.Level = configtypes.LogLevelDebug
		cfg.Log.Console.Level = ""
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "domfilter: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "domfilter: %v\n", err)
		return 1
	}

	dynamicLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(stderr, "domfilter: %v\n", err)
		return 1
	}
	defer dynamicLogger.Sync()
	log := dynamicLogger.Logger

	a, err := app.New(cfg, nil, log)
	if err != nil {
		fmt.Fprintf(stderr, "domfilter: %v\n", err)
		return 1
	}
	defer a.Close()

	req := pipeline.Request{
		URL:      opts.url,
		Patterns: opts.patterns,
		Mode:     pipeline.Mode(opts.mode),
		Attr:     opts.attr,
	}
	if opts.indexSet {
		req.Index = &opts.index
	}

	if opts.url == "" {
		req.HTML, err = readInput(opts.file, stdin)
		if err != nil {
			fmt.Fprintf(stderr, "domfilter: %v\n", err)
			return 1
		}
	}

	out, err := a.Pipeline.Run(ctx, req)
	if err != nil {
		log.Debug("Filter failed", zap.Error(err))
		fmt.Fprintf(stderr, "domfilter: %v\n", err)
		return 1
	}

	writeOutput(stdout, req.Mode, out)
	return 0
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(w io.Writer, mode pipeline.Mode, out *pipeline.Output) {
	switch mode {
	case pipeline.ModeCount:
		fmt.Fprintln(w, out.Matches)
	case pipeline.ModeAttr:
		for _, v := range out.Values {
			fmt.Fprintln(w, v)
		}
	default:
		if out.Content != "" {
			fmt.Fprintln(w, out.Content)
		}
	}
}
