// Package main is the JurisChat CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/WindyStu/RAGJurisChat/internal/cli"
	"github.com/WindyStu/RAGJurisChat/internal/config"
	"github.com/WindyStu/RAGJurisChat/internal/embedding"
	"github.com/WindyStu/RAGJurisChat/internal/extract"
	"github.com/WindyStu/RAGJurisChat/internal/generation"
	"github.com/WindyStu/RAGJurisChat/internal/indexer"
	"github.com/WindyStu/RAGJurisChat/internal/models"
	"github.com/WindyStu/RAGJurisChat/internal/search"
	"github.com/WindyStu/RAGJurisChat/internal/server"
	"github.com/WindyStu/RAGJurisChat/internal/storage"
	"github.com/WindyStu/RAGJurisChat/internal/vector"
	"github.com/WindyStu/RAGJurisChat/internal/watcher"
	"github.com/WindyStu/RAGJurisChat/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/jurischat/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory is preferred; when neither exists, defaults plus environment are used.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		cwd, cwdErr := os.Getwd()
		if cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) && cwdErr == nil {
			return config.Default(cwd), "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "ask":
		runAsk()
	case "chunk":
		runChunk()
	case "runs":
		runRuns()
	case "init-config":
		runInitConfig()
	case "version", "--version", "-v":
		fmt.Printf("jurischat version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads and validates config and builds the logger. It exits on failure.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		cli.WriteError(os.Stderr, err, cli.OutputText)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("vector_store", cfg.Vector.Type),
	)
	return cfg, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		cli.WriteError(os.Stderr, err, cli.OutputText)
		os.Exit(1)
	}
	defer components.Close()

	srv := server.NewServer(components.Engine, components.Ledger, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	waitForSignal()
	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	reset := fs.Bool("reset", true, "allow dropping and recreating the collection (required for ingestion)")
	watch := fs.Bool("watch", false, "keep running and re-ingest after source files change")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()

	dirs := fs.Args()
	if len(dirs) == 0 {
		dirs = cfg.Ingest.Directories
	}
	if len(dirs) == 0 {
		fmt.Fprintln(os.Stderr, "No source directories: pass them as arguments or set ingest.directories")
		os.Exit(1)
	}

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		cli.WriteError(os.Stderr, err, format)
		os.Exit(1)
	}
	defer components.Close()
	idx := components.newIndexer(cfg, logger, *reset)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := ingestOnce(ctx, idx, dirs, os.Stdout, format); err != nil {
		cli.WriteError(os.Stderr, err, format)
		if !*watch {
			os.Exit(1)
		}
	}
	if !*watch {
		return
	}

	w := watcher.NewWatcher(dirs, cfg.Ingest.Extensions, cfg.Ingest.RecursiveOrDefault(),
		func(ctx context.Context, changed []string) {
			logger.Info("re-ingesting after changes", zap.Strings("changed", changed))
			if err := ingestOnce(ctx, idx, dirs, os.Stdout, format); err != nil {
				logger.Error("re-ingest failed", zap.String("kind", models.KindOf(err)), zap.Error(err))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(time.Duration(cfg.Ingest.WatchDebounceS)*time.Second),
	)
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	logger.Info("watching source directories", zap.Strings("dirs", dirs))
	waitForSignal()
	logger.Info("Shutting down...")
	w.Stop()
}

// ingestOnce runs one full ingestion of dirs and writes the report to out.
func ingestOnce(ctx context.Context, idx *indexer.Indexer, dirs []string, out io.Writer, format cli.OutputFormat) error {
	report, err := idx.IngestDirectories(ctx, dirs)
	if err != nil {
		return err
	}
	return cli.WriteIngestReport(out, report, format)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = answer in-process)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: jurischat ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}

	var answer *models.Answer
	if *serverURL != "" {
		answer, err = askViaHTTP(context.Background(), http.DefaultClient, *serverURL, question)
	} else {
		cfg, logger := setup(*configPath, false)
		defer logger.Sync()
		components, initErr := initializeComponents(cfg, logger)
		if initErr != nil {
			cli.WriteError(os.Stderr, initErr, format)
			os.Exit(1)
		}
		defer components.Close()
		answer, err = components.Engine.Ask(context.Background(), question)
	}
	if err != nil {
		cli.WriteError(os.Stderr, err, format)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// remoteError is returned for non-200 /api/ask replies.
type remoteError struct {
	Status  int
	Kind    string
	Message string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Kind, e.Message)
}

// Unwrap exposes the server's error kind so models.KindOf reports it locally.
func (e *remoteError) Unwrap() error {
	return models.ErrorForKind(e.Kind)
}

func askViaHTTP(ctx context.Context, client *http.Client, serverURL, question string) (*models.Answer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/api/ask", strings.NewReader(question))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var body struct {
			Error string `json:"error"`
			Kind  string `json:"kind"`
		}
		if json.Unmarshal(b, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(b))
		}
		return nil, &remoteError{Status: resp.StatusCode, Kind: body.Kind, Message: body.Error}
	}
	var answer models.Answer
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &answer, nil
}

func runChunk() {
	fs := flag.NewFlagSet("chunk", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: jurischat chunk [flags] <file>")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	chunks, err := chunkFile(cfg, fs.Arg(0))
	if err != nil {
		cli.WriteError(os.Stderr, err, format)
		os.Exit(1)
	}
	if err := cli.WriteChunks(os.Stdout, chunks, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// chunkFile reads one source file and chunks it with the configured limits.
func chunkFile(cfg *config.Config, path string) ([]*models.Chunk, error) {
	doc, err := extract.NewExtractor().Read(path)
	if err != nil {
		return nil, err
	}
	return newChunker(cfg).Chunk(doc.Title, doc.Content)
}

func runRuns() {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of runs to show")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	ledger, err := storage.NewSQLiteLedger(cfg.Ingest.LedgerPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()
	runs, err := ledger.ListRuns(context.Background(), *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "List runs failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRuns(os.Stdout, runs, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runInitConfig() {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	path := fs.String("config", "config.yaml", "path to write")
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(os.Args[2:])

	if err := writeStarterConfig(*path, *force); err != nil {
		fmt.Fprintf(os.Stderr, "init-config failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *path)
}

// writeStarterConfig writes the default config to path. It refuses to overwrite unless force.
func writeStarterConfig(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	}
	cfg := &config.Config{LogLevel: "info"}
	config.ApplyDefaults(cfg)
	cfg.Ingest.Directories = []string{"./statutes"}
	recursive := true
	cfg.Ingest.Recursive = &recursive
	return config.Save(path, cfg)
}

// Components holds initialized services.
type Components struct {
	Ledger   storage.Ledger
	Embedder embedding.Embedder
	Opener   vector.Opener
	Composer *generation.Composer
	Engine   *search.Engine
}

func (c *Components) Close() {
	if c.Ledger != nil {
		_ = c.Ledger.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func (c *Components) newIndexer(cfg *config.Config, logger *zap.Logger, allowReset bool) *indexer.Indexer {
	return indexer.NewIndexer(c.Opener, c.Embedder, newChunker(cfg), extract.NewExtractor(),
		indexer.Options{
			Collection: cfg.Milvus.Collection,
			Dimensions: cfg.Embedding.Dimensions,
			Extensions: cfg.Ingest.Extensions,
			Recursive:  cfg.Ingest.RecursiveOrDefault(),
			AllowReset: allowReset,
		},
		indexer.WithLogger(logger),
		indexer.WithLedger(c.Ledger),
	)
}

func newChunker(cfg *config.Config) *indexer.Chunker {
	return indexer.NewChunker(cfg.Chunker.MaxLength, cfg.Chunker.ArticleMaxLength, cfg.Chunker.SentenceSoftLimit)
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	ledger, err := storage.NewSQLiteLedger(cfg.Ingest.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ledger: %w", err)
	}
	c := &Components{Ledger: ledger}

	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Opener, err = vector.NewOpener(cfg, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Composer, err = generation.New(cfg.Chat, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Engine = search.NewEngine(c.Opener, c.Embedder, c.Composer, search.Options{
		Collection: cfg.Milvus.Collection,
		TopK:       cfg.Vector.TopK,
		Model:      cfg.Chat.Model,
	}, logger)

	logger.Info("components initialized",
		zap.String("collection", cfg.Milvus.Collection),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("chat_provider", cfg.Chat.Provider),
		zap.Int("dimensions", cfg.Embedding.Dimensions))
	return c, nil
}

func waitForSignal() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}

// buildQuestion joins positional args with spaces so questions work with or without quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves flags that appear after positional arguments to the front so
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`jurischat - question answering over Chinese statutes

Usage:
  jurischat server [flags]               Start the HTTP server
  jurischat ingest [flags] [dirs...]     Rebuild the collection from statute files
  jurischat ask [flags] <question>       Ask a legal question
  jurischat chunk [flags] <file>         Show how a file is chunked
  jurischat runs [flags]                 List recent ingestion runs
  jurischat init-config [flags]          Write a starter config.yaml
  jurischat version                      Show version
  jurischat help                         Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/jurischat/config.yaml,
                     or ./config.yaml when present)

Server Flags:
  --debug            Enable debug logging

Ingest Flags:
  --reset            Allow dropping and recreating the collection (default: true)
  --watch            Keep running and re-ingest when source files change
  --output string    Output format: text or json (default: text)

Ask Flags:
  --server string    Server URL (default: http://localhost:8080). Use --server "" to answer in-process.
  --output string    Output format: text or json (default: text)

Runs Flags:
  --limit int        Number of runs to show (default: 10)

Environment:
  DASHSCOPE_API_KEY  Embedding and chat credential (name set by api_key_env)
  MILVUS_ADDRESS     Overrides milvus.address
  JURISCHAT_PORT     Overrides server.port

Examples:
  jurischat init-config
  jurischat ingest ./statutes
  jurischat ingest --watch
  jurischat server
  jurischat ask 公民的基本权利有哪些
  jurischat ask --output json "什么是正当防卫？"
  jurischat chunk ./statutes/宪法.docx`)
}
