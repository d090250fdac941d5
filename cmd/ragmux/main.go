// ragmux - multi-source retrieval QA service
// Entry point: serve the HTTP API, build vector indexes, answer one-off
// questions, or expose the retrieval tools over MCP.

package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mjsoler/ragmux/internal/api"
	"github.com/mjsoler/ragmux/internal/infra/config"
	"github.com/mjsoler/ragmux/internal/infra/db"
	"github.com/mjsoler/ragmux/internal/infra/eventbus"
	"github.com/mjsoler/ragmux/internal/infra/llm"
	"github.com/mjsoler/ragmux/internal/infra/logging"
	"github.com/mjsoler/ragmux/internal/mcpserver"
	"github.com/mjsoler/ragmux/internal/router"
	"github.com/mjsoler/ragmux/internal/server"
	"github.com/mjsoler/ragmux/internal/tool"
	"github.com/mjsoler/ragmux/internal/translator"
	"github.com/mjsoler/ragmux/internal/vecindex"
	"github.com/mjsoler/ragmux/internal/version"
)

// Corpus names as exposed by the rebuild API and the build-index command.
const (
	corpusProduct  = "product"
	corpusFeedback = "feedback"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("ragmux", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	showVersion := fs.Bool("version", false, "Show version information")
	showHelp := fs.Bool("help", false, "Show help")
	configPath := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintln(out, version.String()) //nolint:errcheck
		return 0
	}

	if *showHelp {
		printHelp(out)
		return 0
	}

	switch fs.Arg(0) {
	case "", "serve":
		return runServe(*configPath, out)
	case "build-index":
		return runBuildIndex(*configPath, fs.Args()[1:], out)
	case "ask":
		return runAsk(*configPath, fs.Args()[1:], out)
	case "mcp":
		return runMCP(*configPath, out)
	default:
		fmt.Fprintf(out, "unknown command %q\n\n", fs.Arg(0)) //nolint:errcheck
		printHelp(out)
		return 2
	}
}

func printHelp(out io.Writer) {
	helpText := `ragmux - multi-source retrieval QA service

Usage:
  ragmux [options] [command]

Options:
  --version    Show version information
  --help       Show this help message
  --config     Path to YAML config file

Commands:
  serve        Start the HTTP server (default)
  build-index  Build a vector index (--corpus product|feedback|all)
  ask          Answer a single question from the command line
  mcp          Expose the retrieval tools over MCP on stdio

Examples:
  ragmux serve
  ragmux build-index --corpus product
  ragmux ask "Who composed For Those About To Rock?"
  ragmux mcp`
	fmt.Fprintln(out, helpText) //nolint:errcheck
}

// app holds the wired components shared by every command.
type app struct {
	cfg      config.Config
	log      *zap.Logger
	provider llm.Provider
	sqlDB    *sql.DB
	bus      *eventbus.Bus
	catalog  *vecindex.Catalog
	registry *tool.Registry
	engine   *router.Engine
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logging.New(os.Getenv("APP_ENV") != "production")
	if err != nil {
		return nil, err
	}

	provider, err := selectProvider(cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	catalog := vecindex.NewCatalog(log)
	catalog.RequireEmbedModel(provider.ModelInfo().EmbedModel)
	for corpus, open := range indexOpeners(cfg) {
		if err := catalog.Register(corpus, open); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, err
		}
	}

	registry := tool.NewRegistry()
	tr := translator.New(sqlDB, provider, log)
	minSim := float32(cfg.MinSimilarity)
	tools := []tool.Tool{
		tool.NewStructuredQuery(tool.StructuredQuerySpec, tr),
		tool.NewSemanticSearch(tool.ProductSearchSpec, corpusProduct, catalog, provider, cfg.SearchK, minSim),
		tool.NewSemanticSearch(tool.FeedbackSearchSpec, corpusFeedback, catalog, provider, cfg.SearchK, minSim),
	}
	for _, t := range tools {
		if err := registry.Register(t); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, err
		}
	}

	rt := router.NewRouter(provider, registry.Specs(), cfg.MaxRounds, log)
	synth := router.NewSynthesizer(provider, log)
	engine := router.NewEngine(rt, synth, registry, cfg.ToolTimeout, log)

	return &app{
		cfg:      cfg,
		log:      log,
		provider: provider,
		sqlDB:    sqlDB,
		bus:      bus,
		catalog:  catalog,
		registry: registry,
		engine:   engine,
	}, nil
}

func (a *app) close() {
	if a.sqlDB != nil {
		a.sqlDB.Close() //nolint:errcheck
	}
	a.log.Sync() //nolint:errcheck
}

// selectProvider registers the configured adapters and routes to the default.
func selectProvider(cfg config.Config) (llm.Provider, error) {
	providers := map[string]llm.Provider{
		"ollama": llm.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaChatModel, cfg.OllamaEmbed),
	}
	if cfg.OpenAIAPIKey != "" {
		providers["openai"] = llm.NewOpenAIProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbed)
	}
	return llm.NewRouter(providers, cfg.LLMProvider).Route(context.Background())
}

func openDatabase(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == "sqlite" {
		return db.NewSQLite(cfg.SQLitePath)
	}
	return db.NewPostgres(cfg.PostgresDSN())
}

// indexOpeners maps each corpus to its read-side index backend.
func indexOpeners(cfg config.Config) map[string]vecindex.Opener {
	if cfg.VectorStore == "qdrant" {
		return map[string]vecindex.Opener{
			corpusProduct:  qdrantOpener(cfg, corpusProduct),
			corpusFeedback: qdrantOpener(cfg, corpusFeedback),
		}
	}
	return map[string]vecindex.Opener{
		corpusProduct:  func() (vecindex.Index, error) { return vecindex.OpenLocal(cfg.ProductIndexDir) },
		corpusFeedback: func() (vecindex.Index, error) { return vecindex.OpenLocal(cfg.FeedbackIndex) },
	}
}

func qdrantOpener(cfg config.Config, corpus string) vecindex.Opener {
	return func() (vecindex.Index, error) {
		return vecindex.NewQdrant(vecindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: qdrantCollection(corpus),
		}), nil
	}
}

func qdrantCollection(corpus string) string {
	return "ragmux_" + corpus
}

// indexRebuilder bridges the rebuild API and the build-index command to the
// vector index builder, resolving source and target per corpus.
type indexRebuilder struct {
	cfg      config.Config
	provider llm.Provider
	builder  *vecindex.Builder
}

func newIndexRebuilder(cfg config.Config, provider llm.Provider, bus *eventbus.Bus, log *zap.Logger) *indexRebuilder {
	return &indexRebuilder{
		cfg:      cfg,
		provider: provider,
		builder:  vecindex.NewBuilder(provider, bus, log),
	}
}

func (r *indexRebuilder) Rebuild(ctx context.Context, corpus string) error {
	var srcDir string
	switch corpus {
	case corpusProduct:
		srcDir = r.cfg.ProductDataDir
	case corpusFeedback:
		srcDir = r.cfg.FeedbackDataDir
	default:
		return fmt.Errorf("unknown corpus %q", corpus)
	}

	w, err := r.writer(ctx, corpus)
	if err != nil {
		return err
	}
	return r.builder.Build(ctx, corpus, srcDir, w)
}

func (r *indexRebuilder) writer(ctx context.Context, corpus string) (vecindex.Writer, error) {
	if r.cfg.VectorStore == "qdrant" {
		// Qdrant needs the vector size up front; the embedding model defines it.
		dim, err := r.probeDimension(ctx)
		if err != nil {
			return nil, err
		}
		return vecindex.NewQdrant(vecindex.QdrantConfig{
			URL:        r.cfg.QdrantURL,
			APIKey:     r.cfg.QdrantAPIKey,
			Collection: qdrantCollection(corpus),
			Dimension:  dim,
		}), nil
	}

	dir := r.cfg.ProductIndexDir
	if corpus == corpusFeedback {
		dir = r.cfg.FeedbackIndex
	}
	return vecindex.NewLocalWriter(dir, r.provider.ModelInfo().EmbedModel), nil
}

func (r *indexRebuilder) probeDimension(ctx context.Context) (int, error) {
	resp, err := r.provider.Embed(ctx, llm.EmbedRequest{Texts: []string{"probe"}})
	if err != nil {
		return 0, fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return 0, fmt.Errorf("probe embedding dimension: empty response")
	}
	return len(resp.Embeddings[0]), nil
}

func runServe(configPath string, out io.Writer) int {
	a, err := newApp(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go a.catalog.Watch(ctx, a.bus)

	rebuilder := newIndexRebuilder(a.cfg, a.provider, a.bus, a.log)
	handler := api.NewRouter(api.Deps{
		Engine:        a.engine,
		Registry:      a.registry,
		Rebuilder:     rebuilder,
		Corpora:       a.catalog.Corpora(),
		AccessKeyHash: a.cfg.AccessKeyHash,
		Log:           a.log,
	})

	srvCfg := server.DefaultConfig()
	srvCfg.Host = a.cfg.HTTPHost
	srvCfg.Port = a.cfg.HTTPPort
	srv := server.NewServer(handler, srvCfg, a.log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("server failed", zap.Error(err))
			return 1
		}
		return 0
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("shutdown failed", zap.Error(err))
			return 1
		}
		return 0
	}
}

func runBuildIndex(configPath string, args []string, out io.Writer) int {
	fs := flag.NewFlagSet("build-index", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	corpus := fs.String("corpus", "", "Corpus to build: product, feedback or all")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var corpora []string
	switch *corpus {
	case corpusProduct, corpusFeedback:
		corpora = []string{*corpus}
	case "all":
		corpora = []string{corpusProduct, corpusFeedback}
	default:
		fmt.Fprintln(out, "build-index requires --corpus product|feedback|all") //nolint:errcheck
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	log, err := logging.New(os.Getenv("APP_ENV") != "production")
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	defer log.Sync() //nolint:errcheck

	provider, err := selectProvider(cfg)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// No event bus: the serving process reloads on its own rebuild events,
	// not on builds done from a separate CLI invocation.
	rebuilder := newIndexRebuilder(cfg, provider, nil, log)
	for _, c := range corpora {
		if err := rebuilder.Rebuild(ctx, c); err != nil {
			fmt.Fprintf(out, "error: build %s: %v\n", c, err) //nolint:errcheck
			return 1
		}
		fmt.Fprintf(out, "index built: %s\n", c) //nolint:errcheck
	}
	return 0
}

func runAsk(configPath string, args []string, out io.Writer) int {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		fmt.Fprintln(out, "ask requires a question") //nolint:errcheck
		return 2
	}

	a, err := newApp(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	answer, err := a.engine.Answer(ctx, question, nil)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}

	fmt.Fprintln(out, answer.Text) //nolint:errcheck
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(answer.Sources, ", ")) //nolint:errcheck
	}
	fmt.Fprintf(out, "Rounds: %d\n", answer.Rounds) //nolint:errcheck
	return 0
}

func runMCP(configPath string, out io.Writer) int {
	a, err := newApp(configPath)
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mcpserver.Run(ctx, a.registry); err != nil {
		fmt.Fprintf(out, "error: %v\n", err) //nolint:errcheck
		return 1
	}
	return 0
}
