// Command parlor serves the example chat backends behind a single HTTP
// process: one chat endpoint per backend plus the read-only state snapshots
// their dashboards poll. With -mcp it instead exports the facts toolset over
// MCP stdio for external agent hosts.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/wilhg/parlor/examples/adstudio"
	"github.com/wilhg/parlor/examples/airline"
	"github.com/wilhg/parlor/examples/catlounge"
	"github.com/wilhg/parlor/examples/facts"
	"github.com/wilhg/parlor/examples/metromap"
	"github.com/wilhg/parlor/examples/newsguide"
	"github.com/wilhg/parlor/pkg/adapters/llm"
	_ "github.com/wilhg/parlor/pkg/adapters/llm/gemini"
	_ "github.com/wilhg/parlor/pkg/adapters/llm/openai"
	"github.com/wilhg/parlor/pkg/chat"
	"github.com/wilhg/parlor/pkg/chat/gormstore"
	"github.com/wilhg/parlor/pkg/errmodel"
	"github.com/wilhg/parlor/pkg/keyed"
	"github.com/wilhg/parlor/pkg/mcpserver"
	"github.com/wilhg/parlor/pkg/otel"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	var (
		showVersion bool
		addr        string
		provider    string
		model       string
		databaseURL string
		traceStdout bool
		mcpStdio    bool
	)

	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.StringVar(&addr, "addr", getEnv("PARLOR_ADDR", ":8080"), "http listen address")
	flag.StringVar(&provider, "provider", getEnv("PARLOR_PROVIDER", "openai"), "llm provider (openai, gemini)")
	flag.StringVar(&model, "model", os.Getenv("PARLOR_MODEL"), "model name override")
	flag.StringVar(&databaseURL, "database-url", getEnv("PARLOR_DATABASE_URL", os.Getenv("DATABASE_URL")), "postgres:// or sqlite: DSN for durable state; empty keeps state in memory")
	flag.BoolVar(&traceStdout, "trace-stdout", false, "export traces to stdout")
	flag.BoolVar(&mcpStdio, "mcp", false, "serve the facts toolset over MCP stdio instead of HTTP")
	flag.Parse()

	if showVersion {
		fmt.Printf("parlor %s (commit=%s, date=%s)\n", version, commit, date)
		return
	}

	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, runConfig{
		addr:        addr,
		provider:    provider,
		model:       model,
		databaseURL: databaseURL,
		traceStdout: traceStdout,
		mcpStdio:    mcpStdio,
	}); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

type runConfig struct {
	addr        string
	provider    string
	model       string
	databaseURL string
	traceStdout bool
	mcpStdio    bool
}

func run(ctx context.Context, log *slog.Logger, cfg runConfig) error {
	shutdown, err := otel.Init(ctx, otel.Config{
		ServiceName:    "parlor",
		ServiceVersion: version,
		UseStdout:      cfg.traceStdout,
	})
	if err != nil {
		return fmt.Errorf("otel init: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(sctx)
	}()

	factory, ok := llm.Resolve(cfg.provider)
	if !ok {
		return fmt.Errorf("unknown llm provider %q", cfg.provider)
	}
	client, err := factory(ctx, map[string]any{"model": cfg.model})
	if err != nil {
		return fmt.Errorf("llm provider %s: %w", cfg.provider, err)
	}
	runner, ok := client.(llm.ToolRunner)
	if !ok {
		return fmt.Errorf("llm provider %s does not support tool calls", cfg.provider)
	}

	// Durable state is opt-in: a database URL upgrades the per-thread entity
	// stores, and a Postgres URL additionally upgrades the thread transcript
	// store. Everything else stays in memory.
	var store chat.Store = chat.NewMemoryStore()
	var catStates keyed.Store[catlounge.CatState]
	var profiles keyed.Store[airline.CustomerProfile]
	if cfg.databaseURL != "" {
		db, err := keyed.Open(cfg.databaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate keyed store: %w", err)
		}
		catStates = keyed.NewDurable(db, "catlounge.cats", catlounge.NewCat)
		profiles = keyed.NewDurable(db, "airline.profiles", airline.NewProfile)
		if strings.HasPrefix(strings.ToLower(cfg.databaseURL), "postgres") {
			gs, err := gormstore.Open(cfg.databaseURL)
			if err != nil {
				return fmt.Errorf("open thread store: %w", err)
			}
			store = gs
		}
	}

	factsBackend := facts.New(facts.Config{Store: store, Model: runner, Log: log})

	if cfg.mcpStdio {
		srv, err := mcpserver.New(ctx, "parlor", version, factsBackend.Registry(), store, mcpserver.WithLogger(log))
		if err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		log.Info("serving facts toolset over stdio")
		return srv.Run(ctx)
	}

	var images adstudio.ImageGenerator
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		gen, err := adstudio.NewOpenAIImages(key)
		if err != nil {
			return fmt.Errorf("image generator: %w", err)
		}
		images = gen
	}

	catBackend := catlounge.New(catlounge.Config{Store: store, Model: runner, States: catStates, Log: log})
	airlineBackend := airline.New(airline.Config{Store: store, Model: runner, Profiles: profiles, Titler: client, Log: log})
	metroBackend := metromap.New(metromap.Config{Store: store, Model: runner, Titler: client, Log: log})
	newsBackend := newsguide.New(newsguide.Config{Store: store, Model: runner, Titler: client, Log: log})
	adsBackend := adstudio.New(adstudio.Config{Store: store, Model: runner, Images: images, Log: log})

	mux := http.NewServeMux()

	mux.Handle("/cat/chatkit", chat.NewServer(store, catBackend))
	mux.HandleFunc("/cat/state", func(w http.ResponseWriter, r *http.Request) {
		threadID, ok := threadIDParam(w, r)
		if !ok {
			return
		}
		state, err := catBackend.Cats().Load(r.Context(), threadID)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		writeJSON(w, state)
	})

	mux.Handle("/support/chatkit", chat.NewServer(store, airlineBackend))
	mux.HandleFunc("/support/customer", func(w http.ResponseWriter, r *http.Request) {
		threadID, ok := threadIDParam(w, r)
		if !ok {
			return
		}
		profile, err := airlineBackend.Manager().Profile(r.Context(), threadID)
		if err != nil {
			errmodel.WriteHTTP(w, r, err)
			return
		}
		writeJSON(w, profile)
	})

	mux.Handle("/facts/chatkit", chat.NewServer(store, factsBackend))
	mux.HandleFunc("/facts/saved", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"facts": factsBackend.Facts().Saved()})
	})

	mux.Handle("/metro/chatkit", chat.NewServer(store, metroBackend))
	mux.HandleFunc("/metro/map", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, metroBackend.Metro().Map())
	})

	// The news client reports which page the reader has open through the
	// Article-Id header; the get_current_page tool reads it from the request
	// context.
	newsServer := chat.NewServer(store, newsBackend)
	mux.HandleFunc("/news/chatkit", func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("Article-Id"); id != "" {
			r = r.WithContext(newsguide.WithCurrentArticle(r.Context(), id))
		}
		newsServer.ServeHTTP(w, r)
	})
	mux.HandleFunc("/news/articles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"articles": newsBackend.Articles().ListMetadata()})
	})
	mux.HandleFunc("/news/articles/featured", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"articles": newsBackend.Articles().Featured()})
	})

	mux.Handle("/ads/chatkit", chat.NewServer(store, adsBackend))
	mux.HandleFunc("/ads/assets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"assets": adsBackend.Studio().Assets().ListSaved()})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:              cfg.addr,
		Handler:           otelhttp.NewHandler(mux, "http.server"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.addr, "provider", cfg.provider)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	}
}

// threadIDParam extracts the required threadId query parameter, writing a
// validation error if absent.
func threadIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	threadID := r.URL.Query().Get("threadId")
	if threadID == "" {
		errmodel.WriteHTTP(w, r, errmodel.Validation("missing_thread", "threadId query parameter is required", nil))
		return "", false
	}
	return threadID, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
