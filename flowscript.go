// Package flowscript compiles and executes FlowScript, a terse
// control-flow notation for sequencing, branching, and concurrently
// orchestrating named units of work.
//
// A program is a set of newline-terminated flow definitions:
//
//	checkout = reserve^release && charge^refund && ship
//	fetch    = primary~2s:cached || secondary@3:exp
//	ingest   = validate -> { ok: store, err: reject } -> notify&
//
// Step and predicate names are opaque; their bodies are supplied by the
// host through an api.Registry. Compile once, execute many times:
//
//	prog, err := flowscript.Compile(source)
//	eng := flowscript.NewEngine(flowscript.Options{})
//	trace, err := eng.Execute(ctx, prog, "checkout", registry)
//
// Compiled programs are immutable and safe to share across concurrent
// executions.
package flowscript

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/kode4food/flowscript/internal/config"
	"github.com/kode4food/flowscript/internal/engine"
	"github.com/kode4food/flowscript/internal/lexer"
	"github.com/kode4food/flowscript/internal/parser"
	"github.com/kode4food/flowscript/internal/policy"
	"github.com/kode4food/flowscript/internal/resolver"
	"github.com/kode4food/flowscript/internal/util"
	"github.com/kode4food/flowscript/pkg/api"
	"github.com/kode4food/flowscript/pkg/ast"
	"github.com/kode4food/flowscript/pkg/log"
)

const (
	// Name identifies this library in structured log output
	Name = "flowscript"

	// Version is reported alongside Name by configured loggers
	Version = "0.1.0"
)

type (
	// Engine executes compiled programs against host-supplied handlers
	Engine = engine.Engine

	// Options configures a new Engine
	Options = engine.Options
)

var (
	// programs is sized lazily so FLOWSCRIPT_CACHE_SIZE takes effect
	// before the first cached compile
	programs = sync.OnceValue(func() *util.LRUCache[*ast.Program] {
		return util.NewLRUCache[*ast.Program](programCacheSize())
	})

	logLevels = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

func programCacheSize() int {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.DefaultCacheSize
	}
	return cfg.CacheSize
}

// Compile turns FlowScript source into a resolved Program. Errors are
// static: lexical, grammatical, or referential; no partial execution is
// possible
func Compile(source string) (*ast.Program, error) {
	tokens, err := lexer.Tokenize(source)
	if err != nil {
		return nil, err
	}
	prog, err := parser.Parse(tokens)
	if err != nil {
		return nil, err
	}
	if err := resolver.Resolve(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// CompileCached is Compile behind a process-wide LRU keyed by source
// text
func CompileCached(source string) (*ast.Program, error) {
	return programs().Get(source, func() (*ast.Program, error) {
		return Compile(source)
	})
}

// MustCompile is Compile for fixtures and tests; it panics on error
func MustCompile(source string) *ast.Program {
	prog, err := Compile(source)
	if err != nil {
		panic(err)
	}
	return prog
}

// NewEngine creates an execution engine. The zero Options value yields
// an in-process engine with default worker and policy settings
func NewEngine(opts Options) *Engine {
	return engine.New(opts)
}

// NewEngineFromConfig wires settings into an Engine. A Redis address
// switches the policy store to the shared implementation so breaker
// and rate-limit state spans processes
func NewEngineFromConfig(cfg *config.Config) *Engine {
	level, ok := logLevels[cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	var store policy.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = policy.NewRedisStore(client, cfg.RedisPrefix)
	}
	env := os.Getenv("ENV")
	return NewEngine(Options{
		Store:       store,
		Logger:      log.NewWithLevel(Name, env, Version, level),
		Workers:     cfg.Workers,
		StepTimeout: cfg.StepTimeout,
	})
}

// NewEngineFromEnv reads FLOWSCRIPT_* environment variables and builds
// an Engine from them
func NewEngineFromEnv() (*Engine, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return NewEngineFromConfig(cfg), nil
}

// Execute compiles source through the cache and runs the named entry
// flow on a default engine
func Execute(
	ctx context.Context, source string, entry api.FlowName,
	registry api.Registry,
) (*api.ExecutionTrace, error) {
	prog, err := CompileCached(source)
	if err != nil {
		return nil, err
	}
	return NewEngine(Options{}).Execute(ctx, prog, entry, registry)
}
