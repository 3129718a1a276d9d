package formula

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxNesting = 64
	DefaultCacheSize  = 1024
)

// Options configure an Engine.
type Options struct {
	MaxNesting int
	CacheSize  int
	Logger     logrus.FieldLogger
	Clock      Clock
	Random     RandomGenerator
}

type Option func(*Options)

func WithLogger(l logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithCacheSize bounds the parsed program cache. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(o *Options) { o.CacheSize = n }
}

func WithMaxNesting(n int) Option {
	return func(o *Options) { o.MaxNesting = n }
}

func WithClock(c Clock) Option {
	return func(o *Options) { o.Clock = c }
}

func WithRandom(r RandomGenerator) Option {
	return func(o *Options) { o.Random = r }
}

type cacheKey struct {
	kind   FormulaKind
	anchor Address
	text   string
}

// Engine parses, caches and evaluates formulas. Parsing results depend on
// the sheet and name tables of the workbook, so hosts call Purge whenever
// those change.
type Engine struct {
	opts  Options
	funcs *BuiltInFunctions
	cache *lru.Cache[cacheKey, *Program]
	log   logrus.FieldLogger
}

// NewEngine creates an engine with the given options.
func NewEngine(options ...Option) *Engine {
	opts := Options{
		MaxNesting: DefaultMaxNesting,
		CacheSize:  DefaultCacheSize,
		Logger:     logrus.StandardLogger(),
		Clock:      &WallClock{},
		Random:     &DefaultRandomGenerator{},
	}
	for _, opt := range options {
		opt(&opts)
	}

	e := &Engine{
		opts:  opts,
		funcs: NewBuiltInFunctions(opts.Clock, opts.Random),
		log:   opts.Logger.WithField("component", "formula"),
	}
	if opts.CacheSize > 0 {
		// lru.New only fails for non-positive sizes
		e.cache, _ = lru.New[cacheKey, *Program](opts.CacheSize)
	}
	return e
}

// Parse compiles text written at anchor. The returned program is shared
// with the cache and must not be modified.
func (e *Engine) Parse(text string, anchor Address, kind FormulaKind, book Workbook) (*Program, error) {
	key := cacheKey{kind: kind, anchor: anchor, text: text}
	if e.cache != nil {
		if prog, ok := e.cache.Get(key); ok {
			return prog, nil
		}
	}

	prog, err := NewParser(text, anchor, kind, book, e.funcs, e.opts.MaxNesting).Parse()
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"formula": text,
			"kind":    kind,
		}).WithError(err).Debug("formula rejected")
		return nil, err
	}
	if e.cache != nil {
		e.cache.Add(key, prog)
	}
	return prog, nil
}

// Evaluate runs prog for the cell described by ctx.
func (e *Engine) Evaluate(prog *Program, ctx *EvaluationContext) Value {
	return evaluate(prog, ctx, e.funcs)
}

// EvaluateFormula parses text at the cell of ctx and evaluates it.
func (e *Engine) EvaluateFormula(text string, ctx *EvaluationContext) (Value, error) {
	prog, err := e.Parse(text, ctx.Address(), KindCell, ctx.Grid)
	if err != nil {
		return Blank, err
	}
	return e.Evaluate(prog, ctx), nil
}

func (e *Engine) Rebase(master *Program, anchor, target Address) (*Program, error) {
	return RebaseSharedFormula(master, anchor, target)
}

func (e *Engine) Render(prog *Program) string {
	return RenderFormulaText(prog)
}

// Functions returns the built-in function table.
func (e *Engine) Functions() *BuiltInFunctions {
	return e.funcs
}

// Purge drops every cached program.
func (e *Engine) Purge() {
	if e.cache == nil {
		return
	}
	e.log.WithField("programs", e.cache.Len()).Debug("purging program cache")
	e.cache.Purge()
}

var defaultEngine = NewEngine(WithCacheSize(0))

// Parse compiles a formula without caching.
func Parse(text string, anchor Address, kind FormulaKind, book Workbook) (*Program, error) {
	return defaultEngine.Parse(text, anchor, kind, book)
}

// Evaluate runs prog with the default function table.
func Evaluate(prog *Program, ctx *EvaluationContext) Value {
	return defaultEngine.Evaluate(prog, ctx)
}
