package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/Strob0t/lspkit/internal/adapter/otel"
	"github.com/Strob0t/lspkit/internal/domain/lsp"
	"github.com/Strob0t/lspkit/internal/port/cache"
)

// LabelFormatter turns server items into highlighted code labels. The bool
// result is false when the item's kind has no label; callers fall back to
// plain rendering.
type LabelFormatter interface {
	LabelForCompletion(c lsp.Completion) (lsp.CodeLabel, bool)
	LabelForSymbol(s lsp.Symbol) (lsp.CodeLabel, bool)
}

// Elixir snippet prefixes. The code they produce only has to be plausible
// enough for a syntax highlighter.
const (
	elixirModulePrefix   = "defmodule "
	elixirFunctionPrefix = "def "
	elixirOperatorPrefix = "def a "
	elixirOperatorSuffix = " b"
)

// ElixirFormatter labels elixir-ls items. It has no state and is safe for
// concurrent use.
type ElixirFormatter struct{}

// LabelForCompletion implements LabelFormatter.
func (ElixirFormatter) LabelForCompletion(c lsp.Completion) (lsp.CodeLabel, bool) {
	if c.Kind == nil {
		return lsp.CodeLabel{}, false
	}
	switch *c.Kind {
	case lsp.CompletionModule, lsp.CompletionClass, lsp.CompletionInterface, lsp.CompletionStruct:
		return wrapName(elixirModulePrefix, c.Label, ""), true
	case lsp.CompletionFunction, lsp.CompletionConstant:
		return wrapName(elixirFunctionPrefix, c.Label, ""), true
	case lsp.CompletionOperator:
		return wrapName(elixirOperatorPrefix, c.Label, elixirOperatorSuffix), true
	default:
		return lsp.CodeLabel{}, false
	}
}

// LabelForSymbol implements LabelFormatter. Operators have no symbol label.
func (ElixirFormatter) LabelForSymbol(s lsp.Symbol) (lsp.CodeLabel, bool) {
	switch s.Kind {
	case lsp.SymbolModule, lsp.SymbolClass, lsp.SymbolInterface, lsp.SymbolStruct:
		return wrapName(elixirModulePrefix, s.Name, ""), true
	case lsp.SymbolFunction, lsp.SymbolConstant:
		return wrapName(elixirFunctionPrefix, s.Name, ""), true
	default:
		return lsp.CodeLabel{}, false
	}
}

// wrapName embeds name between prefix and suffix. The display span covers
// name inside the code; the filter range covers the bare name.
func wrapName(prefix, name, suffix string) lsp.CodeLabel {
	return lsp.CodeLabel{
		Code: prefix + name + suffix,
		Spans: []lsp.Span{
			{Range: lsp.Range{Start: len(prefix), End: len(prefix) + len(name)}},
		},
		FilterRange: lsp.Range{Start: 0, End: len(name)},
	}
}

// LabelEntry is the cached outcome of one formatter call, including "no label".
type LabelEntry struct {
	Label lsp.CodeLabel
	OK    bool
}

// LabelCache is the cache port specialised to label entries.
type LabelCache = cache.Cache[LabelEntry]

// LabelService memoizes a LabelFormatter for large completion lists.
type LabelService struct {
	formatter LabelFormatter
	cache     LabelCache
	ttl       time.Duration
	metrics   *cfotel.Metrics
}

// NewLabelService creates a label service. A nil cache disables memoization.
func NewLabelService(formatter LabelFormatter, c LabelCache, ttl time.Duration, metrics *cfotel.Metrics) *LabelService {
	return &LabelService{formatter: formatter, cache: c, ttl: ttl, metrics: metrics}
}

// CompletionLabel labels a single completion item.
func (s *LabelService) CompletionLabel(ctx context.Context, c lsp.Completion) (lsp.CodeLabel, bool) {
	key := ""
	if c.Kind != nil {
		key = fmt.Sprintf("completion:%d:%s", *c.Kind, c.Label)
	}
	return s.lookup(ctx, "completion", key, func() (lsp.CodeLabel, bool) {
		return s.formatter.LabelForCompletion(c)
	})
}

// SymbolLabel labels a single symbol.
func (s *LabelService) SymbolLabel(ctx context.Context, sym lsp.Symbol) (lsp.CodeLabel, bool) {
	key := fmt.Sprintf("symbol:%d:%s", sym.Kind, sym.Name)
	return s.lookup(ctx, "symbol", key, func() (lsp.CodeLabel, bool) {
		return s.formatter.LabelForSymbol(sym)
	})
}

// LabelCompletions labels items in order; entries without a label are nil.
func (s *LabelService) LabelCompletions(ctx context.Context, items []lsp.Completion) []*lsp.CodeLabel {
	out := make([]*lsp.CodeLabel, len(items))
	for i := range items {
		if label, ok := s.CompletionLabel(ctx, items[i]); ok {
			out[i] = &label
		}
	}
	return out
}

// LabelSymbols labels symbols in order; entries without a label are nil.
func (s *LabelService) LabelSymbols(ctx context.Context, items []lsp.Symbol) []*lsp.CodeLabel {
	out := make([]*lsp.CodeLabel, len(items))
	for i := range items {
		if label, ok := s.SymbolLabel(ctx, items[i]); ok {
			out[i] = &label
		}
	}
	return out
}

// lookup consults the cache before calling compute. An empty key bypasses
// the cache.
func (s *LabelService) lookup(ctx context.Context, source, key string, compute func() (lsp.CodeLabel, bool)) (lsp.CodeLabel, bool) {
	if s.cache != nil && key != "" {
		entry, found, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.DebugContext(ctx, "label cache get failed", "key", key, "error", err)
		} else if found {
			s.metrics.RecordLabel(ctx, source, entry.OK, true)
			return cloneLabel(entry.Label), entry.OK
		}
	}

	label, ok := compute()
	s.metrics.RecordLabel(ctx, source, ok, false)

	if s.cache != nil && key != "" {
		if err := s.cache.Set(ctx, key, LabelEntry{Label: cloneLabel(label), OK: ok}, s.ttl); err != nil {
			slog.DebugContext(ctx, "label cache set failed", "key", key, "error", err)
		}
	}
	return label, ok
}

// cloneLabel copies the span slice so cached entries never alias a caller's label.
func cloneLabel(l lsp.CodeLabel) lsp.CodeLabel {
	l.Spans = append([]lsp.Span(nil), l.Spans...)
	return l
}
