package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"ventwave/internal/secret"

	bravesearch "github.com/cnosuke/go-brave-search"
)

const (
	defaultResultCount = 5
	maxResultCount     = 20
)

type searchResult struct {
	Title       string
	URL         string
	Description string
}

type searchFunc func(ctx context.Context, query string, count int) ([]searchResult, error)

// LiteratureSearch lets the model look up published material on
// ventilator asynchrony through Brave Search.
type LiteratureSearch struct {
	search searchFunc
}

// NewLiteratureSearch resolves the Brave API key from key on every call.
func NewLiteratureSearch(key secret.Source) *LiteratureSearch {
	return &LiteratureSearch{search: braveSearch(key)}
}

func braveSearch(key secret.Source) searchFunc {
	return func(ctx context.Context, query string, count int) ([]searchResult, error) {
		v, err := key.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		client, err := bravesearch.NewClient(v.Reveal())
		if err != nil {
			return nil, fmt.Errorf("brave client: %w", err)
		}
		resp, err := client.WebSearch(ctx, query, &bravesearch.WebSearchParams{
			Count: count,
		})
		if err != nil {
			return nil, fmt.Errorf("brave search: %w", err)
		}
		var out []searchResult
		for _, r := range resp.GetWebResults() {
			out = append(out, searchResult{Title: r.Title, URL: r.URL, Description: r.Description})
		}
		return out, nil
	}
}

func (l *LiteratureSearch) Name() string { return "literature_search" }
func (l *LiteratureSearch) Description() string {
	return "Search the web for clinical literature on ventilator waveforms and patient-ventilator asynchrony"
}

func (l *LiteratureSearch) InputSchema() any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query, e.g. an asynchrony type and the ventilator mode",
			},
			"count": map[string]any{
				"type":        "integer",
				"description": "Number of results to return (default 5, max 20)",
			},
		},
		"required":             []string{"query", "count"},
		"additionalProperties": false,
	}
}

func (l *LiteratureSearch) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Query string `json:"query"`
		Count int    `json:"count"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("parsing literature_search input: %w", err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("query is required")
	}
	if args.Count <= 0 {
		args.Count = defaultResultCount
	}
	if args.Count > maxResultCount {
		args.Count = maxResultCount
	}

	slog.Debug("literature_search: searching", "query", args.Query, "count", args.Count)

	results, err := l.search(ctx, args.Query, args.Count)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		fmt.Fprintf(&b, "%s\n%s\n%s", stripTags(r.Title), r.URL, stripTags(r.Description))
	}

	slog.Debug("literature_search: done", "query", args.Query, "results", len(results))
	return truncate([]byte(b.String())), nil
}
