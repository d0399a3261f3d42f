package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
)

const (
	// TokenizerName is the registry name of the localsearch tokenizer.
	TokenizerName = "localsearch_tokenizer"

	// TokenFilterName is the registry name of the stop word / length filter.
	TokenFilterName = "localsearch_filter"

	// AnalyzerName is the name of the analyzer added to every index mapping.
	AnalyzerName = "localsearch"
)

func init() {
	_ = registry.RegisterTokenizer(TokenizerName, tokenizerConstructor)
	_ = registry.RegisterTokenFilter(TokenFilterName, tokenFilterConstructor)
}

// BleveEngine indexes documents into an in-memory Bleve v2 index.
type BleveEngine struct {
	mu     sync.Mutex
	index  bleve.Index
	batch  *bleve.Batch
	opts   Options
	ids    map[int]struct{}
	closed bool
}

// bleveDocument is the document structure for Bleve indexing.
type bleveDocument struct {
	Content string `json:"content"`
}

// NewBleveEngine creates an empty in-memory Bleve index.
func NewBleveEngine(opts Options) (*BleveEngine, error) {
	indexMapping, err := createIndexMapping(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create index mapping: %w", err)
	}

	idx, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &BleveEngine{
		index: idx,
		batch: idx.NewBatch(),
		opts:  opts,
		ids:   make(map[int]struct{}),
	}, nil
}

// createIndexMapping creates the Bleve index mapping with the custom analyzer
// as default.
func createIndexMapping(opts Options) (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()

	err := indexMapping.AddCustomTokenizer("localsearch_split", map[string]interface{}{
		"type":      TokenizerName,
		"tokenizer": opts.Tokenizer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add tokenizer: %w", err)
	}

	stopWords := make([]interface{}, len(opts.StopWords))
	for i, w := range opts.StopWords {
		stopWords[i] = w
	}
	err = indexMapping.AddCustomTokenFilter("localsearch_stop", map[string]interface{}{
		"type":       TokenFilterName,
		"stop_words": stopWords,
		"min_length": float64(opts.MinTokenLength),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add token filter: %w", err)
	}

	err = indexMapping.AddCustomAnalyzer(AnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": "localsearch_split",
		"token_filters": []string{
			lowercase.Name,
			"localsearch_stop",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add custom analyzer: %w", err)
	}

	indexMapping.DefaultAnalyzer = AnalyzerName
	indexMapping.StoreDynamic = false

	return indexMapping, nil
}

// Backend implements Engine.
func (b *BleveEngine) Backend() string { return string(BackendBleve) }

// Segments implements Engine.
func (b *BleveEngine) Segments() []string { return CanonicalSegments() }

// Add implements Engine.
func (b *BleveEngine) Add(id int, doc string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	if id < 0 {
		return fmt.Errorf("invalid document id %d", id)
	}
	if _, exists := b.ids[id]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}

	if err := b.batch.Index(strconv.Itoa(id), bleveDocument{Content: doc}); err != nil {
		return fmt.Errorf("failed to index document %d: %w", id, err)
	}
	b.ids[id] = struct{}{}
	return nil
}

// Export implements Engine.
func (b *BleveEngine) Export(ctx context.Context) (<-chan Segment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}
	if b.batch.Size() > 0 {
		if err := b.index.Batch(b.batch); err != nil {
			return nil, fmt.Errorf("failed to execute batch: %w", err)
		}
		b.batch.Reset()
	}

	ids := sortedIDs(b.ids)
	return runExport(ctx, map[string]exportFunc{
		SegmentRegistry: func(context.Context) (string, error) {
			return marshalSegment(ids)
		},
		SegmentConfig: func(context.Context) (string, error) {
			return configSegment(b.Backend(), b.opts)
		},
		SegmentMapping: func(ctx context.Context) (string, error) {
			m, err := b.mapping(ctx, len(ids))
			if err != nil {
				return "", err
			}
			return marshalSegment(Mapping{contentField: m})
		},
		SegmentContext: func(context.Context) (string, error) {
			terms, err := b.termCount()
			if err != nil {
				return "", err
			}
			return marshalSegment(Context{
				Documents: len(ids),
				Terms:     terms,
				Analyzer:  analyzerConfig(b.Backend(), b.opts),
			})
		},
	}), nil
}

// mapping reads the term dictionary of the content field and resolves the
// documents of each term.
func (b *BleveEngine) mapping(ctx context.Context, docCount int) (map[string][]int, error) {
	dict, err := b.index.FieldDict(contentField)
	if err != nil {
		return nil, fmt.Errorf("failed to open field dictionary: %w", err)
	}
	defer func() { _ = dict.Close() }()

	out := make(map[string][]int)
	for {
		entry, err := dict.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to read field dictionary: %w", err)
		}
		if entry == nil {
			break
		}

		ids, err := b.postings(ctx, entry.Term, docCount)
		if err != nil {
			return nil, err
		}
		out[entry.Term] = ids
	}
	return out, nil
}

// postings returns the ascending ids of documents containing term.
func (b *BleveEngine) postings(ctx context.Context, term string, docCount int) ([]int, error) {
	q := bleve.NewTermQuery(term)
	q.SetField(contentField)

	req := bleve.NewSearchRequestOptions(q, docCount, 0, false)
	result, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve term %q: %w", term, err)
	}

	ids := make([]int, 0, len(result.Hits))
	for _, hit := range result.Hits {
		id, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("unexpected document id %q: %w", hit.ID, err)
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (b *BleveEngine) termCount() (int, error) {
	dict, err := b.index.FieldDict(contentField)
	if err != nil {
		return 0, fmt.Errorf("failed to open field dictionary: %w", err)
	}
	defer func() { _ = dict.Close() }()

	n := 0
	for {
		entry, err := dict.Next()
		if err != nil {
			return 0, fmt.Errorf("failed to read field dictionary: %w", err)
		}
		if entry == nil {
			return n, nil
		}
		n++
	}
}

// Close implements Engine.
func (b *BleveEngine) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

// Verify interface implementation
var _ Engine = (*BleveEngine)(nil)

func analyzerConfig(backend string, opts Options) AnalyzerConfig {
	filters := []string{"lowercase"}
	if len(opts.StopWords) > 0 {
		filters = append(filters, "stop")
	}
	if opts.MinTokenLength > 1 {
		filters = append(filters, "length")
	}
	return AnalyzerConfig{
		Backend:   backend,
		Field:     contentField,
		Tokenizer: opts.Tokenizer,
		Filters:   filters,
	}
}

func sortedIDs(set map[int]struct{}) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func marshalSegment(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// tokenizerConstructor creates the localsearch tokenizer for Bleve.
func tokenizerConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.Tokenizer, error) {
	mode, _ := config["tokenizer"].(string)
	if mode == "" {
		mode = TokenizerUnicode
	}
	return &bleveTokenizer{mode: mode}, nil
}

// bleveTokenizer implements analysis.Tokenizer on top of splitSpans.
type bleveTokenizer struct {
	mode string
}

// Tokenize implements analysis.Tokenizer.
func (t *bleveTokenizer) Tokenize(input []byte) analysis.TokenStream {
	spans := splitSpans(string(input), t.mode)

	result := make(analysis.TokenStream, 0, len(spans))
	for i, span := range spans {
		result = append(result, &analysis.Token{
			Term:     []byte(span.Term),
			Start:    span.Start,
			End:      span.End,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
	}
	return result
}

// tokenFilterConstructor creates the stop word / minimum length filter.
func tokenFilterConstructor(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
	var words []string
	if raw, ok := config["stop_words"]; ok {
		w, err := toStrings(raw)
		if err != nil {
			return nil, fmt.Errorf("stop_words: %w", err)
		}
		words = w
	}

	minLen := 1
	if raw, ok := config["min_length"]; ok {
		n, err := toInt(raw)
		if err != nil {
			return nil, fmt.Errorf("min_length: %w", err)
		}
		minLen = n
	}

	return &bleveTokenFilter{
		stopWords: BuildStopWordMap(words),
		minLen:    minLen,
	}, nil
}

// bleveTokenFilter implements analysis.TokenFilter with the same rules as
// Tokenize.
type bleveTokenFilter struct {
	stopWords map[string]struct{}
	minLen    int
}

// Filter implements analysis.TokenFilter.
func (f *bleveTokenFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	result := make(analysis.TokenStream, 0, len(input))
	for _, token := range input {
		if term, ok := keepTerm(string(token.Term), f.stopWords, f.minLen); ok {
			token.Term = []byte(term)
			result = append(result, token)
		}
	}
	return result
}
