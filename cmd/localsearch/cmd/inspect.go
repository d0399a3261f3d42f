package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/localsearch/internal/document"
	lserrors "github.com/Aman-CERP/localsearch/internal/errors"
	"github.com/Aman-CERP/localsearch/internal/index"
	"github.com/Aman-CERP/localsearch/internal/node"
	"github.com/Aman-CERP/localsearch/internal/output"
	"github.com/Aman-CERP/localsearch/internal/store"
)

// inspectReport summarizes a published index artifact.
type inspectReport struct {
	File      string         `json:"file"`
	Version   int            `json:"version"`
	Engine    string         `json:"engine"`
	Documents int            `json:"documents"`
	Terms     int            `json:"terms"`
	Segments  map[string]int `json:"segments"`
	Analyzer  any            `json:"analyzer"`
	TopTerms  []termCount    `json:"top_terms,omitempty"`
	Hits      []hit          `json:"hits,omitempty"`
}

// inspectOptions selects the optional parts of an inspect report.
type inspectOptions struct {
	TopTerms int
	Lookup   string
}

// hit is a stored record reached through a term's postings.
type hit struct {
	ID     int               `json:"id"`
	Record document.Document `json:"record"`
}

// termCount is a term and the number of documents containing it.
type termCount struct {
	Term      string `json:"term"`
	Documents int    `json:"documents"`
}

func newInspectCmd() *cobra.Command {
	var (
		jsonOutput bool
		opts       inspectOptions
	)

	cmd := &cobra.Command{
		Use:   "inspect <file.index.txt>",
		Short: "Describe a published index artifact",
		Long: `Describe a published index artifact.

With --lookup, the term's postings are resolved into records of the store
published next to the index (<digest>.store.json).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := inspectArtifact(args[0], opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}

			out := output.New(cmd.OutOrStdout())
			out.Header(report.File)
			out.Field("version", report.Version)
			out.Field("engine", report.Engine)
			out.Field("documents", report.Documents)
			out.Field("terms", report.Terms)
			out.Newline()

			names := make([]string, 0, len(report.Segments))
			for name := range report.Segments {
				names = append(names, name)
			}
			sort.Strings(names)
			rows := make([][]string, len(names))
			for i, name := range names {
				rows[i] = []string{name, strconv.Itoa(report.Segments[name])}
			}
			out.Table([]string{"SEGMENT", "BYTES"}, rows)

			if len(report.TopTerms) > 0 {
				out.Newline()
				termRows := make([][]string, len(report.TopTerms))
				for i, tc := range report.TopTerms {
					termRows[i] = []string{tc.Term, strconv.Itoa(tc.Documents)}
				}
				out.Table([]string{"TERM", "DOCUMENTS"}, termRows)
			}

			if opts.Lookup != "" {
				out.Newline()
				if len(report.Hits) == 0 {
					out.Warningf("no documents contain %q", opts.Lookup)
					return nil
				}
				hitRows := make([][]string, len(report.Hits))
				for i, h := range report.Hits {
					record, err := json.Marshal(h.Record)
					if err != nil {
						return err
					}
					hitRows[i] = []string{strconv.Itoa(h.ID), string(record)}
				}
				out.Table([]string{"ID", "RECORD"}, hitRows)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().IntVar(&opts.TopTerms, "terms", 0, "Also list the N most frequent terms")
	cmd.Flags().StringVar(&opts.Lookup, "lookup", "", "Resolve the documents containing a term through the store")

	return cmd
}

func inspectArtifact(path string, opts inspectOptions) (*inspectReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read %s", path), err)
	}

	decoded, err := index.Decode(string(data))
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s is not an index artifact", path), err)
	}
	stats, err := decoded.Context()
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s has an unreadable context segment", path), err)
	}
	ids, err := decoded.IDs()
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s has an unreadable registry segment", path), err)
	}
	if len(ids) != stats.Documents {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s registers %d ids for %d documents", path, len(ids), stats.Documents), nil)
	}

	report := &inspectReport{
		File:      path,
		Version:   decoded.Version,
		Engine:    decoded.Engine,
		Documents: stats.Documents,
		Terms:     stats.Terms,
		Segments:  make(map[string]int, len(decoded.Segments)),
		Analyzer:  stats.Analyzer,
	}
	for name, raw := range decoded.Segments {
		report.Segments[name] = len(raw)
	}

	if opts.TopTerms <= 0 && opts.Lookup == "" {
		return report, nil
	}
	vocab, err := decoded.Vocabulary()
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s has an unreadable mapping segment", path), err)
	}
	if opts.TopTerms > 0 {
		report.TopTerms = mostFrequent(vocab, opts.TopTerms)
	}
	if opts.Lookup != "" {
		report.Hits, err = lookupHits(path, vocab[strings.ToLower(opts.Lookup)])
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

// lookupHits resolves positional ids through the store published next to
// the index artifact at path.
func lookupHits(path string, ids []int) ([]hit, error) {
	storePath := strings.TrimSuffix(path, node.IndexSuffix) + node.StoreSuffix
	data, err := os.ReadFile(storePath)
	if err != nil {
		return nil, lserrors.New(lserrors.ErrCodeFileNotFound,
			fmt.Sprintf("cannot read store %s", storePath), err)
	}
	var st store.Artifact
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("%s is not a store artifact", storePath), err)
	}

	hits := make([]hit, 0, len(ids))
	for _, id := range ids {
		record, ok := st.Lookup(id)
		if !ok {
			return nil, lserrors.New(lserrors.ErrCodeCorruptIndex,
				fmt.Sprintf("%s has no record for id %d", storePath, id), nil)
		}
		hits = append(hits, hit{ID: id, Record: record})
	}
	return hits, nil
}

// mostFrequent returns the n terms with the longest posting lists; ties are
// broken alphabetically.
func mostFrequent(vocab map[string][]int, n int) []termCount {
	counts := make([]termCount, 0, len(vocab))
	for term, ids := range vocab {
		counts = append(counts, termCount{Term: term, Documents: len(ids)})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Documents != counts[j].Documents {
			return counts[i].Documents > counts[j].Documents
		}
		return counts[i].Term < counts[j].Term
	})
	if len(counts) > n {
		counts = counts[:n]
	}
	return counts
}
