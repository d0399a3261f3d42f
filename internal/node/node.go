// Package node assembles the built artifacts of one named index into the
// record consumed by page templates.
package node

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/google/uuid"

	"github.com/Aman-CERP/localsearch/internal/engine"
	"github.com/Aman-CERP/localsearch/internal/store"
)

// TypePrefix is prepended to every index name to form its type name.
const TypePrefix = "LocalSearch"

// File suffixes of published artifacts.
const (
	IndexSuffix = ".index.txt"
	StoreSuffix = ".store.json"
)

// namespace scopes node ids to this tool.
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/Aman-CERP/localsearch"))

// Publisher persists content-addressed files and returns their public URLs.
type Publisher interface {
	Publish(ctx context.Context, filename string, data []byte) string
}

// Node is the registered record of one named index.
type Node struct {
	ID            string
	Name          string
	Type          string
	Index         string
	Store         store.Artifact
	ContentDigest string

	storeJSON []byte
}

// New assembles a node, computing its id, type and content digest.
func New(name, index string, st store.Artifact) (*Node, error) {
	storeJSON, err := st.JSON()
	if err != nil {
		return nil, err
	}
	digest, err := Digest(index, storeJSON)
	if err != nil {
		return nil, err
	}
	return &Node{
		ID:            ID(name),
		Name:          name,
		Type:          TypeName(name),
		Index:         index,
		Store:         st,
		ContentDigest: digest,
		storeJSON:     storeJSON,
	}, nil
}

// StoreJSON returns the encoded store.
func (n *Node) StoreJSON() []byte { return n.storeJSON }

// IndexFilename is the published name of the index artifact.
func (n *Node) IndexFilename() string { return n.ContentDigest + IndexSuffix }

// StoreFilename is the published name of the store artifact.
func (n *Node) StoreFilename() string { return n.ContentDigest + StoreSuffix }

// PublicIndexURL persists the index artifact if needed and returns its URL.
func (n *Node) PublicIndexURL(ctx context.Context, p Publisher) string {
	return p.Publish(ctx, n.IndexFilename(), []byte(n.Index))
}

// PublicStoreURL persists the store artifact if needed and returns its URL.
func (n *Node) PublicStoreURL(ctx context.Context, p Publisher) string {
	return p.Publish(ctx, n.StoreFilename(), n.storeJSON)
}

// Entry is the manifest form of a node with both URLs resolved.
type Entry struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Name           string `json:"name"`
	ContentDigest  string `json:"contentDigest"`
	PublicIndexURL string `json:"publicIndexURL"`
	PublicStoreURL string `json:"publicStoreURL"`
}

// Resolve publishes both artifacts and returns the manifest entry.
func (n *Node) Resolve(ctx context.Context, p Publisher) Entry {
	return Entry{
		ID:             n.ID,
		Type:           n.Type,
		Name:           n.Name,
		ContentDigest:  n.ContentDigest,
		PublicIndexURL: n.PublicIndexURL(ctx, p),
		PublicStoreURL: n.PublicStoreURL(ctx, p),
	}
}

// TypeName returns the PascalCase type of a named index,
// e.g. "blog-posts" -> "LocalSearchBlogPosts".
func TypeName(name string) string {
	var b strings.Builder
	for _, word := range engine.TokenizeCode(TypePrefix + " " + name) {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// ID returns the deterministic node id of a named index.
func ID(name string) string {
	return uuid.NewSHA1(namespace, []byte(name)).String()
}

// Digest hashes both artifacts together.
func Digest(index string, storeJSON []byte) (string, error) {
	if len(storeJSON) == 0 {
		storeJSON = []byte("[]")
	}
	payload, err := json.Marshal(struct {
		Index string          `json:"index"`
		Store json.RawMessage `json:"store"`
	}{index, storeJSON})
	if err != nil {
		return "", fmt.Errorf("failed to encode digest payload: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Registry holds the nodes registered during one run.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*Node
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*Node)}
}

// Register stores n under its name, replacing any earlier record.
func (r *Registry) Register(n *Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[n.Name] = n
}

// Get returns the node registered under name.
func (r *Registry) Get(name string) (*Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return n, ok
}

// Names returns registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered nodes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}
