// Package miner implements the Template Miner (C6): a streaming,
// Drain-style clusterer that groups structurally similar log messages under
// a shared template, assigning each a dense, insertion-ordered cluster id.
//
// There is no teacher precedent for template mining — the proxy never
// clusters message shapes — so the tree/similarity/merge algorithm here is
// grounded on Grafana Loki's pkg/pattern/drain (a complete, independent
// Drain implementation retrieved alongside the teacher), adapted from its
// hashicorp/golang-lru-backed cluster cache to the int-keyed clusterCache in
// eviction.go, itself adapted from the teacher's S3-FIFO cache.
package miner

import (
	"regexp"
	"strconv"
	"strings"

	"logpipe/internal/config"
)

// wildcard is the single token a template uses in place of any position that
// has varied across merged messages, per spec.md §4.6.
const wildcard = "<*>"

// unboundedClusters is the sentinel max_clusters value meaning "never evict".
const unboundedClusters = 999999

// truncateBypassLength is the content-length guard from spec.md §4.6: a
// message longer than this never enters the tree and is reported under the
// reserved out-of-band cluster id -1.
const truncateBypassLength = 50 * 1024

// truncatedTemplatePrefixLength bounds the prefix kept in the truncated
// "template" reported for an oversized message.
const truncatedTemplatePrefixLength = 100

var (
	reDecimal = regexp.MustCompile(`^[0-9]+$`)
	reHex     = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	reHasHexLetter = regexp.MustCompile(`[a-fA-F]`)
	reIPv4    = regexp.MustCompile(`^(?:\d{1,3}\.){3}\d{1,3}$`)
)

// Cluster is one resident template: its current token sequence (with
// wildcard positions already substituted) and how many messages it has
// absorbed.
type Cluster struct {
	ID     int
	Tokens []string
	Size   int
}

// Template renders the cluster's current token sequence as a single string.
func (c *Cluster) Template() string {
	return strings.Join(c.Tokens, " ")
}

// node is one branch point of the depth-limited prefix tree. Branching is by
// token count at the root, then by literal token value or wildcard below
// that; a leaf accumulates the ids of every cluster reached by its path.
type node struct {
	children   map[string]*node
	clusterIDs []int
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Miner is one streaming template-clustering instance. Two independent
// instances are expected in normal operation — one fed original content,
// one fed anonymized content — and neither one's state leaks into the
// other: a Miner only ever sees whatever text its caller passes to Add.
type Miner struct {
	depth       int
	maxChildren int
	maxClusters int
	simTh       float64

	root *node

	clusters    map[int]*Cluster // used when maxClusters is unbounded
	cache       *clusterCache    // used when maxClusters is finite
	clusterLeaf map[int]*node    // leaf owning each resident cluster id

	nextID int
}

// New builds a Miner from one drain3 config section (spec.md §4.6 / §6).
func New(cfg config.DrainConfig) *Miner {
	depth := cfg.Depth
	if depth < 1 {
		depth = 4
	}
	maxChildren := cfg.MaxChildren
	if maxChildren < 1 {
		maxChildren = unboundedClusters
	}
	simTh := cfg.SimilarityThreshold
	if simTh <= 0 {
		simTh = 0.4
	}

	m := &Miner{
		depth:       depth,
		maxChildren: maxChildren,
		maxClusters: cfg.MaxClusters,
		simTh:       simTh,
		root:        newNode(),
		clusterLeaf: make(map[int]*node),
	}

	if cfg.MaxClusters <= 0 || cfg.MaxClusters >= unboundedClusters {
		m.clusters = make(map[int]*Cluster)
	} else {
		m.cache = newClusterCache(cfg.MaxClusters, m.dropCluster)
	}
	return m
}

// dropCluster removes id from the tree leaf that owns it, invoked by the
// cache when eviction drops a cluster.
func (m *Miner) dropCluster(id int) {
	leaf, ok := m.clusterLeaf[id]
	if !ok {
		return
	}
	delete(m.clusterLeaf, id)
	leaf.clusterIDs = removeInt(leaf.clusterIDs, id)
}

func removeInt(ids []int, target int) []int {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func (m *Miner) getCluster(id int) *Cluster {
	if m.cache != nil {
		c, _ := m.cache.Peek(id)
		return c
	}
	return m.clusters[id]
}

func (m *Miner) putCluster(c *Cluster) {
	if m.cache != nil {
		m.cache.Put(c)
		return
	}
	m.clusters[c.ID] = c
}

// touch marks id as freshly matched, for the cache's recency bookkeeping.
func (m *Miner) touch(id int) {
	if m.cache != nil {
		m.cache.Get(id)
	}
}

// Add clusters one message, returning the cluster id it was assigned (or -1
// if message bypassed clustering under the truncation guard), the cluster's
// current template, and its size after this insertion.
func (m *Miner) Add(message string) (clusterID int, template string, size int) {
	if len(message) > truncateBypassLength {
		prefix := message
		if len(prefix) > truncatedTemplatePrefixLength {
			prefix = prefix[:truncatedTemplatePrefixLength]
		}
		return -1, prefix + "... [TRUNCATED]", 1
	}

	tokens := tokenize(message)
	n := len(tokens)
	leaf := m.descend(tokens, n)

	best, bestSim := m.bestMatch(leaf, tokens, n)
	if best != nil && bestSim >= m.simTh {
		for i, tok := range tokens {
			if best.Tokens[i] != tok {
				best.Tokens[i] = wildcard
			}
		}
		best.Size++
		m.touch(best.ID)
		return best.ID, best.Template(), best.Size
	}

	m.nextID++
	cluster := &Cluster{ID: m.nextID, Tokens: append([]string(nil), tokens...), Size: 1}
	leaf.clusterIDs = append(leaf.clusterIDs, cluster.ID)
	m.clusterLeaf[cluster.ID] = leaf
	m.putCluster(cluster)
	return cluster.ID, cluster.Template(), cluster.Size
}

// descend walks the prefix tree for a token sequence of length n, branching
// first on n itself (so similarity comparisons only ever happen between
// messages of equal token count) and then on up to min(depth, n) literal or
// wildcard tokens, creating branches as needed and falling back to a shared
// wildcard child once a node's literal fan-out is saturated.
func (m *Miner) descend(tokens []string, n int) *node {
	lengthKey := strconv.Itoa(n)
	cur, ok := m.root.children[lengthKey]
	if !ok {
		cur = newNode()
		m.root.children[lengthKey] = cur
	}

	steps := m.depth
	if steps > n {
		steps = n
	}
	if steps < 0 {
		steps = 0
	}

	for i := 0; i < steps; i++ {
		tok := tokens[i]
		if child, ok := cur.children[tok]; ok {
			cur = child
			continue
		}
		if wc, ok := cur.children[wildcard]; ok {
			cur = wc
			continue
		}
		if len(cur.children) < m.maxChildren {
			child := newNode()
			cur.children[tok] = child
			cur = child
			continue
		}
		wc := newNode()
		cur.children[wildcard] = wc
		cur = wc
	}
	return cur
}

// bestMatch scans every cluster id resident at leaf and returns the one with
// the highest token-wise similarity to tokens, restricted to clusters whose
// template has exactly n tokens.
func (m *Miner) bestMatch(leaf *node, tokens []string, n int) (*Cluster, float64) {
	var best *Cluster
	bestSim := -1.0
	for _, id := range leaf.clusterIDs {
		c := m.getCluster(id)
		if c == nil || len(c.Tokens) != n {
			continue
		}
		sim := similarity(c.Tokens, tokens)
		if sim > bestSim {
			bestSim = sim
			best = c
		}
	}
	return best, bestSim
}

// similarity is the fraction of equal-index token pairs between a and b,
// per spec.md §4.6 step 3. A wildcard template token counts as equal only
// when the incoming token is itself literally "<*>" after masking.
func similarity(a, b []string) float64 {
	if len(a) == 0 {
		return 1
	}
	equal := 0
	for i := range a {
		if a[i] == b[i] {
			equal++
		}
	}
	return float64(equal) / float64(len(a))
}

// tokenize splits a message on whitespace and masks tokens that are purely
// numeric, hexadecimal, or IPv4-shaped, so that clustering compares message
// structure rather than the specific values that structure carries.
func tokenize(message string) []string {
	fields := strings.Fields(message)
	tokens := make([]string, len(fields))
	for i, f := range fields {
		tokens[i] = maskToken(f)
	}
	return tokens
}

func maskToken(tok string) string {
	switch {
	case reIPv4.MatchString(tok):
		return wildcard
	case reDecimal.MatchString(tok):
		return wildcard
	case len(tok) >= 6 && reHex.MatchString(tok) && reHasHexLetter.MatchString(tok):
		return wildcard
	default:
		return tok
	}
}

// Clusters returns every resident cluster, in no particular order.
func (m *Miner) Clusters() []*Cluster {
	if m.cache != nil {
		return m.cache.Values()
	}
	out := make([]*Cluster, 0, len(m.clusters))
	for _, c := range m.clusters {
		out = append(out, c)
	}
	return out
}

// Len returns the number of resident clusters.
func (m *Miner) Len() int {
	if m.cache != nil {
		return m.cache.Len()
	}
	return len(m.clusters)
}
