// clusterCache bounds the number of resident template clusters, evicting by
// the S3-FIFO policy described below once capacity is exceeded. Eviction
// picks among all of a miner's resident clusters, not only those at the leaf
// that received the new cluster, and it is not a strict least-recently-matched
// order: the victim is the oldest unmatched cluster in S, or else the oldest
// cluster in M.
//
// Adapted from the teacher's s3fifoCache (internal/anonymizer/s3fifo_cache.go,
// an S3-FIFO PII-value→token cache keyed by string). The backing-store layer
// (bbolt passthrough) has no role here — a miner's cluster set is rebuilt
// from a whole-dataset batch pass, not looked up cold — so that layer is
// dropped and the cache becomes a pure in-memory int→*Cluster store. The
// two-queue-plus-ghost eviction policy itself is kept: it gives "evict
// least-recently-matched" better scan resistance than plain LRU when a
// dataset has bursts of one-off messages between recurring templates.
//
// # Algorithm
//
// S3-FIFO ("Simple, Scalable, FIFO-based cache eviction", Yang et al., 2023)
// uses two FIFO queues and a bounded ghost set:
//
//   - S (small, ~10% of capacity): probationary queue. New clusters land here.
//   - M (main, ~90% of capacity): protected queue. A cluster is promoted from
//     S to M once it has matched at least one more message after creation.
//   - G (ghost): a bounded ring of cluster ids recently evicted from S,
//     granting direct M entry to a cluster id that recurs after eviction.
//
// Per-cluster state: saturating match counter (uint8, max 3), incremented on
// every match; reset to 0 on M promotion.
package miner

import (
	"container/list"
	"sync"
)

// clusterCacheEntry holds the in-memory state for one resident cluster.
type clusterCacheEntry struct {
	cluster *Cluster
	freq    uint8
	elem    *list.Element
	inM     bool
}

// clusterCache is the bounded cluster store used when a miner's max_clusters
// is finite. onEvict is invoked synchronously for every cluster dropped, so
// the owning miner can remove it from its prefix tree leaves too.
type clusterCache struct {
	mu sync.Mutex

	capacity int
	sTarget  int
	ghostCap int

	entries map[int]*clusterCacheEntry
	sQueue  *list.List
	mQueue  *list.List

	ghostBuf   []int
	ghostSet   map[int]struct{}
	ghostHead  int
	ghostCount int

	onEvict func(id int)
}

// newClusterCache returns a clusterCache bounded to capacity resident
// clusters (clamped to a minimum of 2). onEvict, if non-nil, is called for
// every cluster id dropped from the cache.
func newClusterCache(capacity int, onEvict func(id int)) *clusterCache {
	if capacity < 2 {
		capacity = 2
	}
	sTarget := capacity / 10
	if sTarget < 1 {
		sTarget = 1
	}
	ghostCap := 2 * sTarget
	if ghostCap < 4 {
		ghostCap = 4
	}
	return &clusterCache{
		capacity: capacity,
		sTarget:  sTarget,
		ghostCap: ghostCap,
		entries:  make(map[int]*clusterCacheEntry, capacity),
		sQueue:   list.New(),
		mQueue:   list.New(),
		ghostBuf: make([]int, ghostCap),
		ghostSet: make(map[int]struct{}, ghostCap),
		onEvict:  onEvict,
	}
}

// Peek returns the cluster for id without affecting its recency state.
func (c *clusterCache) Peek(id int) (*Cluster, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	return e.cluster, true
}

// Get returns the cluster for id, marking it recently matched.
func (c *clusterCache) Get(id int) (*Cluster, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	if e.freq < 3 {
		e.freq++
	}
	return e.cluster, true
}

// Put inserts a newly created cluster, evicting if the cache is over
// capacity afterward.
func (c *clusterCache) Put(cluster *Cluster) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[cluster.ID]; ok {
		e.cluster = cluster
		return
	}

	inM := c.ghostContains(cluster.ID)
	var elem *list.Element
	if inM {
		elem = c.mQueue.PushBack(cluster.ID)
	} else {
		elem = c.sQueue.PushBack(cluster.ID)
	}
	c.entries[cluster.ID] = &clusterCacheEntry{cluster: cluster, elem: elem, inM: inM}

	for c.sQueue.Len()+c.mQueue.Len() > c.capacity {
		c.evictOne()
	}
}

// Len returns the number of resident clusters.
func (c *clusterCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Values returns every resident cluster, in no particular order.
func (c *clusterCache) Values() []*Cluster {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Cluster, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.cluster)
	}
	return out
}

func (c *clusterCache) evictOne() {
	if c.sQueue.Len() > 0 {
		c.evictFromS()
		return
	}
	c.evictFromM()
}

func (c *clusterCache) evictFromS() {
	front := c.sQueue.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(int)
	c.sQueue.Remove(front)

	e, ok := c.entries[id]
	if !ok {
		return
	}

	if e.freq > 0 {
		e.freq = 0
		e.inM = true
		e.elem = c.mQueue.PushBack(id)
		mTarget := c.capacity - c.sTarget
		if c.mQueue.Len() > mTarget {
			c.evictFromM()
		}
		return
	}

	delete(c.entries, id)
	c.ghostAdd(id)
	if c.onEvict != nil {
		c.onEvict(id)
	}
}

func (c *clusterCache) evictFromM() {
	front := c.mQueue.Front()
	if front == nil {
		return
	}
	id, _ := front.Value.(int)
	c.mQueue.Remove(front)
	delete(c.entries, id)
	if c.onEvict != nil {
		c.onEvict(id)
	}
}

func (c *clusterCache) ghostContains(id int) bool {
	_, ok := c.ghostSet[id]
	return ok
}

func (c *clusterCache) ghostAdd(id int) {
	if _, exists := c.ghostSet[id]; exists {
		return
	}
	if c.ghostCount == c.ghostCap {
		oldest := c.ghostBuf[c.ghostHead]
		delete(c.ghostSet, oldest)
		c.ghostHead = (c.ghostHead + 1) % c.ghostCap
		c.ghostCount--
	}
	writeIdx := (c.ghostHead + c.ghostCount) % c.ghostCap
	c.ghostBuf[writeIdx] = id
	c.ghostSet[id] = struct{}{}
	c.ghostCount++
}
