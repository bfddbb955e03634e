// Persistence for the Template Miner: a miner's resident clusters can be
// serialized to a byte stream and restored from it, so a long-running
// pipeline survives a restart without re-learning every template from
// scratch, per spec.md §4.6.
//
// Adapted from the teacher's bboltCache (internal/anonymizer/cache.go), which
// persisted a flat string→string PII-value cache to an embedded bbolt
// database. A miner's state is a cluster set plus a prefix tree rather than
// a flat map, so instead of storing individual key/value pairs this keeps
// one gob-encoded snapshot per miner instance, addressed by name, under the
// same bucket-per-database shape the teacher used.
package miner

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"
)

// clusterSnapshot is the gob-serializable form of one resident cluster.
type clusterSnapshot struct {
	ID     int
	Tokens []string
	Size   int
}

// snapshot is the gob-serializable form of a Miner's full state. The prefix
// tree itself is not stored; Restore rebuilds it by re-descending each
// cluster's current (possibly wildcarded) token sequence.
type snapshot struct {
	NextID   int
	Clusters []clusterSnapshot
}

// Persist encodes the miner's current cluster set to a byte stream.
func (m *Miner) Persist() ([]byte, error) {
	clusters := m.Clusters()
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })

	snap := snapshot{NextID: m.nextID}
	for _, c := range clusters {
		snap.Clusters = append(snap.Clusters, clusterSnapshot{
			ID:     c.ID,
			Tokens: append([]string(nil), c.Tokens...),
			Size:   c.Size,
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("encode miner snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the miner's current state with the one encoded in data,
// re-descending the prefix tree for every stored cluster so tree-leaf
// membership matches what Add would have produced.
func (m *Miner) Restore(data []byte) error {
	var snap snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return fmt.Errorf("decode miner snapshot: %w", err)
	}

	m.root = newNode()
	m.clusterLeaf = make(map[int]*node)
	if m.cache != nil {
		m.cache = newClusterCache(m.maxClusters, m.dropCluster)
	} else {
		m.clusters = make(map[int]*Cluster)
	}
	m.nextID = snap.NextID

	for _, cs := range snap.Clusters {
		cluster := &Cluster{ID: cs.ID, Tokens: cs.Tokens, Size: cs.Size}
		leaf := m.descend(cluster.Tokens, len(cluster.Tokens))
		leaf.clusterIDs = append(leaf.clusterIDs, cluster.ID)
		m.clusterLeaf[cluster.ID] = leaf
		m.putCluster(cluster)
	}
	return nil
}

// --- Store: file-backed persistence for one or more named miners --------

const bboltBucket = "miner_snapshots"

// Store is an embedded bbolt database holding one snapshot per named miner
// instance (e.g. "original" and "anonymized"), so both of a pipeline's
// miners can share a single file.
type Store struct {
	db *bolt.DB
}

// OpenStore opens (or creates) the bbolt database at path and ensures its
// bucket exists.
func OpenStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open miner store %q: %w", path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bboltBucket))
		return err
	}); err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create miner store bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Save persists m's current state under name, overwriting any prior entry.
func (s *Store) Save(name string, m *Miner) error {
	data, err := m.Persist()
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		return b.Put([]byte(name), data)
	})
}

// Load restores m from the snapshot stored under name. loaded is false (with
// a nil error) when no snapshot exists yet for that name, leaving m
// untouched.
func (s *Store) Load(name string, m *Miner) (loaded bool, err error) {
	var data []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bboltBucket))
		if v := b.Get([]byte(name)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("read miner snapshot %q: %w", name, err)
	}
	if data == nil {
		return false, nil
	}
	if err := m.Restore(data); err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the underlying bbolt database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
