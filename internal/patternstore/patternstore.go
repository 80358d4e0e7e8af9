// Package patternstore persists user corrections and derived patterns in an
// embedded transactional key/value store (go.etcd.io/bbolt), giving the
// supplier/layout-hash indexing and ACID single-writer/many-reader model the
// pattern learning layer requires.
package patternstore

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/rezonia/faktura-processor/internal/model"
)

var (
	bucketCorrections = []byte("corrections")
	bucketPatterns    = []byte("patterns")
	bucketBySupplier  = []byte("bySupplier")
)

// UnknownSupplier is the sentinel used for supplier-absent invoices. Adopted
// as a deliberate policy choice: it only ever matches other unknown-supplier
// invoices, never a named one.
const UnknownSupplier = "unknown"

// MinSimilarity is the acceptance floor for a pattern match.
const MinSimilarity = 0.5

// DefaultMaxAge is the cleanup window for unused patterns.
const DefaultMaxAge = 90 * 24 * time.Hour

// Store wraps a bbolt database with the corrections/patterns schema.
type Store struct {
	db *bbolt.DB
}

// Open creates or opens the store at path, ensuring its buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, model.NewPatternStoreError("open", "failed to open pattern store", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketCorrections, bucketPatterns, bucketBySupplier} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, model.NewPatternStoreError("open", "failed to initialize buckets", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeSupplier lowercases and trims a supplier name, substituting the
// UnknownSupplier sentinel when absent. Policy decision, not a default a
// caller can rely on for correctness across tenants.
func NormalizeSupplier(raw string) string {
	n := strings.ToLower(strings.TrimSpace(raw))
	if n == "" {
		return UnknownSupplier
	}
	return n
}

// LayoutHash computes the simplified MVP layout signature: a hash over the
// supplier string combined with the footer layout signature. Extensible to a
// full structural hash later without changing the store's schema.
func LayoutHash(supplier, footerSignature string) string {
	sum := sha256.Sum256([]byte(supplier + "|" + footerSignature))
	return fmt.Sprintf("%x", sum[:8])
}

func patternKey(supplier, layoutHash string, position model.Rect) []byte {
	qx := quantize(position.X)
	qy := quantize(position.Y)
	return []byte(fmt.Sprintf("%s|%s|%d,%d", supplier, layoutHash, qx, qy))
}

func quantize(v float64) int {
	return int(math.Round(v/10) * 10)
}

// AddCorrection appends a correction, deduplicated on (invoice id, corrected
// total). Does not itself derive a Pattern — call ExtractPattern for that.
func (s *Store) AddCorrection(c model.Correction) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCorrections)
		key := correctionKey(c.InvoiceID, c.CorrectedTotal)
		if b.Get(key) != nil {
			return nil // duplicate, no-op
		}
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
	if err != nil {
		return model.NewPatternStoreError("add_correction", "failed to append correction", err)
	}
	return nil
}

func correctionKey(invoiceID string, correctedTotal float64) []byte {
	return []byte(fmt.Sprintf("%s|%.2f", invoiceID, correctedTotal))
}

// ExtractPattern derives a Pattern from a Correction: default boost 0.10,
// position from the total's traceability bbox if present.
func ExtractPattern(c model.Correction) model.Pattern {
	supplier := NormalizeSupplier(c.Supplier)
	layoutHash := c.LayoutHash
	if layoutHash == "" {
		layoutHash = LayoutHash(supplier, "")
	}
	var position model.Rect
	if c.Position != nil {
		position = *c.Position
	}
	return model.Pattern{
		Supplier:   supplier,
		LayoutHash: layoutHash,
		Position:   position,
		Boost:      0.10,
		UsageCount: 0,
		LastUsed:   c.Timestamp,
	}
}

// SavePattern inserts or merges a pattern, maintaining the bySupplier index
// bucket bbolt itself can't give us a secondary index for.
func (s *Store) SavePattern(p model.Pattern) error {
	key := patternKey(p.Supplier, p.LayoutHash, p.Position)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		patterns := tx.Bucket(bucketPatterns)
		bySupplier := tx.Bucket(bucketBySupplier)

		if existing := patterns.Get(key); existing != nil {
			var old model.Pattern
			if err := json.Unmarshal(existing, &old); err == nil {
				p = resolveConflict(old, p)
			}
		}

		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if err := patterns.Put(key, data); err != nil {
			return err
		}

		supplierKey := []byte(p.Supplier)
		keys := splitKeys(bySupplier.Get(supplierKey))
		if !containsKey(keys, string(key)) {
			keys = append(keys, string(key))
		}
		return bySupplier.Put(supplierKey, joinKeys(keys))
	})
	if err != nil {
		return model.NewPatternStoreError("save_pattern", "failed to persist pattern", err)
	}
	return nil
}

// resolveConflict keeps the highest-usage pattern, breaking ties by larger boost.
func resolveConflict(old, new model.Pattern) model.Pattern {
	if old.UsageCount > new.UsageCount {
		return old
	}
	if old.UsageCount == new.UsageCount && old.Boost > new.Boost {
		return old
	}
	return new
}

func splitKeys(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\x00")
}

func joinKeys(keys []string) []byte {
	return []byte(strings.Join(keys, "\x00"))
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Match finds the best pattern for a supplier/layoutHash/position, returning
// (pattern, similarity, found). Never matches across suppliers; an absent
// supplier is queried under UnknownSupplier by the caller (via
// NormalizeSupplier) before calling Match.
func (s *Store) Match(supplier, layoutHash string, position model.Rect) (model.Pattern, float64, bool) {
	var best model.Pattern
	var bestSim float64
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		bySupplier := tx.Bucket(bucketBySupplier)
		patterns := tx.Bucket(bucketPatterns)

		for _, key := range splitKeys(bySupplier.Get([]byte(supplier))) {
			data := patterns.Get([]byte(key))
			if data == nil {
				continue
			}
			var p model.Pattern
			if err := json.Unmarshal(data, &p); err != nil {
				continue
			}
			if p.Supplier != supplier {
				continue // defense in depth: never cross a supplier boundary
			}

			layoutMatch := 0.0
			if p.LayoutHash == layoutHash {
				layoutMatch = 1.0
			}
			dist := distance(p.Position, position)
			sim := 0.5*layoutMatch + 0.5*(1/(1+dist/100))

			if sim >= MinSimilarity && sim > bestSim {
				best = p
				bestSim = sim
				found = true
			}
		}
		return nil
	})
	if err != nil {
		return model.Pattern{}, 0, false
	}
	return best, bestSim, found
}

func distance(a, b model.Rect) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// RecordUsage increments a matched pattern's usage count and last-used time.
func (s *Store) RecordUsage(p model.Pattern) error {
	p.UsageCount++
	p.LastUsed = time.Now()
	return s.SavePattern(p)
}

// Consolidate merges patterns sharing (supplier, layoutHash) whose position
// X/Y corners are within 50 points: keeps the highest-usage entry, sums usage
// counts, retains the most recent last-used. Idempotent: a second run over
// already-consolidated patterns is a no-op.
func (s *Store) Consolidate() error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		patterns := tx.Bucket(bucketPatterns)
		all := map[string]model.Pattern{}

		c := patterns.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p model.Pattern
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			all[string(k)] = p
		}

		groups := map[string][]string{}
		for k, p := range all {
			groupKey := p.Supplier + "|" + p.LayoutHash
			groups[groupKey] = append(groups[groupKey], k)
		}

		for _, keys := range groups {
			merged := mergeByProximity(all, keys, 50)
			for key, p := range merged.updated {
				data, err := json.Marshal(p)
				if err != nil {
					return err
				}
				if err := patterns.Put([]byte(key), data); err != nil {
					return err
				}
			}
			for _, key := range merged.removed {
				if err := patterns.Delete([]byte(key)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return model.NewPatternStoreError("consolidate", "failed to consolidate patterns", err)
	}
	return nil
}

type mergeResult struct {
	updated map[string]model.Pattern
	removed []string
}

func mergeByProximity(all map[string]model.Pattern, keys []string, maxDist float64) mergeResult {
	result := mergeResult{updated: map[string]model.Pattern{}}
	visited := map[string]bool{}

	for _, k := range keys {
		if visited[k] {
			continue
		}
		cluster := []string{k}
		visited[k] = true
		for _, other := range keys {
			if visited[other] {
				continue
			}
			if distance(all[k].Position, all[other].Position) <= maxDist {
				cluster = append(cluster, other)
				visited[other] = true
			}
		}
		if len(cluster) == 1 {
			continue
		}

		best := all[cluster[0]]
		totalUsage := 0
		var lastUsed time.Time
		for _, ck := range cluster {
			p := all[ck]
			totalUsage += p.UsageCount
			if p.UsageCount > best.UsageCount {
				best = p
			}
			if p.LastUsed.After(lastUsed) {
				lastUsed = p.LastUsed
			}
		}
		best.UsageCount = totalUsage
		best.LastUsed = lastUsed

		keptKey := cluster[0]
		result.updated[keptKey] = best
		for _, ck := range cluster[1:] {
			result.removed = append(result.removed, ck)
		}
	}

	return result
}

// Cleanup removes patterns not used within maxAge or whose usage falls below minUsage.
func (s *Store) Cleanup(maxAge time.Duration, minUsage int) error {
	cutoff := time.Now().Add(-maxAge)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		patterns := tx.Bucket(bucketPatterns)
		var toDelete [][]byte

		c := patterns.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var p model.Pattern
			if err := json.Unmarshal(v, &p); err != nil {
				continue
			}
			if p.LastUsed.Before(cutoff) || p.UsageCount < minUsage {
				toDelete = append(toDelete, append([]byte(nil), k...))
			}
		}
		for _, k := range toDelete {
			if err := patterns.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return model.NewPatternStoreError("cleanup", "failed to clean up patterns", err)
	}
	return nil
}
