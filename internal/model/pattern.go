package model

import "time"

// Pattern is a supplier-scoped, position-aware confidence boost learned from
// a Correction. Never matches across suppliers.
type Pattern struct {
	Supplier   string    `json:"supplier"` // normalized: lowercase, trimmed; "unknown" sentinel if absent
	LayoutHash string    `json:"layout_hash"`
	Position   Rect      `json:"position"`
	Boost      float64   `json:"boost"` // in [0, 0.2]
	UsageCount int       `json:"usage_count"`
	LastUsed   time.Time `json:"last_used"`
}

// Correction is one user-submitted fix to an extracted total, the source
// material for pattern learning.
type Correction struct {
	InvoiceID         string    `json:"invoice_id"` // invoice number if present, else file stem
	Supplier          string    `json:"supplier"`
	OriginalTotal     float64   `json:"original_total"`
	CorrectedTotal    float64   `json:"corrected_total"`
	RawConfidence     float64   `json:"raw_confidence"`
	BoostedConfidence float64   `json:"boosted_confidence"`
	Timestamp         time.Time `json:"timestamp"`
	// LayoutHash and Position carry over the geometric context of the
	// original extraction so a Pattern can be derived without re-deriving it.
	LayoutHash string `json:"layout_hash,omitempty"`
	Position   *Rect  `json:"position,omitempty"`
}
