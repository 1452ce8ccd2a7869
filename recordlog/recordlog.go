// Package recordlog provides the append-only purchase record log and
// its file formats. A Log collects records in memory (it plugs into the
// sale ledger as an observer); the JSONL and CSV functions persist and
// reload record streams for analytics and audit tooling.
package recordlog

import (
	"sync"
	"time"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// Log is an in-memory append-only purchase record log.
type Log struct {
	mu         sync.RWMutex
	records    []*sale.PurchaseRecord
	finalPrice *uint256.Int
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append adds a record to the log.
func (l *Log) Append(rec *sale.PurchaseRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
}

// PurchaseMade implements sale.Observer.
func (l *Log) PurchaseMade(rec *sale.PurchaseRecord) { l.Append(rec) }

// StatusChanged implements sale.Observer; pause and resume transitions
// are not part of the record stream.
func (l *Log) StatusChanged(_ sale.Status) {}

// SaleCompleted implements sale.Observer, retaining the final price
// from the completion notice.
func (l *Log) SaleCompleted(finalPrice *uint256.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.finalPrice = finalPrice.Clone()
}

// Records returns a copy of the record slice in append order.
func (l *Log) Records() []*sale.PurchaseRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]*sale.PurchaseRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Len returns the number of records.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// FinalPrice returns the price carried by the completion notice, or
// nil while the sale is still running.
func (l *Log) FinalPrice() *uint256.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.finalPrice == nil {
		return nil
	}
	return l.finalPrice.Clone()
}

// Summary aggregates a record stream.
type Summary struct {
	Records   int
	Units     uint64
	Gross     *uint256.Int // sum of token costs, excluding fees
	Fees      *uint256.Int
	Buyers    int
	StartTime time.Time
	EndTime   time.Time
}

// Summarize computes summary statistics over the given records.
func Summarize(records []*sale.PurchaseRecord) Summary {
	s := Summary{
		Records: len(records),
		Gross:   new(uint256.Int),
		Fees:    new(uint256.Int),
	}
	buyers := make(map[string]bool)
	for i, rec := range records {
		s.Units += rec.Units
		s.Gross.Add(s.Gross, rec.TokenCost)
		s.Fees.Add(s.Fees, rec.PlatformFee)
		buyers[rec.Buyer] = true
		if i == 0 || rec.Timestamp.Before(s.StartTime) {
			s.StartTime = rec.Timestamp
		}
		if rec.Timestamp.After(s.EndTime) {
			s.EndTime = rec.Timestamp
		}
	}
	s.Buyers = len(buyers)
	return s
}

// Summarize computes summary statistics for the log's records.
func (l *Log) Summarize() Summary {
	return Summarize(l.Records())
}

var _ sale.Observer = (*Log)(nil)
