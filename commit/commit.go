// Package commit maintains a tamper-evident commitment chain over the
// purchase record log. Each record is folded into a running MiMC hash
// (bn254 scalar field), so any replay of the log can be checked against
// the published head without trusting the storage it came from.
//
// Every input is reduced into a field element before hashing, so each
// MiMC block is canonical.
package commit

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// Chain is a running commitment over an append-only record stream.
// The zero value is a valid empty chain. Chain is not safe for
// concurrent use; when registered as a sale observer it is invoked
// inside the sale's critical section, which already serializes calls.
type Chain struct {
	head fr.Element
	size int
}

// NewChain creates an empty chain.
func NewChain() *Chain {
	return &Chain{}
}

// Add folds a record into the chain and returns the new head.
func (c *Chain) Add(rec *sale.PurchaseRecord) []byte {
	digest := recordDigest(rec)

	h := mimc.NewMiMC()
	h.Write(c.head.Marshal())
	h.Write(digest.Marshal())
	c.head.SetBytes(h.Sum(nil))
	c.size++
	return c.head.Marshal()
}

// Head returns the current commitment (32 bytes, big-endian).
func (c *Chain) Head() []byte {
	return c.head.Marshal()
}

// HeadHex returns the current commitment as a hex string.
func (c *Chain) HeadHex() string {
	return hex.EncodeToString(c.Head())
}

// Size returns the number of records folded in.
func (c *Chain) Size() int {
	return c.size
}

// PurchaseMade implements sale.Observer.
func (c *Chain) PurchaseMade(rec *sale.PurchaseRecord) { c.Add(rec) }

// StatusChanged implements sale.Observer; only the record stream is
// committed.
func (c *Chain) StatusChanged(_ sale.Status) {}

// SaleCompleted implements sale.Observer; completion is not part of
// the record stream.
func (c *Chain) SaleCompleted(_ *uint256.Int) {}

var _ sale.Observer = (*Chain)(nil)

// Verify replays records and reports whether the resulting head equals
// the expected commitment.
func Verify(records []*sale.PurchaseRecord, head []byte) bool {
	chain := NewChain()
	for _, rec := range records {
		chain.Add(rec)
	}
	var want fr.Element
	want.SetBytes(head)
	return chain.head.Equal(&want)
}

// recordDigest hashes the record fields into one field element. The
// identity strings go through sha256 first, then everything is reduced
// into fr before entering MiMC.
func recordDigest(rec *sale.PurchaseRecord) fr.Element {
	h := mimc.NewMiMC()

	var e fr.Element
	ids := sha256.Sum256([]byte(rec.ID + "\x00" + rec.Buyer))
	e.SetBytes(ids[:])
	h.Write(e.Marshal())

	e.SetUint64(rec.Units)
	h.Write(e.Marshal())

	e.SetBytes(rec.TokenCost.Bytes())
	h.Write(e.Marshal())

	e.SetBytes(rec.PlatformFee.Bytes())
	h.Write(e.Marshal())

	e.SetUint64(rec.UnitsSold)
	h.Write(e.Marshal())

	e.SetUint64(uint64(rec.Timestamp.UnixNano()))
	h.Write(e.Marshal())

	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return out
}
