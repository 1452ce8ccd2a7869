package recordlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

// jsonlRecord is the wire form of a purchase record. Amounts are
// decimal strings so full 256-bit values survive the trip through JSON.
type jsonlRecord struct {
	ID          string    `json:"id"`
	Buyer       string    `json:"buyer"`
	Units       uint64    `json:"units"`
	TokenCost   string    `json:"token_cost"`
	PlatformFee string    `json:"platform_fee"`
	UnitsSold   uint64    `json:"units_sold"`
	Timestamp   time.Time `json:"timestamp"`
}

// WriteJSONL writes records to w, one JSON object per line, in order.
func WriteJSONL(w io.Writer, records []*sale.PurchaseRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i, rec := range records {
		line := jsonlRecord{
			ID:          rec.ID,
			Buyer:       rec.Buyer,
			Units:       rec.Units,
			TokenCost:   rec.TokenCost.Dec(),
			PlatformFee: rec.PlatformFee.Dec(),
			UnitsSold:   rec.UnitsSold,
			Timestamp:   rec.Timestamp,
		}
		if err := enc.Encode(&line); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ReadJSONL parses a JSONL record stream produced by WriteJSONL.
func ReadJSONL(r io.Reader) ([]*sale.PurchaseRecord, error) {
	var records []*sale.PurchaseRecord
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var raw jsonlRecord
		if err := json.Unmarshal(line, &raw); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}
		rec, err := raw.toRecord()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading stream: %w", err)
	}
	return records, nil
}

func (j *jsonlRecord) toRecord() (*sale.PurchaseRecord, error) {
	cost, err := uint256.FromDecimal(j.TokenCost)
	if err != nil {
		return nil, fmt.Errorf("bad token_cost %q: %w", j.TokenCost, err)
	}
	fee, err := uint256.FromDecimal(j.PlatformFee)
	if err != nil {
		return nil, fmt.Errorf("bad platform_fee %q: %w", j.PlatformFee, err)
	}
	return &sale.PurchaseRecord{
		ID:          j.ID,
		Buyer:       j.Buyer,
		Units:       j.Units,
		TokenCost:   cost,
		PlatformFee: fee,
		UnitsSold:   j.UnitsSold,
		Timestamp:   j.Timestamp,
	}, nil
}
