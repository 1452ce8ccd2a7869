package recordlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"github.com/curvesale-xyz/go-curvesale/sale"
)

var csvHeader = []string{"id", "buyer", "units", "token_cost", "platform_fee", "units_sold", "timestamp"}

// WriteCSV writes records to w with a header row. Timestamps use
// RFC 3339 with nanoseconds; amounts are decimal strings.
func WriteCSV(w io.Writer, records []*sale.PurchaseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			rec.ID,
			rec.Buyer,
			strconv.FormatUint(rec.Units, 10),
			rec.TokenCost.Dec(),
			rec.PlatformFee.Dec(),
			strconv.FormatUint(rec.UnitsSold, 10),
			rec.Timestamp.Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a record stream produced by WriteCSV.
func ReadCSV(r io.Reader) ([]*sale.PurchaseRecord, error) {
	cr := csv.NewReader(r)
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if len(rows[0]) != len(csvHeader) || rows[0][0] != "id" {
		return nil, fmt.Errorf("unexpected header row %v", rows[0])
	}

	records := make([]*sale.PurchaseRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec, err := parseCSVRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseCSVRow(row []string) (*sale.PurchaseRecord, error) {
	if len(row) != len(csvHeader) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(row))
	}
	units, err := strconv.ParseUint(row[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad units %q: %w", row[2], err)
	}
	cost, err := uint256.FromDecimal(row[3])
	if err != nil {
		return nil, fmt.Errorf("bad token_cost %q: %w", row[3], err)
	}
	fee, err := uint256.FromDecimal(row[4])
	if err != nil {
		return nil, fmt.Errorf("bad platform_fee %q: %w", row[4], err)
	}
	unitsSold, err := strconv.ParseUint(row[5], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad units_sold %q: %w", row[5], err)
	}
	ts, err := time.Parse(time.RFC3339Nano, row[6])
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", row[6], err)
	}
	return &sale.PurchaseRecord{
		ID:          row[0],
		Buyer:       row[1],
		Units:       units,
		TokenCost:   cost,
		PlatformFee: fee,
		UnitsSold:   unitsSold,
		Timestamp:   ts,
	}, nil
}
