package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/shopspring/decimal"
)

// record is the persisted cart shape. Only these fields are written.
type record struct {
	Lines          []lineRecord    `json:"lines"`
	TotalItemCount int             `json:"totalItemCount"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
}

type lineRecord struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Product   catalog.Product `json:"product"`
}

// Encode serializes a cart snapshot.
func Encode(snapshot cart.Snapshot) ([]byte, error) {
	rec := record{
		Lines:          make([]lineRecord, 0, len(snapshot.Lines)),
		TotalItemCount: snapshot.TotalItemCount,
		TotalAmount:    snapshot.TotalAmount,
	}
	for _, line := range snapshot.Lines {
		rec.Lines = append(rec.Lines, lineRecord{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   line.Product,
		})
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode cart snapshot: %w", err)
	}
	return payload, nil
}

// Decode parses a persisted cart. totalAmount may be a JSON number or string.
// Stored totals are carried as-is; Restore recomputes them.
func Decode(payload []byte) (cart.Snapshot, error) {
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return cart.Snapshot{}, fmt.Errorf("decode cart snapshot: %w", err)
	}
	snapshot := cart.Snapshot{
		Lines:          make([]cart.Line, 0, len(rec.Lines)),
		TotalItemCount: rec.TotalItemCount,
		TotalAmount:    rec.TotalAmount,
	}
	for _, line := range rec.Lines {
		snapshot.Lines = append(snapshot.Lines, cart.Line{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   line.Product,
		})
	}
	return snapshot, nil
}
