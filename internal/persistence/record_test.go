package persistence

import (
	"encoding/json"
	"testing"

	"github.com/angelmondragon/shopfront/internal/cart"
	"github.com/angelmondragon/shopfront/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWritesWhitelistedFields(t *testing.T) {
	payload, err := Encode(cart.Snapshot{
		Lines: []cart.Line{{
			ProductID: 1,
			Quantity:  2,
			Product:   catalog.Product{ID: 1, Title: "Mascara", Price: decimal.RequireFromString("19.99")},
		}},
		TotalItemCount: 2,
		TotalAmount:    decimal.RequireFromString("39.98"),
	})
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &raw))
	assert.Len(t, raw, 3)
	assert.JSONEq(t, `"39.98"`, string(raw["totalAmount"]))
	assert.JSONEq(t, `2`, string(raw["totalItemCount"]))

	var lines []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw["lines"], &lines))
	require.Len(t, lines, 1)
	assert.JSONEq(t, `1`, string(lines[0]["productId"]))
	assert.JSONEq(t, `2`, string(lines[0]["quantity"]))
	assert.Contains(t, string(lines[0]["product"]), `"title":"Mascara"`)
}

func TestEncodeEmptyCart(t *testing.T) {
	payload, err := Encode(cart.Snapshot{TotalAmount: decimal.Zero})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lines":[],"totalItemCount":0,"totalAmount":"0"}`, string(payload))
}

func TestDecodeAcceptsNumericAndStringAmounts(t *testing.T) {
	for _, amount := range []string{`39.98`, `"39.98"`} {
		payload := `{"lines":[{"productId":1,"quantity":2,"product":{"id":1,"title":"Mascara","price":19.99,"images":["a"]}}],"totalItemCount":2,"totalAmount":` + amount + `}`

		snapshot, err := Decode([]byte(payload))
		require.NoError(t, err, amount)
		require.Len(t, snapshot.Lines, 1)
		assert.Equal(t, int64(1), snapshot.Lines[0].ProductID)
		assert.Equal(t, 2, snapshot.Lines[0].Quantity)
		assert.True(t, snapshot.Lines[0].Product.Price.Equal(decimal.RequireFromString("19.99")))
		assert.True(t, snapshot.TotalAmount.Equal(decimal.RequireFromString("39.98")), amount)
	}
}

func TestDecodeRejectsMalformedPayload(t *testing.T) {
	_, err := Decode([]byte(`{"lines":`))
	require.Error(t, err)
}
