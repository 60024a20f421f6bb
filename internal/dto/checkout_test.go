package dto

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalAmountAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]string{
		`{"override_amount": 380}`:      "380",
		`{"override_amount": "380.50"}`: "380.5",
		`{"override_amount": "380,50"}`: "380.5",
		`{"override_amount": 1.005}`:    "1.005",
		`{"override_amount": null}`:     "",
		`{"override_amount": ""}`:       "",
		`{"override_amount": 0}`:        "",
		`{}`:                            "",
	}
	for body, expected := range cases {
		var req CheckoutRequest
		require.NoError(t, json.Unmarshal([]byte(body), &req), body)
		if expected == "" {
			assert.False(t, req.OverrideAmount.Set, body)
			continue
		}
		assert.True(t, req.OverrideAmount.Set, body)
		assert.True(t, decimal.RequireFromString(expected).Equal(req.OverrideAmount.Value), body)
	}
}

func TestOptionalAmountRejectsGarbage(t *testing.T) {
	var req CheckoutRequest
	assert.Error(t, json.Unmarshal([]byte(`{"override_amount": "abc"}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"override_amount": true}`), &req))
}

func TestOptionalAmountKeepsNegativeForValidation(t *testing.T) {
	var req CheckoutRequest
	require.NoError(t, json.Unmarshal([]byte(`{"override_amount": -10}`), &req))
	assert.True(t, req.OverrideAmount.Set)
	assert.True(t, req.OverrideAmount.Value.Equal(decimal.NewFromInt(-10)))
}

func TestOptionalAmountMarshalsAsNumber(t *testing.T) {
	out, err := json.Marshal(OptionalAmount{Value: decimal.RequireFromString("380.50"), Set: true})
	require.NoError(t, err)
	assert.JSONEq(t, `380.5`, string(out))

	out, err = json.Marshal(OptionalAmount{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(out))
}
