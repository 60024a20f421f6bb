package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func TestRoundHalfCentsUp(t *testing.T) {
	assert.Equal(t, "1.01", Round(amount("1.005")).StringFixed(2))
	assert.Equal(t, "2.68", Round(amount("2.675")).StringFixed(2))
	assert.Equal(t, "-1.01", Round(amount("-1.005")).StringFixed(2))
	assert.Equal(t, "612.00", Round(amount("612")).StringFixed(2))
}

func TestFloorNeverLowers(t *testing.T) {
	assert.True(t, amount("5").Equal(Floor(amount("1.2"), amount("5"))))
	assert.True(t, amount("612").Equal(Floor(amount("612"), amount("5"))))
	assert.True(t, amount("10.25").Equal(Floor(amount("10.25"), amount("5"))))
	assert.True(t, amount("5.01").Equal(Floor(amount("5.005"), amount("5"))))
}

func TestWithinTolerance(t *testing.T) {
	tol := amount("0.5")
	assert.True(t, Within(amount("300"), amount("300.5"), tol))
	assert.False(t, Within(amount("300"), amount("300.51"), tol))
	assert.False(t, Within(amount("300"), amount("380"), tol))
	assert.True(t, Within(amount("0.1").Add(amount("0.2")), amount("0.3"), decimal.Zero))
}

func TestParse(t *testing.T) {
	cases := map[string]string{
		"380":     "380",
		"380.50":  "380.5",
		"380,50":  "380.5",
		" 19.99 ": "19.99",
		"1.005":   "1.005",
		"-10":     "-10",
	}
	for raw, want := range cases {
		got, err := Parse(raw)
		require.NoError(t, err, raw)
		assert.True(t, amount(want).Equal(got), raw)
	}

	for _, raw := range []string{"abc", "", "1,000.50,2", "NaN"} {
		_, err := Parse(raw)
		assert.Error(t, err, raw)
	}
}

func TestFloatConversions(t *testing.T) {
	assert.Equal(t, 612.0, Float(amount("612")))
	assert.Equal(t, 19.99, Float(amount("19.994")))
	assert.Nil(t, FloatPtr(nil))
	d := amount("195")
	assert.Equal(t, 195.0, *FloatPtr(&d))
	assert.True(t, amount("0.5").Equal(FromFloat(0.5)))
}
