package entity_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pokt-network/bridge-core/entity"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	for _, test := range []struct {
		Name        string
		Input       string
		Expected    int64
		ExpectError bool
	}{
		{Name: "whole number", Input: "15", Expected: 15_000000},
		{Name: "fraction", Input: "0.5", Expected: 500000},
		{Name: "full precision", Input: "1.234567", Expected: 1_234567},
		{Name: "leading dot", Input: ".25", Expected: 250000},
		{Name: "trailing dot", Input: "3.", Expected: 3_000000},
		{Name: "zero", Input: "0", Expected: 0},
		{Name: "too precise", Input: "0.1234567", ExpectError: true},
		{Name: "empty", Input: "", ExpectError: true},
		{Name: "just a dot", Input: ".", ExpectError: true},
		{Name: "not a number", Input: "ten", ExpectError: true},
	} {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			t.Logf("Running sub-test %q", test.Name)

			raw, err := entity.ParseAmount(test.Input)
			if test.ExpectError {
				require.ErrorIs(t, err, entity.ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.Expected, raw.Int64())
		})
	}
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	require.Equal(t, "15", entity.FormatAmount(big.NewInt(15_000000)))
	require.Equal(t, "0.5", entity.FormatAmount(big.NewInt(500000)))
	require.Equal(t, "1.234567", entity.FormatAmount(big.NewInt(1_234567)))
	require.Equal(t, "0.000001", entity.FormatAmount(big.NewInt(1)))
	require.Equal(t, "0", entity.FormatAmount(big.NewInt(0)))
	require.Equal(t, "0", entity.FormatAmount(nil))
}

func TestParseFormatRoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"15", "0.5", "1.234567", "0.000001", "1000000"} {
		raw, err := entity.ParseAmount(s)
		require.NoError(t, err)
		require.Equal(t, s, entity.FormatAmount(raw))
	}
}
