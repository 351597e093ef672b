package fastparse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	for _, v := range []any{"12.5", 12.5, json.Number("12.5")} {
		got, err := Number(v)
		require.NoError(t, err)
		assert.Equal(t, 12.5, got)
	}
	_, err := Number(true)
	assert.Error(t, err)
	_, err = Number("abc")
	assert.Error(t, err)
}

func TestInt(t *testing.T) {
	for _, v := range []any{"1704067200000", float64(1704067200000), json.Number("1704067200000")} {
		got, err := Int(v)
		require.NoError(t, err)
		assert.Equal(t, int64(1704067200000), got)
	}
	_, err := Int(nil)
	assert.Error(t, err)
	assert.Equal(t, 0.0, MustParseFloat("x"))
}
