package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateKey(t *testing.T) {
	ts := time.Date(2024, 3, 5, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05", DateKey(ts))
	assert.Equal(t, "2024-03-06", DateKey(ts.Add(time.Minute)))
	assert.Equal(t, "", DateKey(time.Time{}))
}

func TestMsToTime(t *testing.T) {
	assert.Equal(t, "2024-01-01 00:00:00", FormatDateTime(MsToTime(1704067200000)))
}

func TestNowNano_Monotonic(t *testing.T) {
	a := NowNano()
	b := NowNano()
	assert.GreaterOrEqual(t, b, a)
}
