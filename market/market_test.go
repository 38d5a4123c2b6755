package market

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(h, m int) time.Time {
	return time.Date(2025, 8, 19, h, m, 0, 0, time.UTC)
}

func TestParseBarRow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		row     []string
		wantErr bool
		check   func(t *testing.T, b Bar)
	}{
		{
			name: "rfc3339",
			row:  []string{"2025-08-19T15:00:00Z", "3330.1", "3331", "3329.5", "3330.7", "120"},
			check: func(t *testing.T, b Bar) {
				assert.Equal(t, at(15, 0), b.Time.UTC())
				assert.Equal(t, 3330.7, b.Close)
				assert.Equal(t, 120.0, b.Volume)
			},
		},
		{
			name: "pandas offset layout",
			row:  []string{"2025-08-19 15:01:00-04:00", "1", "2", "0.5", "1.5", "10"},
			check: func(t *testing.T, b Bar) {
				assert.Equal(t, at(19, 1), b.Time.UTC())
			},
		},
		{
			name: "missing volume column",
			row:  []string{"2025-08-19 15:02:00", "1", "2", "0.5", "1.5"},
			check: func(t *testing.T, b Bar) {
				assert.Equal(t, 0.0, b.Volume)
			},
		},
		{
			name: "empty close becomes NaN",
			row:  []string{"2025-08-19 15:02:00", "1", "2", "0.5", ""},
			check: func(t *testing.T, b Bar) {
				assert.True(t, math.IsNaN(b.Close))
				assert.False(t, b.Finite())
			},
		},
		{
			name:    "too few columns",
			row:     []string{"2025-08-19 15:02:00", "1", "2"},
			wantErr: true,
		},
		{
			name:    "bad time",
			row:     []string{"yesterday", "1", "2", "0.5", "1.5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b, err := parseBarRow(tt.row, time.UTC)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, b)
			}
		})
	}
}

func TestReadBarsSkipsHeaderAndBlankLines(t *testing.T) {
	t.Parallel()

	in := "Datetime,Open,High,Low,Close,Volume\n" +
		"2025-08-19T15:00:00Z,1,1,1,1,0\n" +
		"\n" +
		"2025-08-19T15:01:00Z,2,2,2,2,0\n"

	bars, err := ReadBars(strings.NewReader(in), nil)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 2.0, bars[1].Close)
}

func TestReadBarsReportsLine(t *testing.T) {
	t.Parallel()

	in := "Datetime,Open,High,Low,Close\n2025-08-19T15:00:00Z,1,1\n"
	_, err := ReadBars(strings.NewReader(in), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestWriteThenReadBars(t *testing.T) {
	t.Parallel()

	bars := Bars{
		{Time: at(15, 0), Open: 1, High: 2, Low: 0.5, Close: 1.25, Volume: 3},
		{Time: at(15, 1), Open: 1.25, High: 1.5, Low: 1, Close: 1.1, Volume: 4},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, bars))

	got, err := ReadBars(&buf, time.UTC)
	require.NoError(t, err)
	require.Len(t, got, 2)
	for i := range bars {
		assert.True(t, bars[i].Time.Equal(got[i].Time))
		assert.Equal(t, bars[i].Close, got[i].Close)
	}
}

func TestBarsValidate(t *testing.T) {
	t.Parallel()

	ok := Bars{{Time: at(15, 0), Close: 1}, {Time: at(15, 1), Close: 2}}
	assert.NoError(t, ok.Validate())

	dup := Bars{{Time: at(15, 0), Close: 1}, {Time: at(15, 0), Close: 2}}
	assert.Error(t, dup.Validate())

	nan := Bars{{Time: at(15, 0), Close: math.NaN()}}
	assert.Error(t, nan.Validate())

	assert.NoError(t, Bars{}.Validate())
	assert.True(t, Bars{}.Start().IsZero())
}

func TestSessionContains(t *testing.T) {
	t.Parallel()

	s, err := NewSession("15:00", "17:00")
	require.NoError(t, err)
	assert.Equal(t, "15:00-17:00", s.String())

	assert.False(t, s.Contains(at(14, 59)))
	assert.True(t, s.Contains(at(15, 0)))
	assert.True(t, s.Contains(at(17, 0)))
	assert.False(t, s.Contains(at(17, 1)))
	assert.False(t, s.Contains(at(17, 0).Add(30*time.Second)), "seconds past the end are outside")
	assert.False(t, s.Contains(at(17, 0).Add(time.Nanosecond)))
	assert.False(t, s.Contains(at(15, 0).Add(-time.Second)))
	assert.True(t, s.Contains(at(16, 59).Add(59*time.Second)))

	wrap, err := NewSession("22:00", "02:00")
	require.NoError(t, err)
	assert.True(t, wrap.Contains(at(23, 30)))
	assert.True(t, wrap.Contains(at(1, 0)))
	assert.False(t, wrap.Contains(at(12, 0)))
	assert.True(t, wrap.Contains(at(2, 0)))
	assert.False(t, wrap.Contains(at(2, 0).Add(30*time.Second)))

	all, err := NewSession("", "")
	require.NoError(t, err)
	assert.True(t, all.IsZero())
	assert.True(t, all.Contains(at(3, 0)))

	_, err = NewSession("25:00", "17:00")
	assert.Error(t, err)
}

func TestClean(t *testing.T) {
	t.Parallel()

	sess, err := NewSession("15:00", "15:03")
	require.NoError(t, err)

	raw := Bars{
		{Time: at(15, 2), Open: 3, High: 3, Low: 3, Close: math.NaN(), Volume: 1},
		{Time: at(14, 59), Open: 9, High: 9, Low: 9, Close: 9},
		{Time: at(15, 0), Open: math.NaN(), High: 1, Low: 1, Close: 1},
		{Time: at(15, 1), Open: 2, High: 2, Low: 2, Close: 2, Volume: 5},
		{Time: at(15, 1), Open: 7, High: 7, Low: 7, Close: 7},
		{Time: at(15, 4), Open: 4, High: 4, Low: 4, Close: 4},
	}

	out, st := Clean(raw, sess)

	require.Len(t, out, 2)
	assert.Equal(t, at(15, 1), out[0].Time)
	assert.Equal(t, 2.0, out[0].Close)
	assert.Equal(t, at(15, 2), out[1].Time)
	assert.Equal(t, 2.0, out[1].Close, "close forward-filled")
	assert.Equal(t, 3.0, out[1].Open, "finite fields kept")
	assert.NoError(t, out.Validate())

	assert.Equal(t, CleanStats{
		Input:      6,
		Duplicates: 1,
		OutOfRange: 2,
		Filled:     1,
		Dropped:    1,
		Output:     2,
	}, st)

	// input untouched
	assert.Equal(t, at(15, 2), raw[0].Time)
}
