package strategies

import (
	"math"
	"testing"
	"time"

	"github.com/rustyeddy/intraday/indicators"
	"github.com/rustyeddy/intraday/market"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func barsFromCloses(closes ...float64) market.Bars {
	t0 := time.Date(2025, 8, 19, 15, 0, 0, 0, time.UTC)
	out := make(market.Bars, len(closes))
	for i, c := range closes {
		out[i] = market.Bar{
			Time:  t0.Add(time.Duration(i) * time.Minute),
			Open:  c,
			High:  c,
			Low:   c,
			Close: c,
		}
	}
	return out
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"ema_single", KindEMASingle, false},
		{"  EMA-Single ", KindEMASingle, false},
		{"ema", KindEMACross, false},
		{"ema-cross", KindEMACross, false},
		{"BB", KindBollinger, false},
		{"martingale", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		errMsg string
	}{
		{"default is valid", func(c *Config) {}, ""},
		{"missing kind", func(c *Config) { c.Kind = "" }, "strategy kind is required"},
		{"unknown kind", func(c *Config) { c.Kind = "rsi" }, "unknown strategy kind"},
		{"single zero window", func(c *Config) {
			c.Kind = KindEMASingle
			c.EMASingle.Window = 0
		}, "window must be positive"},
		{"cross negative", func(c *Config) { c.EMACross.Short = -2 }, "windows must be positive"},
		{"cross short >= long", func(c *Config) { c.EMACross = EMACrossParams{Short: 21, Long: 21} }, "short < long"},
		{"bollinger zero k", func(c *Config) {
			c.Kind = KindBollinger
			c.Bollinger.K = 0
		}, "k must be positive"},
		{"bollinger NaN k", func(c *Config) {
			c.Kind = KindBollinger
			c.Bollinger.K = math.NaN()
		}, "k must be positive and finite"},
		{"bollinger Inf k", func(c *Config) {
			c.Kind = KindBollinger
			c.Bollinger.K = math.Inf(1)
		}, "k must be positive and finite"},
		{"bollinger bad middle", func(c *Config) {
			c.Kind = KindBollinger
			c.Bollinger.Middle = "wma"
		}, "middle must be sma or ema"},
		{"bollinger zero window", func(c *Config) {
			c.Kind = KindBollinger
			c.Bollinger.Window = 0
		}, "window must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(&c)

			err := c.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				g, err := New(c)
				require.NoError(t, err)
				assert.NotNil(t, g)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)

			_, err = New(c)
			assert.Error(t, err, "New must reject what Validate rejects")
		})
	}
}

func TestNewBuildsEachKind(t *testing.T) {
	c := DefaultConfig()

	c.Kind = KindEMASingle
	g, err := New(c)
	require.NoError(t, err)
	assert.Equal(t, "ema_single(9)", g.Name())

	c.Kind = KindEMACross
	g, err = New(c)
	require.NoError(t, err)
	assert.Equal(t, "ema_cross(9/21)", g.Name())

	c.Kind = KindBollinger
	c.Bollinger.HoldMid = true
	g, err = New(c)
	require.NoError(t, err)
	assert.Equal(t, "bollinger(20,2,sma)+hold", g.Name())
}

func TestEMASingleWarmupAndDirection(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 11, 9)
	got := Generate(NewEMASingle(3), bars)

	// bars 0,1 precede warmup; bar 2 equals its EMA
	assert.Equal(t, []Signal{Flat, Flat, Flat, Long, Short}, got)
}

func TestEMASingleConstantPriceStaysFlat(t *testing.T) {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100
	}
	for i, s := range Generate(NewEMASingle(9), barsFromCloses(closes...)) {
		assert.Equal(t, Flat, s, "bar %d", i)
	}
}

func TestEMACrossRisingSeries(t *testing.T) {
	bars := barsFromCloses(1, 2, 3, 4, 5)
	got := Generate(NewEMACross(2, 3), bars)

	assert.Equal(t, []Signal{Flat, Flat, Long, Long, Long}, got)
}

func TestEMACrossFallingSeries(t *testing.T) {
	bars := barsFromCloses(5, 4, 3, 2, 1)
	got := Generate(NewEMACross(2, 3), bars)

	assert.Equal(t, []Signal{Flat, Flat, Short, Short, Short}, got)
}

func TestGenerateShortInputIsAllFlat(t *testing.T) {
	assert.Empty(t, Generate(NewEMACross(9, 21), nil))

	got := Generate(NewEMACross(9, 21), barsFromCloses(1, 2, 3))
	assert.Equal(t, []Signal{Flat, Flat, Flat}, got)
}

func TestGenerateIsDeterministicAcrossReuse(t *testing.T) {
	bars := barsFromCloses(3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5)
	g := NewBollinger(3, 1, indicators.MiddleSMA, true)

	first := Generate(g, bars)
	second := Generate(g, bars)
	assert.Equal(t, first, second)
}

func TestGenerateHasNoLookAhead(t *testing.T) {
	bars := barsFromCloses(3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9)
	full := Generate(NewEMACross(2, 4), bars)

	for i := range bars {
		prefix := Generate(NewEMACross(2, 4), bars[:i+1])
		assert.Equal(t, full[i], prefix[i], "bar %d changed when later bars were added", i)
	}
}

func TestBollingerSignals(t *testing.T) {
	bars := barsFromCloses(10, 10, 10, 4, 8, 20)

	t.Run("mid band is flat", func(t *testing.T) {
		got := Generate(NewBollinger(3, 1, indicators.MiddleSMA, false), bars)
		assert.Equal(t, []Signal{Flat, Flat, Flat, Long, Flat, Short}, got)
	})

	t.Run("mid band holds previous", func(t *testing.T) {
		got := Generate(NewBollinger(3, 1, indicators.MiddleSMA, true), bars)
		assert.Equal(t, []Signal{Flat, Flat, Flat, Long, Long, Short}, got)
	})
}

func TestSignalHelpers(t *testing.T) {
	assert.Equal(t, "long", Long.String())
	assert.Equal(t, "short", Short.String())
	assert.Equal(t, "flat", Flat.String())
	assert.Equal(t, Short, Long.Opposite())
	assert.Equal(t, Flat, Flat.Opposite())
}
