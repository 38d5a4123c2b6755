package strategies

// Signal is the per-bar trading direction a generator emits.
type Signal int8

const (
	Flat  Signal = 0
	Long  Signal = +1
	Short Signal = -1
)

func (s Signal) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Opposite returns the reversed signal; Flat stays Flat.
func (s Signal) Opposite() Signal { return -s }

// compare maps a > b to Long, a < b to Short and equality to Flat.
func compare(a, b float64) Signal {
	switch {
	case a > b:
		return Long
	case a < b:
		return Short
	default:
		return Flat
	}
}
