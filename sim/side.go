package sim

// Side is the direction of the open position.
type Side int8

const (
	Flat  Side = 0
	Long  Side = +1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "flat"
	}
}

// Sign is +1 for Long, -1 for Short and 0 for Flat.
func (s Side) Sign() float64 { return float64(s) }

// Valid reports whether s is one of the three defined sides.
func (s Side) Valid() bool { return s == Flat || s == Long || s == Short }
