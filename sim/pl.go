package sim

// RealizedPL is the profit of closing size units opened at entry and
// closed at exit: (exit - entry) * size * sign.
func RealizedPL(side Side, entry, exit, size float64) float64 {
	return (exit - entry) * size * side.Sign()
}

// UnrealizedPL marks an open position at mark. Flat positions are worth 0.
func UnrealizedPL(p Position, mark float64) float64 {
	if p.Side == Flat || p.Size == 0 {
		return 0
	}
	return RealizedPL(p.Side, p.AvgEntry, mark, p.Size)
}

// weightedEntry is the size-weighted mean of the current average and a new
// fill.
func weightedEntry(avg, size, fill, add float64) float64 {
	total := size + add
	if total == 0 {
		return fill
	}
	return (avg*size + fill*add) / total
}
