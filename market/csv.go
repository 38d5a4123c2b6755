package market

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// BarHeader is the column layout written by WriteBarsCSV and expected by
// BarReader:
//
//	Datetime,Open,High,Low,Close,Volume
var BarHeader = []string{"Datetime", "Open", "High", "Low", "Close", "Volume"}

// timeLayouts are tried in order when parsing the Datetime column.
var timeLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// BarReader reads bar CSV rows one at a time.
//
// A single header row (first field "datetime", "time" or "date") is
// allowed. Empty rows are skipped. Empty or unparsable price fields become
// NaN so Clean can forward-fill them; a missing volume column reads as 0.
type BarReader struct {
	r        *csv.Reader
	loc      *time.Location
	sawFirst bool
	line     int
}

// NewBarReader wraps r. Timestamps without a zone are interpreted in loc
// (UTC when loc is nil).
func NewBarReader(r io.Reader, loc *time.Location) *BarReader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if loc == nil {
		loc = time.UTC
	}
	return &BarReader{r: cr, loc: loc}
}

// Next returns the next bar. ok is false at EOF.
func (br *BarReader) Next() (Bar, bool, error) {
	for {
		row, err := br.r.Read()
		if err == io.EOF {
			return Bar{}, false, nil
		}
		if err != nil {
			return Bar{}, false, err
		}
		br.line++
		if len(row) == 0 || (len(row) == 1 && strings.TrimSpace(row[0]) == "") {
			continue
		}

		if !br.sawFirst {
			br.sawFirst = true
			if isHeader(row[0]) {
				continue
			}
		}

		b, err := parseBarRow(row, br.loc)
		if err != nil {
			return Bar{}, false, fmt.Errorf("line %d: %w", br.line, err)
		}
		return b, true, nil
	}
}

// ReadBars reads every bar from r.
func ReadBars(r io.Reader, loc *time.Location) (Bars, error) {
	br := NewBarReader(r, loc)
	var out Bars
	for {
		b, ok, err := br.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, b)
	}
}

// ReadBarsFile opens path and reads every bar from it.
func ReadBarsFile(path string, loc *time.Location) (Bars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bars, err := ReadBars(f, loc)
	if err != nil {
		return nil, fmt.Errorf("read bars %s: %w", path, err)
	}
	return bars, nil
}

// WriteBarsCSV writes bars with BarHeader.
func WriteBarsCSV(w io.Writer, bars Bars) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(BarHeader); err != nil {
		return err
	}
	for _, b := range bars {
		err := cw.Write([]string{
			b.Time.Format(time.RFC3339),
			f(b.Open),
			f(b.High),
			f(b.Low),
			f(b.Close),
			f(b.Volume),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isHeader(first string) bool {
	switch strings.ToLower(strings.TrimSpace(first)) {
	case "datetime", "time", "date", "timestamp":
		return true
	}
	return false
}

func parseBarRow(row []string, loc *time.Location) (Bar, error) {
	// Need at least: time,open,high,low,close
	if len(row) < 5 {
		return Bar{}, fmt.Errorf("need at least 5 columns (time,open,high,low,close), got %d", len(row))
	}

	t, err := parseTime(row[0], loc)
	if err != nil {
		return Bar{}, err
	}

	b := Bar{
		Time:  t,
		Open:  parseNum(row[1]),
		High:  parseNum(row[2]),
		Low:   parseNum(row[3]),
		Close: parseNum(row[4]),
	}
	if len(row) > 5 {
		b.Volume = parseNum(row[5])
	}
	return b, nil
}

func parseTime(s string, loc *time.Location) (time.Time, error) {
	ts := strings.TrimSpace(s)
	if ts == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, ts, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad time %q", ts)
}

func parseNum(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
