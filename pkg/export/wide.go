package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/fillcast/core/model"
)

const (
	// WideSiteColumn is the literal first header cell of a wide report.
	WideSiteColumn = "site_id"

	// MaxWideDays bounds the date range of a wide report.
	MaxWideDays = 31

	wideDecimals = 6
)

var (
	// ErrMalformedReport is returned when a wide report does not match the
	// expected layout for its date range.
	ErrMalformedReport = errors.New("malformed wide report")
	// ErrInvalidRange is returned for empty or too long date ranges.
	ErrInvalidRange = errors.New("invalid wide report range")
)

// Cell is one value of a wide report.
type Cell struct {
	SiteID string
	Date   time.Time
	Value  float64
}

// WideReport is a parsed wide report. Sites lists every row in file order,
// including rows without any value.
type WideReport struct {
	Sites []string
	Cells []Cell
}

// CellsFromPoints extracts the predicted volume of each point.
func CellsFromPoints(points []model.ForecastPoint) []Cell {
	out := make([]Cell, len(points))
	for i, p := range points {
		out[i] = Cell{SiteID: p.SiteID, Date: p.Date, Value: p.PredVolumeM3}
	}
	return out
}

func wideDays(start, end time.Time) ([]time.Time, error) {
	start, end = model.Day(start), model.Day(end)
	n := model.DaysBetween(start, end) + 1
	if n < 1 || n > MaxWideDays {
		return nil, fmt.Errorf("%w: %s..%s spans %d days, want 1..%d",
			ErrInvalidRange, start.Format(model.DateLayout), end.Format(model.DateLayout), n, MaxWideDays)
	}
	days := make([]time.Time, n)
	for i := range days {
		days[i] = model.AddDays(start, i)
	}
	return days, nil
}

func newWideWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

// WriteWideReport pivots cells into one row per site and one column per day
// of [start, end]. The rows listed in sites come first, in that order, even
// when they carry no value. Other sites follow in order of first appearance.
// Cells outside the range are ignored. Values are rounded to six decimals and
// use a decimal comma.
func WriteWideReport(w io.Writer, start, end time.Time, sites []string, cells []Cell) error {
	days, err := wideDays(start, end)
	if err != nil {
		return err
	}
	index := make(map[time.Time]int, len(days))
	header := make([]string, 0, len(days)+1)
	header = append(header, WideSiteColumn)
	for i, d := range days {
		index[d] = i
		header = append(header, strconv.Itoa(d.Day()))
	}

	var order []string
	rows := make(map[string][]string)
	for _, id := range sites {
		if _, seen := rows[id]; seen {
			continue
		}
		rows[id] = make([]string, len(days))
		order = append(order, id)
	}
	for _, c := range cells {
		i, ok := index[model.Day(c.Date)]
		if !ok {
			continue
		}
		row, seen := rows[c.SiteID]
		if !seen {
			row = make([]string, len(days))
			rows[c.SiteID] = row
			order = append(order, c.SiteID)
		}
		row[i] = formatDecimal(c.Value)
	}

	cw := newWideWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, id := range order {
		if err := cw.Write(append([]string{id}, rows[id]...)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadWideReport parses a report written for [start, end]. Anything that
// WriteWideReport would not regenerate byte for byte is rejected with
// ErrMalformedReport: a header that does not list exactly the days of the
// range, a repeated site row or a number not in six-decimal trimmed form.
func ReadWideReport(r io.Reader, start, end time.Time) (*WideReport, error) {
	days, err := wideDays(start, end)
	if err != nil {
		return nil, err
	}
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty input", ErrMalformedReport)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}
	if len(header) != len(days)+1 || header[0] != WideSiteColumn {
		return nil, fmt.Errorf("%w: header has %d columns, want %q plus %d days",
			ErrMalformedReport, len(header), WideSiteColumn, len(days))
	}
	for i, d := range days {
		if header[i+1] != strconv.Itoa(d.Day()) {
			return nil, fmt.Errorf("%w: column %d is %q, want day %d", ErrMalformedReport, i+1, header[i+1], d.Day())
		}
	}

	report := &WideReport{}
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedReport, err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrMalformedReport, line, len(rec), len(header))
		}
		if seen[rec[0]] {
			return nil, fmt.Errorf("%w: line %d repeats site %q", ErrMalformedReport, line, rec[0])
		}
		seen[rec[0]] = true
		report.Sites = append(report.Sites, rec[0])
		for i, raw := range rec[1:] {
			if raw == "" {
				continue
			}
			v, err := parseDecimal(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d day %d: %v", ErrMalformedReport, line, days[i].Day(), err)
			}
			if formatDecimal(v) != raw {
				return nil, fmt.Errorf("%w: line %d day %d: %q is not in canonical form %q",
					ErrMalformedReport, line, days[i].Day(), raw, formatDecimal(v))
			}
			report.Cells = append(report.Cells, Cell{SiteID: rec[0], Date: days[i], Value: v})
		}
	}
	return report, nil
}

func formatDecimal(v float64) string {
	return strings.Replace(decimal.NewFromFloat(v).Round(wideDecimals).String(), ".", ",", 1)
}

func parseDecimal(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.Replace(s, ",", ".", 1))
	if err != nil {
		return 0, err
	}
	return d.InexactFloat64(), nil
}
