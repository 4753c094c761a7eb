package forecast

import (
	"sort"
	"strings"

	"EconCast/internal/domain/models"
	"EconCast/pkg/util"

	"github.com/shopspring/decimal"
)

// MinimumFloor is the absolute minimum number of points any model trains on.
const MinimumFloor = 10

// MinPoints returns the minimum viable series length for a window size.
func MinPoints(window int) int {
	return max(MinimumFloor, 2*window)
}

// Report summarises what Parse did with the raw records.
type Report struct {
	Accepted   int
	Duplicates int
	Dropped    []ParseError
}

// Parse converts raw records into a TimeSeries. Unparseable records are dropped
// and listed in the report; duplicate dates keep the last occurrence.
func Parse(records []models.RawRecord) (models.TimeSeries, Report) {
	var rep Report
	pts := make(models.TimeSeries, 0, len(records))
	for i, r := range records {
		d, ok := util.ParseDate(r.Date)
		if !ok {
			rep.Dropped = append(rep.Dropped, ParseError{Index: i, Field: "data", Raw: r.Date})
			continue
		}
		v, err := ParseValue(string(r.Value))
		if err != nil {
			rep.Dropped = append(rep.Dropped, ParseError{Index: i, Field: "valor", Raw: string(r.Value)})
			continue
		}
		pts = append(pts, models.Point{Date: d, Value: v})
	}

	sort.SliceStable(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	out := pts[:0]
	for _, p := range pts {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			rep.Duplicates++
			continue
		}
		out = append(out, p)
	}
	rep.Accepted = len(out)
	return out, rep
}

// Prepare parses records and enforces the minimum length for window.
func Prepare(records []models.RawRecord, window int) (models.TimeSeries, Report, error) {
	s, rep := Parse(records)
	if need := MinPoints(window); len(s) < need {
		return nil, rep, insufficient("prepare", len(s), need)
	}
	return s, rep, nil
}

// ParseValue accepts plain numbers, comma decimal separators ("13,75") and
// thousand separators in either convention ("1.234,56", "1,234.56").
func ParseValue(raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if comma := strings.LastIndex(s, ","); comma >= 0 {
		if comma > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
