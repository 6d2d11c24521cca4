package parser

import "github.com/user/petco2_cvr_go/internal/petco2"

// PhysColumns is the number of leading columns read from each data row:
// time, PETCO2, PETO2 and trigger.
const PhysColumns = 4

// ParsedPhysData holds a loaded recording together with the non-fatal
// problems found while reading it.
type ParsedPhysData struct {
	Trace       *petco2.RawTrace
	Source      string   // File path, or empty when read from a stream
	Rows        int      // Data rows accepted
	Skipped     int      // Data rows rejected
	ParseErrors []string // Warnings for skipped or truncated rows
}

// NewParsedPhysData returns an empty result ready to be filled row by row.
func NewParsedPhysData(source string) *ParsedPhysData {
	return &ParsedPhysData{
		Trace:       &petco2.RawTrace{},
		Source:      source,
		ParseErrors: make([]string, 0),
	}
}

func (pd *ParsedPhysData) appendRow(v [PhysColumns]float64) {
	pd.Trace.Time = append(pd.Trace.Time, v[0])
	pd.Trace.PETCO2 = append(pd.Trace.PETCO2, v[1])
	pd.Trace.PETO2 = append(pd.Trace.PETO2, v[2])
	pd.Trace.Trigger = append(pd.Trace.Trigger, v[3])
	pd.Rows++
}
