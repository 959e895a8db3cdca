package booking

import (
	"github.com/shopspring/decimal"
)

// Availability summarizes one agency-day for display.
type Availability struct {
	AgencyID  AgencyID
	Day       Day
	Holiday   bool
	Quota     int
	Active    int
	Remaining int

	// Utilization is Active/Quota rounded to four places; zero on holidays
	// and zero-quota days.
	Utilization decimal.Decimal
}

func availabilityFrom(agencyID AgencyID, p Probe) Availability {
	av := Availability{
		AgencyID: agencyID,
		Day:      p.Day,
		Holiday:  p.Holiday,
		Quota:    p.Quota,
		Active:   len(p.Active),
	}
	if p.Holiday {
		return av
	}
	if av.Remaining = av.Quota - av.Active; av.Remaining < 0 {
		av.Remaining = 0
	}
	if av.Quota > 0 {
		av.Utilization = decimal.NewFromInt(int64(av.Active)).
			Div(decimal.NewFromInt(int64(av.Quota))).
			Round(4)
	}
	return av
}
