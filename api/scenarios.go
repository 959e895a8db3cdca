/*
scenarios.go - Demo data loaders for development and demonstrations

PURPOSE:
  Populates an empty database with agencies, customers, quotas and holidays
  so the booking flow can be exercised by hand. Everything goes through
  booking.Service, so scenarios obey the same rules as real traffic.

AVAILABLE SCENARIOS:
  single-agency:  One agency on the default quota, two customers
  busy-week:      Tight quota, a holiday and a reduced-staff override,
                  pre-filled so the next booking rolls forward

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "busy-week"}

NOTE:
  Scenarios only add data. Load them into a fresh database.
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/warp/agency-booking/booking"
)

// Scenario describes a loadable demo data set.
type Scenario struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var scenarios = []Scenario{
	{ID: "single-agency", Name: "Single agency", Description: "One active agency on the default quota with two customers"},
	{ID: "busy-week", Name: "Busy week", Description: "Quota of 2, a holiday tomorrow and a reduced day after, today already full"},
}

const scenarioActor booking.Actor = "scenario-loader"

// Scenarios lists the available demo data sets.
func Scenarios() []Scenario { return scenarios }

// ScenarioResult reports what a loader created.
type ScenarioResult struct {
	ScenarioID   string  `json:"scenario_id"`
	AgencyIDs    []int64 `json:"agency_ids"`
	CustomerIDs  []int64 `json:"customer_ids"`
	Appointments int     `json:"appointments"`
}

// LoadScenario seeds the named scenario relative to the service clock.
func LoadScenario(ctx context.Context, svc *booking.Service, dir booking.DirectoryWriter, id string) (ScenarioResult, error) {
	res := ScenarioResult{ScenarioID: id}
	today := booking.DayOf(svc.Now())
	now := svc.Now().UTC()

	agency, err := dir.SaveAgency(ctx, booking.Agency{Name: "Central Agency", Active: true, Audit: booking.Audit{CreatedBy: scenarioActor, CreatedOn: now}})
	if err != nil {
		return res, fmt.Errorf("seeding agency: %w", err)
	}
	res.AgencyIDs = append(res.AgencyIDs, int64(agency.ID))

	var customers []booking.CustomerID
	for _, name := range []string{"Ada Lovelace", "Alan Turing"} {
		c, err := dir.SaveCustomer(ctx, booking.Customer{FullName: name, Audit: booking.Audit{CreatedBy: scenarioActor, CreatedOn: now}})
		if err != nil {
			return res, fmt.Errorf("seeding customer: %w", err)
		}
		customers = append(customers, c.ID)
		res.CustomerIDs = append(res.CustomerIDs, int64(c.ID))
	}

	switch id {
	case "single-agency":
		return res, nil

	case "busy-week":
		if _, err := svc.SetAgencyQuota(ctx, agency.ID, 2, scenarioActor); err != nil {
			return res, err
		}
		if _, err := svc.CreateHoliday(ctx, agency.ID, today.AddDays(1), "Staff training", scenarioActor); err != nil {
			return res, err
		}
		if _, err := svc.SetQuotaOverride(ctx, agency.ID, today.AddDays(2), 1, scenarioActor); err != nil {
			return res, err
		}
		for _, c := range customers {
			if _, err := svc.CreateAppointment(ctx, booking.CreateInput{AgencyID: agency.ID, CustomerID: c, Desired: today}, scenarioActor); err != nil {
				return res, err
			}
			res.Appointments++
		}
		return res, nil

	default:
		return res, fmt.Errorf("unknown scenario %q", id)
	}
}

// =============================================================================
// HTTP
// =============================================================================

type loadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", Scenarios())
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req loadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	if !knownScenario(req.ScenarioID) {
		writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
		return
	}
	res, err := LoadScenario(r.Context(), h.Service, h.Directory, req.ScenarioID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, "Scenario loaded", res)
}

func knownScenario(id string) bool {
	for _, s := range scenarios {
		if s.ID == id {
			return true
		}
	}
	return false
}
