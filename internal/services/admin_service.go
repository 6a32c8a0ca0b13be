package services

import (
	"context"
	"math"
	"time"
)

type AdminStore interface {
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)
}

type Band struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type DemographicsSummary struct {
	Participants  int            `json:"participants"`
	Gender        map[string]int `json:"gender"`
	AgeBands      []Band         `json:"age_bands"`
	IncomeBands   []Band         `json:"income_bands"`
	AverageIncome int            `json:"average_income"`
}

type DemographicsReport struct {
	Participants []*User             `json:"participants"`
	Summary      DemographicsSummary `json:"summary"`
}

type AdminService struct {
	store AdminStore
	now   func() time.Time
}

func NewAdminService(store AdminStore) *AdminService {
	return &AdminService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// ParticipantDemographics lists participants with their demographics. ADMIN only.
func (s *AdminService) ParticipantDemographics(ctx context.Context, actor Actor) (*DemographicsReport, error) {
	if !actor.Authenticated() {
		return nil, NewUnauthorizedError("Unauthorized")
	}
	if !actor.IsAdmin() {
		return nil, NewForbiddenError("Forbidden")
	}
	users, err := s.store.ListUsersByRole(ctx, RoleParticipant)
	if err != nil {
		return nil, storeError("Failed to fetch demographics", err)
	}
	return &DemographicsReport{Participants: users, Summary: SummarizeDemographics(users, s.now())}, nil
}

var ageBandLabels = []string{"1-10", "11-17", "18-24", "25-34", "35-44", "45-54", "55+"}

var incomeBandLabels = []string{"< 30k", "30k-60k", "60k-100k", "100k+"}

func ageBand(age int) int {
	switch {
	case age <= 10:
		return 0
	case age <= 17:
		return 1
	case age < 25:
		return 2
	case age < 35:
		return 3
	case age < 45:
		return 4
	case age < 55:
		return 5
	}
	return 6
}

func incomeBand(income float64) int {
	switch {
	case income < 30000:
		return 0
	case income < 60000:
		return 1
	case income < 100000:
		return 2
	}
	return 3
}

// SummarizeDemographics tallies gender, age bands and income bands across users.
func SummarizeDemographics(users []*User, now time.Time) DemographicsSummary {
	sum := DemographicsSummary{
		Participants: len(users),
		Gender:       map[string]int{},
		AgeBands:     make([]Band, len(ageBandLabels)),
		IncomeBands:  make([]Band, len(incomeBandLabels)),
	}
	for i, l := range ageBandLabels {
		sum.AgeBands[i].Label = l
	}
	for i, l := range incomeBandLabels {
		sum.IncomeBands[i].Label = l
	}
	var total float64
	var withIncome int
	for _, u := range users {
		d := u.Demographics
		gender := d.Gender()
		if gender == "" {
			gender = "Unknown"
		}
		sum.Gender[gender]++
		if dob, ok := d.DateOfBirth(); ok {
			sum.AgeBands[ageBand(AgeOn(dob, now))].Count++
		}
		if income, ok := d.AnnualIncome(); ok {
			total += income
			withIncome++
			sum.IncomeBands[incomeBand(income)].Count++
		}
	}
	if withIncome > 0 {
		sum.AverageIncome = int(math.Round(total / float64(withIncome)))
	}
	return sum
}
