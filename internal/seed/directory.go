// Package seed holds the hospital's reference directory: departments and
// the doctors' weekly templates loaded by cmd/seed and the memory store.
package seed

import (
	"time"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
)

func Departments() []scheduling.Department {
	return []scheduling.Department{
		{
			ID:          "dept_001",
			Name:        "Cardiology",
			Description: "Heart and cardiovascular system care",
			Location:    "Building A, Floor 3",
			Phone:       "+1-229-213-9501",
			Services:    []string{"ECG", "Echocardiography", "Cardiac Stress Test", "Angiography"},
		},
		{
			ID:          "dept_002",
			Name:        "Neurology",
			Description: "Brain and nervous system disorders",
			Location:    "Building B, Floor 2",
			Phone:       "+1-229-213-9502",
			Services:    []string{"EEG", "MRI", "Neurological Examination", "Stroke Care"},
		},
		{
			ID:          "dept_003",
			Name:        "Orthopedics",
			Description: "Bone, joint, and muscle care",
			Location:    "Building A, Floor 1",
			Phone:       "+1-229-213-9503",
			Services:    []string{"X-Ray", "Fracture Treatment", "Joint Replacement", "Physical Therapy"},
		},
		{
			ID:          "dept_004",
			Name:        "Pediatrics",
			Description: "Children's health and development",
			Location:    "Building C, Floor 1",
			Phone:       "+1-229-213-9504",
			Services:    []string{"Vaccinations", "Growth Monitoring", "Child Care", "Newborn Care"},
		},
		{
			ID:          "dept_005",
			Name:        "General Medicine",
			Description: "Primary care and general health",
			Location:    "Building A, Floor 2",
			Phone:       "+1-229-213-9505",
			Services:    []string{"Health Checkups", "Fever Management", "Diabetes Care", "Hypertension"},
		},
	}
}

func Doctors() []scheduling.Doctor {
	return []scheduling.Doctor{
		{
			ID:                  "doc_001",
			Name:                "Dr. Sarah Ahmed",
			Specialization:      "Cardiologist",
			Department:          "Cardiology",
			Phone:               "+1-229-213-9601",
			Email:               "sarah.ahmed@hospital.com",
			ConsultationMinutes: 30,
			WorkingHours: week(
				hours("09:00", "17:00"), // Monday
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("09:00", "13:00"), // Friday
				closed,
				closed,
			),
		},
		{
			ID:                  "doc_002",
			Name:                "Dr. Michael Chen",
			Specialization:      "Neurologist",
			Department:          "Neurology",
			Phone:               "+1-229-213-9602",
			Email:               "michael.chen@hospital.com",
			ConsultationMinutes: 45,
			WorkingHours: week(
				hours("10:00", "18:00"),
				hours("10:00", "18:00"),
				hours("10:00", "18:00"),
				hours("10:00", "18:00"),
				hours("10:00", "14:00"),
				closed,
				closed,
			),
		},
		{
			ID:                  "doc_003",
			Name:                "Dr. Emily Rodriguez",
			Specialization:      "Orthopedic Surgeon",
			Department:          "Orthopedics",
			Phone:               "+1-229-213-9603",
			Email:               "emily.rodriguez@hospital.com",
			ConsultationMinutes: 30,
			WorkingHours: week(
				hours("08:00", "16:00"),
				hours("08:00", "16:00"),
				hours("08:00", "16:00"),
				hours("08:00", "16:00"),
				hours("08:00", "12:00"),
				hours("09:00", "13:00"),
				closed,
			),
		},
		{
			ID:                  "doc_004",
			Name:                "Dr. James Wilson",
			Specialization:      "Pediatrician",
			Department:          "Pediatrics",
			Phone:               "+1-229-213-9604",
			Email:               "james.wilson@hospital.com",
			ConsultationMinutes: 20,
			WorkingHours: week(
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("09:00", "17:00"),
				hours("10:00", "14:00"),
				closed,
			),
		},
		{
			ID:                  "doc_005",
			Name:                "Dr. Aisha Khan",
			Specialization:      "General Physician",
			Department:          "General Medicine",
			Phone:               "+1-229-213-9605",
			Email:               "aisha.khan@hospital.com",
			ConsultationMinutes: 15,
			WorkingHours: week(
				hours("08:00", "20:00"),
				hours("08:00", "20:00"),
				hours("08:00", "20:00"),
				hours("08:00", "20:00"),
				hours("08:00", "20:00"),
				hours("09:00", "17:00"),
				hours("10:00", "14:00"),
			),
		},
	}
}

type dayHours struct {
	start, end string
	open       bool
}

var closed = dayHours{start: "00:00", end: "00:00"}

func hours(start, end string) dayHours {
	return dayHours{start: start, end: end, open: true}
}

// week builds a template from Monday..Sunday entries.
func week(days ...dayHours) []scheduling.WorkingHours {
	order := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	out := make([]scheduling.WorkingHours, 0, len(days))
	for i, d := range days {
		out = append(out, scheduling.WorkingHours{
			Day:       order[i],
			Start:     scheduling.MustTime(d.start),
			End:       scheduling.MustTime(d.end),
			Available: d.open,
		})
	}
	return out
}
