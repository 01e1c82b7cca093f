package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/tools"
)

type CancelAppointmentRequest struct {
	PatientPhone string `json:"patient_phone"`
}

type AppointmentResponse struct {
	ID           uuid.UUID            `json:"id"`
	ShortID      string               `json:"short_id"`
	PatientID    uuid.UUID            `json:"patient_id"`
	PatientName  string               `json:"patient_name"`
	PatientPhone string               `json:"patient_phone"`
	DoctorID     string               `json:"doctor_id"`
	DoctorName   string               `json:"doctor_name"`
	Department   string               `json:"department"`
	Date         scheduling.Date      `json:"date"`
	Time         scheduling.TimeOfDay `json:"time"`
	Reason       string               `json:"reason,omitempty"`
	Status       string               `json:"status"`
	CreatedAt    time.Time            `json:"created_at"`
}

func toAppointmentResponse(a *scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		ShortID:      a.ShortID(),
		PatientID:    a.PatientID,
		PatientName:  a.PatientName,
		PatientPhone: a.PatientPhone,
		DoctorID:     a.DoctorID,
		DoctorName:   a.DoctorName,
		Department:   a.Department,
		Date:         a.Date,
		Time:         a.Time,
		Reason:       a.Reason,
		Status:       string(a.Status),
		CreatedAt:    a.CreatedAt,
	}
}

type AvailabilityResponse struct {
	DoctorID     string                   `json:"doctor_id"`
	DoctorName   string                   `json:"doctor_name"`
	Date         scheduling.Date          `json:"date"`
	Time         scheduling.TimeOfDay     `json:"time"`
	Weekday      string                   `json:"weekday"`
	Available    bool                     `json:"available"`
	Outcome      string                   `json:"outcome"`
	WorkingHours *scheduling.WorkingHours `json:"working_hours,omitempty"`
}

type ScheduleEntry struct {
	DoctorID       string               `json:"doctor_id"`
	Name           string               `json:"name"`
	Specialization string               `json:"specialization"`
	Start          scheduling.TimeOfDay `json:"start_time"`
	End            scheduling.TimeOfDay `json:"end_time"`
}

type ScheduleResponse struct {
	Department string          `json:"department"`
	Date       scheduling.Date `json:"date"`
	Weekday    string          `json:"weekday"`
	Working    []ScheduleEntry `json:"working"`
	Off        []string        `json:"off"`
}

type ToolCallResponse struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

type ToolListResponse struct {
	Tools []tools.Tool `json:"tools"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
