package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/internal/tools"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func createAppointmentHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scheduling.BookRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.Book(r.Context(), req)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.ListPatientAppointments(r.Context(), r.URL.Query().Get("phone"))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func cancelAppointmentHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CancelAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), chi.URLParam(r, "id"), req.PatientPhone)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func availabilityHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		res, err := svc.CheckAvailability(r.Context(), q.Get("doctor"), q.Get("date"), q.Get("time"))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			DoctorID:     res.Doctor.ID,
			DoctorName:   res.Doctor.Name,
			Date:         res.Date,
			Time:         res.Time,
			Weekday:      res.Weekday.String(),
			Available:    res.Outcome == scheduling.Available,
			Outcome:      string(res.Outcome),
			WorkingHours: res.Hours,
		})
	}
}

func listDepartmentsHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		depts, err := svc.ListDepartments(r.Context())
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		if depts == nil {
			depts = []scheduling.Department{}
		}
		writeJSON(w, http.StatusOK, depts)
	}
}

func getDepartmentHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dept, err := svc.GetDepartment(r.Context(), chi.URLParam(r, "name"))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dept)
	}
}

func departmentScheduleHandler(svc *scheduling.Service, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sched, err := svc.GetDoctorSchedule(r.Context(), chi.URLParam(r, "name"), r.URL.Query().Get("date"))
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}

		resp := ScheduleResponse{
			Department: sched.Department,
			Date:       sched.Date,
			Weekday:    sched.Weekday.String(),
			Working:    make([]ScheduleEntry, 0, len(sched.Working)),
			Off:        make([]string, 0, len(sched.Off)),
		}
		for _, dh := range sched.Working {
			resp.Working = append(resp.Working, ScheduleEntry{
				DoctorID:       dh.Doctor.ID,
				Name:           dh.Doctor.Name,
				Specialization: dh.Doctor.Specialization,
				Start:          dh.Hours.Start,
				End:            dh.Hours.End,
			})
		}
		for _, d := range sched.Off {
			resp.Off = append(resp.Off, d.Name)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listToolsHandler(catalogue *tools.Catalogue) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ToolListResponse{Tools: catalogue.List()})
	}
}

func callToolHandler(catalogue *tools.Catalogue, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")

		args := tools.Args{}
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_request_body", "arguments must be a JSON object of strings")
				return
			}
		}

		result, err := catalogue.Call(r.Context(), name, args)
		if err != nil {
			handleServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, ToolCallResponse{Tool: name, Result: result})
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, logger *logging.Logger, err error) {
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		writeError(w, http.StatusNotFound, "unknown_tool", err.Error())
	case errors.Is(err, scheduling.ErrInvalidDate):
		writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
	case errors.Is(err, scheduling.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, "invalid_time", err.Error())
	case errors.Is(err, scheduling.ErrInvalidAppointmentID):
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", err.Error())
	case errors.Is(err, scheduling.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, scheduling.ErrOutsideWorkingHours):
		writeError(w, http.StatusBadRequest, "outside_working_hours", err.Error())
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, scheduling.ErrDepartmentNotFound), errors.Is(err, scheduling.ErrNoDoctorsInDepartment):
		writeError(w, http.StatusNotFound, "department_not_found", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", err.Error())
	case errors.Is(err, scheduling.ErrAmbiguousAppointmentID):
		writeError(w, http.StatusConflict, "ambiguous_appointment_id", err.Error())
	case errors.Is(err, scheduling.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, scheduling.ErrStorageUnavailable), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("storage unavailable", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "please retry shortly")
	default:
		logger.Error("request failed", "path", r.URL.Path, "request_id", GetRequestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
