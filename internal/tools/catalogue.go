// Package tools exposes the scheduling operations as named conversational
// tools. Each tool takes string arguments and answers with text meant to be
// read back to a caller; business outcomes such as a taken slot are answers,
// while bad input and storage failures come back as *ToolError.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
)

var (
	ErrUnknownTool     = errors.New("unknown tool")
	ErrMissingArgument = fmt.Errorf("%w: missing argument", scheduling.ErrValidation)
)

// Service is the part of *scheduling.Service the tools call.
type Service interface {
	Book(ctx context.Context, req scheduling.BookRequest) (*scheduling.Appointment, error)
	CheckAvailability(ctx context.Context, doctorName, date, at string) (scheduling.Availability, error)
	GetDoctorSchedule(ctx context.Context, department, date string) (*scheduling.DaySchedule, error)
	ListPatientAppointments(ctx context.Context, phone string) ([]scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, idPrefix, phone string) (*scheduling.Appointment, error)
	GetDepartment(ctx context.Context, name string) (*scheduling.Department, error)
	ListDepartments(ctx context.Context) ([]scheduling.Department, error)
}

type Arg struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Args        []Arg  `json:"args"`
}

// Args are a tool call's named arguments.
type Args map[string]string

type handlerFunc func(ctx context.Context, args Args) (string, error)

// ToolError is a failed tool call, as opposed to an unfavourable answer.
type ToolError struct {
	Tool string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("%s: %v", e.Tool, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

type entry struct {
	tool    Tool
	handler handlerFunc
}

type Catalogue struct {
	svc     Service
	entries map[string]entry
}

func NewCatalogue(svc Service) *Catalogue {
	c := &Catalogue{svc: svc, entries: make(map[string]entry)}

	c.register(Tool{
		Name:        "book_appointment",
		Description: "Book an appointment for a patient with a doctor.",
		Args: []Arg{
			{Name: "patient_name", Description: "Full name of the patient", Required: true},
			{Name: "patient_phone", Description: "Patient's phone number", Required: true},
			{Name: "doctor_name", Description: "Full name of the doctor, e.g. Dr. Sarah Ahmed", Required: true},
			{Name: "date", Description: "Appointment date in YYYY-MM-DD format", Required: true},
			{Name: "time", Description: "Appointment time in HH:MM format (24-hour)", Required: true},
			{Name: "reason", Description: "Reason for visit, e.g. Regular checkup, Follow-up"},
		},
	}, c.bookAppointment)

	c.register(Tool{
		Name:        "check_patient_appointments",
		Description: "List a patient's scheduled appointments by phone number.",
		Args: []Arg{
			{Name: "patient_phone", Description: "Patient's phone number", Required: true},
		},
	}, c.checkPatientAppointments)

	c.register(Tool{
		Name:        "cancel_appointment",
		Description: "Cancel an existing appointment.",
		Args: []Arg{
			{Name: "appointment_id", Description: "The appointment ID (first 8 characters are enough)", Required: true},
			{Name: "patient_phone", Description: "Patient's phone number for verification", Required: true},
		},
	}, c.cancelAppointment)

	c.register(Tool{
		Name:        "check_doctor_availability",
		Description: "Check if a specific doctor is available at a given date and time.",
		Args: []Arg{
			{Name: "doctor_name", Description: "Full name of the doctor, e.g. Dr. Sarah Ahmed", Required: true},
			{Name: "date", Description: "Date in YYYY-MM-DD format", Required: true},
			{Name: "time", Description: "Time in HH:MM format (24-hour, e.g. 14:30)", Required: true},
		},
	}, c.checkDoctorAvailability)

	c.register(Tool{
		Name:        "get_doctor_schedule",
		Description: "Get all doctors working in a department on a specific date.",
		Args: []Arg{
			{Name: "department", Description: "Department name, e.g. Cardiology, Neurology", Required: true},
			{Name: "date", Description: "Date in YYYY-MM-DD format", Required: true},
		},
	}, c.getDoctorSchedule)

	c.register(Tool{
		Name:        "get_department_info",
		Description: "Get location, phone and key services of a department.",
		Args: []Arg{
			{Name: "department_name", Description: "Name of the department, e.g. Cardiology", Required: true},
		},
	}, c.getDepartmentInfo)

	c.register(Tool{
		Name:        "list_all_departments",
		Description: "List all hospital departments with their services.",
	}, c.listAllDepartments)

	return c
}

func (c *Catalogue) register(t Tool, h handlerFunc) {
	c.entries[t.Name] = entry{tool: t, handler: h}
}

// List returns the tools sorted by name.
func (c *Catalogue) List() []Tool {
	out := make([]Tool, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.tool)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs the named tool. Unknown tools return ErrUnknownTool.
func (c *Catalogue) Call(ctx context.Context, name string, args Args) (string, error) {
	e, ok := c.entries[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	for _, a := range e.tool.Args {
		if a.Required && strings.TrimSpace(args[a.Name]) == "" {
			return "", &ToolError{Tool: name, Err: fmt.Errorf("%w %q", ErrMissingArgument, a.Name)}
		}
	}

	text, err := e.handler(ctx, args)
	if err != nil {
		return "", &ToolError{Tool: name, Err: err}
	}
	return text, nil
}
