package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
)

const (
	departmentInfoServices = 4
	departmentListServices = 3
)

func (c *Catalogue) bookAppointment(ctx context.Context, args Args) (string, error) {
	req := scheduling.BookRequest{
		PatientName:  args["patient_name"],
		PatientPhone: args["patient_phone"],
		DoctorName:   args["doctor_name"],
		Date:         args["date"],
		Time:         args["time"],
		Reason:       args["reason"],
	}

	appt, err := c.svc.Book(ctx, req)
	switch {
	case err == nil:
	case errors.Is(err, scheduling.ErrSlotTaken):
		return fmt.Sprintf("Time slot %s on %s is already booked. Please choose a different time.", req.Time, req.Date), nil
	case errors.Is(err, scheduling.ErrDoctorNotFound):
		return doctorNotFound(req.DoctorName), nil
	case errors.Is(err, scheduling.ErrOutsideWorkingHours):
		return c.outsideHours(ctx, req.DoctorName, req.Date, req.Time)
	default:
		return "", err
	}

	var b strings.Builder
	b.WriteString("BOOKING CONFIRMED\n")
	fmt.Fprintf(&b, "ID: %s\n", appt.ShortID())
	fmt.Fprintf(&b, "Patient: %s\n", appt.PatientName)
	fmt.Fprintf(&b, "Doctor: %s (%s)\n", appt.DoctorName, appt.Department)
	fmt.Fprintf(&b, "When: %s at %s\n", appt.Date, appt.Time)
	if appt.Reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", appt.Reason)
	}
	b.WriteString("Note: Please arrive 15 minutes early with ID and insurance card.")
	return b.String(), nil
}

// outsideHours explains a rejected booking with the same wording as the
// availability check.
func (c *Catalogue) outsideHours(ctx context.Context, doctor, date, at string) (string, error) {
	res, err := c.svc.CheckAvailability(ctx, doctor, date, at)
	if err != nil {
		return "", err
	}
	return availabilityText(res), nil
}

func (c *Catalogue) checkPatientAppointments(ctx context.Context, args Args) (string, error) {
	phone := strings.TrimSpace(args["patient_phone"])
	appts, err := c.svc.ListPatientAppointments(ctx, phone)
	if err != nil {
		return "", err
	}
	if len(appts) == 0 {
		return fmt.Sprintf("No scheduled appointments found for %s.", phone), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Appointments for %s:\n", phone)
	for i, a := range appts {
		fmt.Fprintf(&b, "\n%d. %s at %s\n", i+1, a.Date, a.Time)
		fmt.Fprintf(&b, "   %s (%s)\n", a.DoctorName, a.Department)
		fmt.Fprintf(&b, "   ID: %s", a.ShortID())
		if a.Reason != "" {
			fmt.Fprintf(&b, " | Reason: %s", a.Reason)
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *Catalogue) cancelAppointment(ctx context.Context, args Args) (string, error) {
	id := strings.TrimSpace(args["appointment_id"])
	phone := strings.TrimSpace(args["patient_phone"])

	appt, err := c.svc.CancelAppointment(ctx, id, phone)
	switch {
	case err == nil:
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		return fmt.Sprintf("No appointment found with ID %s for %s.", id, phone), nil
	case errors.Is(err, scheduling.ErrAmbiguousAppointmentID):
		return fmt.Sprintf("ID %s matches more than one of your appointments. Please read out more of the ID.", id), nil
	default:
		return "", err
	}

	return fmt.Sprintf(`CANCELLED
ID: %s
Patient: %s
%s
Was scheduled: %s at %s
You can book a new appointment anytime.`, appt.ShortID(), appt.PatientName, appt.DoctorName, appt.Date, appt.Time), nil
}

func (c *Catalogue) checkDoctorAvailability(ctx context.Context, args Args) (string, error) {
	doctor := strings.TrimSpace(args["doctor_name"])
	res, err := c.svc.CheckAvailability(ctx, doctor, args["date"], args["time"])
	if err != nil {
		if errors.Is(err, scheduling.ErrDoctorNotFound) {
			return doctorNotFound(doctor), nil
		}
		return "", err
	}
	return availabilityText(res), nil
}

func availabilityText(res scheduling.Availability) string {
	name := res.Doctor.Name
	switch res.Outcome {
	case scheduling.Available:
		return fmt.Sprintf("AVAILABLE: %s is free at %s on %s.", name, res.Time, res.Date)
	case scheduling.AlreadyBooked:
		return fmt.Sprintf("%s is booked at %s on %s. Try a different time.", name, res.Time, res.Date)
	}
	if res.Hours == nil {
		return fmt.Sprintf("%s is not available on %ss.", name, res.Weekday)
	}
	return fmt.Sprintf("%s works %s-%s on %ss. %s is outside working hours.",
		name, res.Hours.Start, res.Hours.End, res.Weekday, res.Time)
}

func (c *Catalogue) getDoctorSchedule(ctx context.Context, args Args) (string, error) {
	department := strings.TrimSpace(args["department"])
	sched, err := c.svc.GetDoctorSchedule(ctx, department, args["date"])
	if err != nil {
		if errors.Is(err, scheduling.ErrNoDoctorsInDepartment) {
			return c.noDoctorsIn(ctx, department), nil
		}
		return "", err
	}
	if len(sched.Working) == 0 {
		return fmt.Sprintf("No doctors are available in %s on %s. Please try a different day or department.",
			department, sched.Weekday), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s doctors available on %s, %s:\n", department, sched.Weekday, sched.Date)
	for _, w := range sched.Working {
		fmt.Fprintf(&b, "- %s (%s): %s-%s\n", w.Doctor.Name, w.Doctor.Specialization, w.Hours.Start, w.Hours.End)
	}
	return strings.TrimSpace(b.String()), nil
}

func (c *Catalogue) noDoctorsIn(ctx context.Context, department string) string {
	msg := fmt.Sprintf("No doctors found in %s department.", department)
	depts, err := c.svc.ListDepartments(ctx)
	if err != nil || len(depts) == 0 {
		return msg
	}
	names := make([]string, len(depts))
	for i, d := range depts {
		names[i] = d.Name
	}
	return msg + " Available departments: " + strings.Join(names, ", ") + "."
}

func (c *Catalogue) getDepartmentInfo(ctx context.Context, args Args) (string, error) {
	name := strings.TrimSpace(args["department_name"])
	dept, err := c.svc.GetDepartment(ctx, name)
	if err != nil {
		if errors.Is(err, scheduling.ErrDepartmentNotFound) {
			return fmt.Sprintf("Department %s not found. Use list_all_departments to see available departments.", name), nil
		}
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s Department\n", dept.Name)
	fmt.Fprintf(&b, "Location: %s\n", dept.Location)
	fmt.Fprintf(&b, "Phone: %s\n", dept.Phone)
	fmt.Fprintf(&b, "\nKey Services: %s", summarize(dept.Services, departmentInfoServices))
	return b.String(), nil
}

func (c *Catalogue) listAllDepartments(ctx context.Context, _ Args) (string, error) {
	depts, err := c.svc.ListDepartments(ctx)
	if err != nil {
		return "", err
	}
	if len(depts) == 0 {
		return "No departments found in the system.", nil
	}

	var b strings.Builder
	b.WriteString("Hospital Departments:\n")
	for _, d := range depts {
		fmt.Fprintf(&b, "\n%s - %s\n", d.Name, d.Location)
		fmt.Fprintf(&b, "Phone: %s\n", d.Phone)
		fmt.Fprintf(&b, "Services: %s\n", summarize(d.Services, departmentListServices))
	}
	return strings.TrimSpace(b.String()), nil
}

func doctorNotFound(name string) string {
	return fmt.Sprintf("Doctor %s not found. Please check the name.", strings.TrimSpace(name))
}

// summarize joins the first n items and counts the rest.
func summarize(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:n], ", "), len(items)-n)
}
