package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
)

// Beginner is satisfied by *pgxpool.Pool.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// LoadDirectory upserts departments and doctors in one transaction, so
// reseeding updates templates in place.
func LoadDirectory(ctx context.Context, db Beginner, departments []scheduling.Department, doctors []scheduling.Doctor) error {
	for _, d := range doctors {
		if err := d.Validate(); err != nil {
			return err
		}
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range departments {
		_, err := tx.Exec(ctx, `
			INSERT INTO departments (id, name, description, location, phone, services)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    description = EXCLUDED.description,
			    location = EXCLUDED.location,
			    phone = EXCLUDED.phone,
			    services = EXCLUDED.services
		`, d.ID, d.Name, d.Description, d.Location, d.Phone, d.Services)
		if err != nil {
			return fmt.Errorf("upsert department %s: %w", d.ID, err)
		}
	}

	for _, d := range doctors {
		hours, err := json.Marshal(d.WorkingHours)
		if err != nil {
			return fmt.Errorf("encode working hours for %s: %w", d.ID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialization, department, phone, email, consultation_minutes, working_hours)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
			    specialization = EXCLUDED.specialization,
			    department = EXCLUDED.department,
			    phone = EXCLUDED.phone,
			    email = EXCLUDED.email,
			    consultation_minutes = EXCLUDED.consultation_minutes,
			    working_hours = EXCLUDED.working_hours
		`, d.ID, d.Name, d.Specialization, d.Department, d.Phone, d.Email, d.ConsultationMinutes, hours)
		if err != nil {
			return fmt.Errorf("upsert doctor %s: %w", d.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// FakePatients inserts count generated patients in batches and returns how
// many were written.
func FakePatients(ctx context.Context, db Beginner, faker *gofakeit.Faker, count int) (int, error) {
	const batchSize = 500

	written := 0
	for offset := 0; offset < count; offset += batchSize {
		end := min(offset+batchSize, count)

		tx, err := db.Begin(ctx)
		if err != nil {
			return written, err
		}

		for i := offset; i < end; i++ {
			email := faker.Email()
			dob := faker.DateRange(time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)).Format("2006-01-02")
			address := faker.Street() + ", " + faker.City()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, date_of_birth, address, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, now())
			`, uuid.New(), faker.Name(), "+1"+faker.Phone(), &email, &dob, &address)
			if err != nil {
				_ = tx.Rollback(ctx)
				return written, err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return written, err
		}
		written = end
	}
	return written, nil
}
