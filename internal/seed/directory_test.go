package seed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorsHaveValidWeeklyTemplates(t *testing.T) {
	for _, d := range Doctors() {
		require.NoError(t, d.Validate(), d.Name)
		assert.Len(t, d.WorkingHours, 7, d.Name)
	}
}

func TestEveryDoctorBelongsToASeededDepartment(t *testing.T) {
	names := map[string]bool{}
	for _, dept := range Departments() {
		names[dept.Name] = true
	}
	for _, d := range Doctors() {
		assert.True(t, names[d.Department], "%s is in unknown department %q", d.Name, d.Department)
	}
}

func TestSarahAhmedIsClosedOnWeekends(t *testing.T) {
	var found bool
	for _, d := range Doctors() {
		if d.Name != "Dr. Sarah Ahmed" {
			continue
		}
		found = true
		_, sat := d.HoursOn(time.Saturday)
		_, sun := d.HoursOn(time.Sunday)
		fri, ok := d.HoursOn(time.Friday)
		assert.False(t, sat)
		assert.False(t, sun)
		require.True(t, ok)
		assert.Equal(t, "13:00", fri.End.String())
	}
	assert.True(t, found)
}
