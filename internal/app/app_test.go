package app

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/frontdesk-scheduling/internal/config"
	"github.com/hackgods/frontdesk-scheduling/internal/scheduling"
	"github.com/hackgods/frontdesk-scheduling/pkg/logging"
)

func memoryConfig() config.Config {
	return config.Config{
		StorageDriver:     config.DriverMemory,
		LockTTL:           time.Second,
		LockRetries:       1,
		LockRetryDelay:    time.Millisecond,
		DirectoryCacheTTL: time.Minute,
		StorageTimeout:    time.Second,
		ClinicLocation:    time.UTC,
	}
}

func TestNewMemoryWithoutRedis(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), logging.New("error"))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.PgPool)
	assert.Nil(t, a.Redis)
	assert.Nil(t, a.Cache)

	appt, err := a.Service.Book(context.Background(), scheduling.BookRequest{
		PatientName:  "Jane Doe",
		PatientPhone: "+15550001",
		DoctorName:   "Dr. Sarah Ahmed",
		Date:         "2026-01-28",
		Time:         "10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc_001", appt.DoctorID)
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()

	a, err := New(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Cache)
	_, err = a.Service.CheckAvailability(context.Background(), "Dr. Sarah Ahmed", "2026-01-28", "10:00")
	require.NoError(t, err)
	assert.True(t, mr.Exists("directory:doctor:dr. sarah ahmed"))
}

func TestNewToleratesUnreachableRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := memoryConfig()
	cfg.RedisAddr = mr.Addr()
	mr.Close()

	a, err := New(context.Background(), cfg, logging.New("error"))
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Redis)
	assert.NotNil(t, a.Service)
}
