package evaluator

import (
	"testing"
	"time"

	"forgewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateReading_Valid(t *testing.T) {
	reading := &models.Reading{
		DeviceID:    "dev-1",
		Timestamp:   time.Now(),
		Temperature: f(850),
	}

	err := ValidateReading(reading, testDevice(), time.Now())
	assert.NoError(t, err)
}

func TestValidateReading_UnresolvedDevice(t *testing.T) {
	reading := &models.Reading{Temperature: f(850)}

	err := ValidateReading(reading, nil, time.Now())

	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Contains(t, err.Error(), "device reference")
}

func TestValidateReading_DeviceMismatch(t *testing.T) {
	reading := &models.Reading{
		DeviceID:    "dev-other",
		Temperature: f(850),
	}

	err := ValidateReading(reading, testDevice(), time.Now())

	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
}

func TestValidateReading_MissingTimestampAssignedNow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	reading := &models.Reading{
		DeviceID:    "dev-1",
		Temperature: f(850),
	}

	err := ValidateReading(reading, testDevice(), now)

	require.NoError(t, err)
	assert.Equal(t, now, reading.Timestamp)
}

func TestValidateReading_AllChannelsAbsent(t *testing.T) {
	reading := &models.Reading{
		DeviceID:  "dev-1",
		Timestamp: time.Now(),
	}

	err := ValidateReading(reading, testDevice(), time.Now())

	require.Error(t, err)
	assert.True(t, models.IsValidationError(err))
	assert.Contains(t, err.Error(), "channels are absent")
}
