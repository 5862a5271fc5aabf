package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errSample = StateConflict("not_pending", "request is not pending")

func TestSentinelMatchesDetailedCopy(t *testing.T) {
	err := errSample.WithDetails("id", 4)

	assert.True(t, Is(err, errSample))
	assert.True(t, IsStateConflict(err))
	assert.False(t, IsValidation(err))
	assert.Equal(t, 4, err.Details["id"])
	assert.Nil(t, errSample.Details, "sentinel must not be mutated")
}

func TestWrappedServiceErrorStillClassified(t *testing.T) {
	inner := TransferFailed("pay seller", New("recipient rejected"))
	err := fmt.Errorf("buy: %w", inner)

	require.True(t, IsTransferFailure(err))
	se := GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "recipient rejected", se.Unwrap().Error())
	assert.Contains(t, err.Error(), "transfer_failure: pay seller")
}

func TestDifferentCodesDoNotMatch(t *testing.T) {
	other := StateConflict("not_rejected", "request is not rejected")
	assert.False(t, Is(other, errSample))
	assert.Equal(t, Kind(""), KindOf(New("plain")))
}
