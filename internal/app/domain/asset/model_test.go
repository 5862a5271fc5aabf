package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoyaltySpecHelpers(t *testing.T) {
	spec := RoyaltySpec{{Beneficiary: "0xa", ShareBp: 2000}, {Beneficiary: "0xb", ShareBp: 3000}}

	assert.EqualValues(t, 5000, spec.TotalBp())
	assert.Equal(t, []uint32{2000, 3000}, spec.Shares())
	assert.Len(t, spec.Beneficiaries(), 2)

	cp := spec.Clone()
	cp[0].ShareBp = 1
	assert.EqualValues(t, 2000, spec[0].ShareBp)
	assert.Nil(t, RoyaltySpec(nil).Clone())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "rejected", StatusRejected.String())
	assert.Equal(t, "confirmed", StatusConfirmed.String())
	assert.Equal(t, "unknown", Status(0).String())
}
