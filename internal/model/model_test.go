package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequestValidate(t *testing.T) {
	valid := Request{
		ID: "req1", ProviderID: "hp1", BloodGroup: []string{"O-"},
		Quantity: 2, Urgency: UrgencyHigh, Status: RequestOpen,
	}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Request)
	}{
		{"missing id", func(r *Request) { r.ID = "" }},
		{"missing provider", func(r *Request) { r.ProviderID = "" }},
		{"no blood groups", func(r *Request) { r.BloodGroup = nil }},
		{"zero quantity", func(r *Request) { r.Quantity = 0 }},
		{"negative quantity", func(r *Request) { r.Quantity = -1 }},
		{"unknown urgency", func(r *Request) { r.Urgency = "immediately" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)
			assert.Error(t, req.Validate())
		})
	}
}

func TestResponseRecordResponded(t *testing.T) {
	assert.False(t, ResponseRecord{Status: ResponseContacted}.Responded())
	assert.False(t, ResponseRecord{}.Responded())
	assert.True(t, ResponseRecord{Status: ResponseResponded}.Responded())
	assert.True(t, ResponseRecord{Status: ResponseWilling}.Responded())
	assert.True(t, ResponseRecord{Status: ResponseDeclined}.Responded())
}
