package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"dashes", "555-1234", "5551234"},
		{"international", "+54 9 11 5555-1234", "5491155551234"},
		{"already normalized", "5551234", "5551234"},
		{"letters only", "call me", ""},
		{"empty", "", ""},
		{"mixed", "(011) 4555.6789 int 2", "011455567892"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.raw))
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	once := NormalizePhone("+1 (555) 123-4567")
	assert.Equal(t, once, NormalizePhone(once))
}

func TestJobObjectName(t *testing.T) {
	j := &Job{ContactKey: "5551234", RunID: "batch-1__2024-01-01T00-00-00Z"}
	assert.Equal(t, "5551234__batch-1__2024-01-01T00-00-00Z.json", j.ObjectName())
}

func TestBatchIndexObjectName(t *testing.T) {
	b := &BatchIndex{BatchID: "file-abc"}
	assert.Equal(t, "file-abc.json", b.ObjectName())

	// Location-encoding identifiers flatten to a single name component.
	b = &BatchIndex{BatchID: "inbox/may.xlsx"}
	assert.Equal(t, "inbox-may.xlsx.json", b.ObjectName())
}
