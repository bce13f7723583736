package resolve

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ruler/pkg/core"
)

func TestConvertValue(t *testing.T) {
	tests := []struct {
		name    string
		vt      core.ValueType
		literal string
		want    any
		wantErr bool
	}{
		{"string kept verbatim", core.TypeString, " A ", " A ", false},
		{"int", core.TypeInt, "1", int64(1), false},
		{"int trimmed", core.TypeInt, " -42 ", int64(-42), false},
		{"int rejects text", core.TypeInt, "oops", nil, true},
		{"float", core.TypeFloat, "2.5", 2.5, false},
		{"decimal keeps its digits", core.TypeDecimal, "10.10", json.Number("10.10"), false},
		{"decimal rejects text", core.TypeDecimal, "ten", nil, true},
		{"bool", core.TypeBool, "true", true, false},
		{"bool numeric", core.TypeBool, "0", false, false},
		{"bool rejects text", core.TypeBool, "maybe", nil, true},
		{"uuid", core.TypeUUID, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), false},
		{"uuid rejects text", core.TypeUUID, "not-a-uuid", nil, true},
		{"date", core.TypeTime, "2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"time rejects text", core.TypeTime, "yesterday", nil, true},
		{"bytes", core.TypeBytes, "0x0A0b", []byte{0x0a, 0x0b}, false},
		{"bytes rejects odd length", core.TypeBytes, "0xABC", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertValue(tt.vt, tt.literal)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "cannot convert")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSuggest(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		candidates []string
		want       string
	}{
		{"transposition", "Nmae", []string{"Id", "Name", "Secret"}, "Name"},
		{"case insensitive", "CUSTOMERS", []string{"Customer"}, "Customer"},
		{"too far", "Order", []string{"Customer", "AuditLog"}, ""},
		{"earlier candidate wins ties", "Cat", []string{"Car", "Cab"}, "Car"},
		{"no candidates", "Order", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest(tt.input, tt.candidates))
		})
	}

	assert.Equal(t, `; did you mean "Name"?`, didYouMean("Nmae", []string{"Name"}))
	assert.Empty(t, didYouMean("Order", []string{"Customer"}))
}
