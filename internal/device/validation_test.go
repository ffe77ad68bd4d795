package device

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateNew(t *testing.T) {
	date := Date{Year: 2024, Month: time.March, Day: 1}
	holder := "Alice"
	blank := "  "

	tests := []struct {
		name       string
		in         NewDevice
		wantFields []string
	}{
		{name: "valid available", in: NewDevice{DeviceID: "AUV-1"}},
		{name: "valid issued", in: NewDevice{DeviceID: "AUV-1", IsIssued: true, IssuedTo: &holder, DateIssued: &date}},
		{name: "available ignores bad holder", in: NewDevice{DeviceID: "AUV-1", IssuedTo: &blank}},
		{name: "missing device id", in: NewDevice{DeviceID: ""}, wantFields: []string{"deviceId"}},
		{name: "blank device id", in: NewDevice{DeviceID: "   "}, wantFields: []string{"deviceId"}},
		{name: "device id too long", in: NewDevice{DeviceID: strings.Repeat("x", 101)}, wantFields: []string{"deviceId"}},
		{name: "issued missing holder", in: NewDevice{DeviceID: "AUV-1", IsIssued: true, DateIssued: &date}, wantFields: []string{"issuedTo"}},
		{name: "issued blank holder", in: NewDevice{DeviceID: "AUV-1", IsIssued: true, IssuedTo: &blank, DateIssued: &date}, wantFields: []string{"issuedTo"}},
		{name: "issued missing date", in: NewDevice{DeviceID: "AUV-1", IsIssued: true, IssuedTo: &holder}, wantFields: []string{"dateIssued"}},
		{name: "everything wrong", in: NewDevice{IsIssued: true}, wantFields: []string{"deviceId", "issuedTo", "dateIssued"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNew(tt.in)
			if len(tt.wantFields) == 0 {
				require.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.ErrorIs(t, err, ErrInvalidDevice)

			fields := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				fields = append(fields, f.Field)
			}
			assert.Equal(t, tt.wantFields, fields)
		})
	}
}

func TestValidationError_Err(t *testing.T) {
	var nilErr *ValidationError
	assert.NoError(t, nilErr.Err())
	assert.NoError(t, (&ValidationError{}).Err())

	verr := &ValidationError{}
	verr.Add("deviceId", "is required")
	assert.EqualError(t, verr.Err(), "device: invalid: deviceId is required")
}

func TestDate_JSON(t *testing.T) {
	d := Date{Year: 2024, Month: time.February, Day: 29}

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-02-29"`, string(data))

	var back Date
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, d, back)

	for _, bad := range []string{`"2023-02-29"`, `"03/01/2024"`, `20240301`, `""`} {
		assert.Error(t, json.Unmarshal([]byte(bad), &back), "Unmarshal(%s)", bad)
	}
}

func TestDevice_JSONNullHolder(t *testing.T) {
	d := Device{
		ID:        1,
		DeviceID:  "AUV-1",
		DateAdded: Date{Year: 2024, Month: time.March, Day: 1},
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(d)
	require.NoError(t, err)

	want := `{"id":1,"deviceId":"AUV-1","dateAdded":"2024-03-01","isIssued":false,"issuedTo":null,"dateIssued":null,"createdAt":"2024-03-01T08:00:00Z"}`
	assert.JSONEq(t, want, string(data))
}
