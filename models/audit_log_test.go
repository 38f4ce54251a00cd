package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionalStringDistinguishesAbsentNullAndValue(t *testing.T) {
	var d OutcomeAuditDetails
	require.NoError(t, json.Unmarshal([]byte(`{"appointmentId":"a","outcome":"no_show"}`), &d))
	assert.False(t, d.RecordingLink.Set, "absent key")
	assert.Nil(t, d.RecordingLink.Value)

	d = OutcomeAuditDetails{}
	require.NoError(t, json.Unmarshal([]byte(`{"appointmentId":"a","outcome":"no_show","recordingLink":null}`), &d))
	assert.True(t, d.RecordingLink.Set, "present key with null value")
	assert.Nil(t, d.RecordingLink.Value)

	d = OutcomeAuditDetails{}
	require.NoError(t, json.Unmarshal([]byte(`{"appointmentId":"a","outcome":"no_show","recordingLink":"https://rec"}`), &d))
	assert.True(t, d.RecordingLink.Set)
	require.NotNil(t, d.RecordingLink.Value)
	assert.Equal(t, "https://rec", *d.RecordingLink.Value)
}

func TestNewOutcomeAuditDetailsAlwaysWritesKeys(t *testing.T) {
	raw, err := json.Marshal(NewOutcomeAuditDetails("appt-1", OutcomeNoShow, nil, nil))
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &keys))
	assert.Contains(t, keys, "recordingLink")
	assert.Contains(t, keys, "notes")
	assert.Equal(t, "null", string(keys["recordingLink"]))
}

func TestRecordingLinkForOutcome(t *testing.T) {
	link := "https://rec.example/1"
	appt := Appointment{ConvertedRecordingLink: &link}

	require.NotNil(t, appt.RecordingLinkForOutcome(OutcomeConverted))
	assert.Equal(t, link, *appt.RecordingLinkForOutcome(OutcomeConverted))
	assert.Nil(t, appt.RecordingLinkForOutcome(OutcomeNoShow))
	assert.Nil(t, appt.RecordingLinkForOutcome(OutcomePending))

	other := "https://rec.example/2"
	appt.SetRecordingLinkForOutcome(OutcomeNoShow, &other)
	require.NotNil(t, appt.NoShowRecordingLink)
	assert.Equal(t, other, *appt.NoShowRecordingLink)
}
