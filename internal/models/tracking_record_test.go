package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrackingRecordValidateAcceptsMinimalRecord(t *testing.T) {
	record := TrackingRecord{ID: "rec-1", UserID: "user-1", ActionType: ActionUserLogin}

	result := record.Validate()
	require.True(t, result.Valid)
	require.Empty(t, result.Errors)
}

func TestTrackingRecordValidateReportsAllViolations(t *testing.T) {
	record := TrackingRecord{
		ID:         strings.Repeat("x", 51),
		UserID:     "",
		ActionType: "SOMETHING_ELSE",
		IPAddress:  "not-an-ip",
	}

	result := record.Validate()
	require.False(t, result.Valid)
	require.Len(t, result.Errors, 4)
}

func TestTrackingRecordValidateRejectsMalformedMetadata(t *testing.T) {
	broken := "{not json"
	record := TrackingRecord{ID: "rec-1", UserID: "user-1", ActionType: ActionUserLogin, Metadata: &broken}

	result := record.Validate()
	require.False(t, result.Valid)
	require.Contains(t, result.Errors, "metadata must be a JSON object")
}

func TestTrackingRecordValidateAcceptsWellFormedIP(t *testing.T) {
	for _, ip := range []string{"10.0.0.1", "::1", "2001:db8::68"} {
		record := TrackingRecord{ID: "rec-1", UserID: "user-1", ActionType: ActionUserLogin, IPAddress: ip}
		require.True(t, record.Validate().Valid, "expected %s to be accepted", ip)
	}
}

func TestClassificationPredicates(t *testing.T) {
	require.True(t, TrackingRecord{ActionType: ActionDocumentApprove}.IsDocumentAction())
	require.True(t, TrackingRecord{ActionType: ActionStudentDelete}.IsStudentAction())
	require.True(t, TrackingRecord{ActionType: ActionPermissionChange}.IsUserAction())

	record := TrackingRecord{ActionType: ActionUserLogin}
	require.False(t, record.IsDocumentAction())
	require.False(t, record.IsStudentAction())
	require.True(t, record.IsUserAction())
}

func TestActionDisplayNameFallsBackForUnknownValues(t *testing.T) {
	require.Equal(t, "Unggah Dokumen", ActionDisplayName(ActionDocumentUpload))
	require.Equal(t, ActionDisplayNameFallback, ActionDisplayName("NOT_AN_ACTION"))
	require.Equal(t, ActionDisplayNameFallback, ActionDisplayName(""))
}

func TestMetadataRoundTripThroughStorageForm(t *testing.T) {
	var record TrackingRecord
	require.NoError(t, record.SetMetadata(map[string]interface{}{
		"file_name": "a.pdf",
		"file_size": 1024,
	}))
	require.NotNil(t, record.Metadata)

	// Rebuild a record from the stored string, as a reader would.
	restored := TrackingRecord{Metadata: record.Metadata}
	parsed := restored.MetadataMap()
	require.Equal(t, "a.pdf", parsed["file_name"])
	require.Equal(t, float64(1024), parsed["file_size"])
}

func TestSetMetadataOmitsAbsentMapping(t *testing.T) {
	var record TrackingRecord
	require.NoError(t, record.SetMetadata(nil))
	require.Nil(t, record.Metadata)

	raw, err := json.Marshal(record)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "metadata")
}

func TestMetadataMapTreatsCorruptValueAsAbsent(t *testing.T) {
	broken := "{{"
	record := TrackingRecord{Metadata: &broken}
	require.Nil(t, record.MetadataMap())
}
