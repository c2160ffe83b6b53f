package failures

import (
	"testing"

	"github.com/docpipe/ocrflow/pkg/models"
)

func TestMapLegacyReason(t *testing.T) {
	tests := []struct {
		legacy string
		want   models.FailureReason
	}{
		{"low_ocr_confidence", models.FailureReasonLowOCRConfidence},
		{"timeout", models.FailureReasonOCRTimeout},
		{"memory_limit", models.FailureReasonOCRMemoryLimit},
		{"pdf_parsing_error", models.FailureReasonPDFParsingError},
		{"corrupted", models.FailureReasonFileCorrupted},
		{"file_corrupted", models.FailureReasonFileCorrupted},
		{"unsupported_format", models.FailureReasonUnsupportedFormat},
		{"access_denied", models.FailureReasonAccessDenied},
		{"unknown", models.FailureReasonOther},
		{"", models.FailureReasonOther},
		{"something else entirely", models.FailureReasonOther},
	}
	for _, tt := range tests {
		if got := MapLegacyReason(tt.legacy); got != tt.want {
			t.Errorf("MapLegacyReason(%q) = %q, want %q", tt.legacy, got, tt.want)
		}
	}
}

func TestMapLegacyReason_AlwaysValid(t *testing.T) {
	for _, legacy := range []string{"low_ocr_confidence", "timeout", "", "bogus"} {
		if !MapLegacyReason(legacy).Valid() {
			t.Errorf("MapLegacyReason(%q) produced an invalid FailureReason", legacy)
		}
	}
}
