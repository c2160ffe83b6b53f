// Package failures maps legacy, free-form OCR failure strings onto the
// closed FailureReason enumeration per spec.md §4.9.
package failures

import "github.com/docpipe/ocrflow/pkg/models"

var legacyReasonTable = map[string]models.FailureReason{
	"low_ocr_confidence": models.FailureReasonLowOCRConfidence,
	"timeout":            models.FailureReasonOCRTimeout,
	"memory_limit":       models.FailureReasonOCRMemoryLimit,
	"pdf_parsing_error":  models.FailureReasonPDFParsingError,
	"corrupted":          models.FailureReasonFileCorrupted,
	"file_corrupted":     models.FailureReasonFileCorrupted,
	"unsupported_format": models.FailureReasonUnsupportedFormat,
	"access_denied":      models.FailureReasonAccessDenied,
}

// MapLegacyReason maps a legacy free-form OCR failure string onto the
// closed FailureReason set. Everything not in the fixed table — including
// the empty string, "unknown", and any unrecognized value — maps to
// FailureReasonOther.
func MapLegacyReason(legacy string) models.FailureReason {
	if reason, ok := legacyReasonTable[legacy]; ok {
		return reason
	}
	return models.FailureReasonOther
}
