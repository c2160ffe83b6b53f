package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docpipe/ocrflow/pkg/models"
)

func TestValidators(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Validators Suite")
}

func ptrFloat(v float64) *float64 { return &v }

var _ = Describe("DocumentValidator", func() {
	var (
		validator *DocumentValidator
		doc       *models.Document
	)

	BeforeEach(func() {
		validator = NewDocumentValidator()
		doc = &models.Document{
			Owner:      "alice",
			Filename:   "invoice.pdf",
			Path:       "/alice/invoice.pdf",
			Size:       1024,
			Mime:       "application/pdf",
			OCRStatus:  models.OCRStatusPending,
			SourceType: models.SourceTypeLocalFolder,
		}
	})

	It("passes for a minimal valid document", func() {
		Expect(validator.Validate(doc)).To(BeNil())
	})

	It("fails for a nil document", func() {
		err := validator.Validate(nil)
		Expect(err).ToNot(BeNil())
		Expect(err.Error()).To(ContainSubstring("cannot be nil"))
	})

	It("fails for an empty owner", func() {
		doc.Owner = ""
		err := validator.Validate(doc)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["owner"]).To(ContainSubstring("required"))
	})

	It("fails for an owner exceeding the length ceiling", func() {
		doc.Owner = strings.Repeat("a", maxOwnerLen+1)
		err := validator.Validate(doc)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["owner"]).To(ContainSubstring("255"))
	})

	It("fails for a negative size", func() {
		doc.Size = -1
		err := validator.Validate(doc)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["size"]).To(ContainSubstring("non-negative"))
	})

	It("fails when completed without ocr_text", func() {
		doc.OCRStatus = models.OCRStatusCompleted
		err := validator.Validate(doc)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["invariant"]).ToNot(BeEmpty())
	})

	It("passes when completed with ocr_text", func() {
		text := "hello world"
		doc.OCRStatus = models.OCRStatusCompleted
		doc.OCRText = &text
		Expect(validator.Validate(doc)).To(BeNil())
	})

	It("fails for out-of-range confidence", func() {
		text := "hello"
		doc.OCRStatus = models.OCRStatusCompleted
		doc.OCRText = &text
		doc.OCRConfidence = ptrFloat(150)
		err := validator.Validate(doc)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["invariant"]).ToNot(BeEmpty())
	})
})

var _ = Describe("QueueItemValidator", func() {
	var (
		validator *QueueItemValidator
		item      *models.QueueItem
	)

	BeforeEach(func() {
		validator = NewQueueItemValidator()
		item = models.NewQueueItem(uuid.New(), models.PriorityMedium, 2048, models.DefaultMaxAttempts)
	})

	It("passes for a freshly created item", func() {
		Expect(validator.Validate(item)).To(BeNil())
	})

	It("fails for a nil item", func() {
		err := validator.Validate(nil)
		Expect(err).ToNot(BeNil())
	})

	It("fails for an out-of-range priority", func() {
		item.Priority = 99
		err := validator.Validate(item)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["priority"]).To(ContainSubstring("between 0 and 10"))
	})

	It("fails for a non-positive max_attempts", func() {
		item.MaxAttempts = 0
		err := validator.Validate(item)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["max_attempts"]).To(ContainSubstring("positive"))
	})

	It("fails for an invalid status", func() {
		item.Status = "bogus"
		err := validator.Validate(item)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["status"]).To(ContainSubstring("must be one of"))
	})
})

var _ = Describe("SourceValidator", func() {
	var (
		validator *SourceValidator
		src       *models.Source
	)

	BeforeEach(func() {
		validator = NewSourceValidator()
		src = &models.Source{
			Owner:   "alice",
			Name:    "home-folder",
			Type:    models.SourceTypeLocalFolder,
			Status:  models.SourceStatusIdle,
			Config:  models.SourceConfig{LocalFolder: &models.LocalFolderConfig{Path: "/data/alice"}},
			AutoSync: true,
			SyncIntervalMinutes: 60,
		}
	})

	It("passes for a valid local_folder source", func() {
		Expect(validator.Validate(src)).To(BeNil())
	})

	It("fails when the type-specific config is missing", func() {
		src.Config = models.SourceConfig{}
		err := validator.Validate(src)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["config"]).To(ContainSubstring("local_folder"))
	})

	It("fails when auto_sync is enabled with no interval", func() {
		src.SyncIntervalMinutes = 0
		err := validator.Validate(src)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["sync_interval_minutes"]).ToNot(BeEmpty())
	})

	It("fails for an invalid type", func() {
		src.Type = "ftp"
		err := validator.Validate(src)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["type"]).To(ContainSubstring("must be one of"))
	})
})

var _ = Describe("FailureRecordValidator", func() {
	var (
		validator *FailureRecordValidator
		rec       *models.FailureRecord
	)

	BeforeEach(func() {
		validator = NewFailureRecordValidator()
		rec = &models.FailureRecord{
			Owner:         "alice",
			Filename:      "scan.tiff",
			FailureReason: models.FailureReasonUnsupportedFormat,
			FailureStage:  models.FailureStageIngestion,
			ErrorMessage:  "unsupported file extension",
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
		}
	})

	It("passes for a valid record", func() {
		Expect(validator.Validate(rec)).To(BeNil())
	})

	It("fails for an unrecognized failure reason", func() {
		rec.FailureReason = "Low_OCR_Confidence"
		err := validator.Validate(rec)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["failure_reason"]).ToNot(BeEmpty())
	})

	It("fails for an unrecognized failure stage", func() {
		rec.FailureStage = "bogus"
		err := validator.Validate(rec)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["failure_stage"]).ToNot(BeEmpty())
	})

	It("fails for a negative retry_count", func() {
		rec.RetryCount = -1
		err := validator.Validate(rec)
		Expect(err).ToNot(BeNil())
		Expect(err.FieldErrors["retry_count"]).To(ContainSubstring("non-negative"))
	})
})
