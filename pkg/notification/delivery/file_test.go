package delivery_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/docpipe/ocrflow/pkg/notification/delivery"
)

var _ = Describe("FileDeliveryService", func() {
	var (
		ctx     context.Context
		service delivery.Service
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("directory creation error handling", func() {
		It("should wrap directory creation errors as retryable", func() {
			By("Creating a read-only parent directory")
			tempDir := GinkgoT().TempDir()
			readOnlyDir := filepath.Join(tempDir, "readonly")
			Expect(os.Mkdir(readOnlyDir, 0555)).To(Succeed())

			invalidDir := filepath.Join(readOnlyDir, "cannot-create-this")
			service = delivery.NewFileDeliveryService(invalidDir)

			notification := &delivery.Notification{
				Subject:  "Sync failed",
				Body:     "source alice-nextcloud entered error state",
				Channels: []delivery.Channel{delivery.ChannelFile},
			}

			By("Attempting delivery with permission denied error")
			err := service.Deliver(ctx, notification)
			Expect(err).To(HaveOccurred(), "Delivery should fail with permission denied")

			By("Verifying error is wrapped as RetryableError")
			var retryableErr *delivery.RetryableError
			Expect(err).To(BeAssignableToTypeOf(retryableErr))

			By("Verifying error message contains directory creation failure")
			Expect(err.Error()).To(ContainSubstring("failed to create output directory"))
		})

		It("should succeed when directory is writable", func() {
			By("Creating a writable directory")
			tempDir := GinkgoT().TempDir()
			writableDir := filepath.Join(tempDir, "writable")
			service = delivery.NewFileDeliveryService(writableDir)

			notification := &delivery.Notification{
				Subject:  "Sync completed",
				Body:     "12 documents ingested",
				Channels: []delivery.Channel{delivery.ChannelFile},
			}

			By("Attempting delivery with writable directory")
			err := service.Deliver(ctx, notification)
			Expect(err).ToNot(HaveOccurred())

			By("Verifying file was created")
			files, err := os.ReadDir(writableDir)
			Expect(err).ToNot(HaveOccurred())
			Expect(files).To(HaveLen(1), "Exactly one notification file should be created")
		})
	})

	Context("file write error handling", func() {
		It("should wrap file write errors as retryable", func() {
			By("Creating a directory and making it read-only after creation")
			tempDir := GinkgoT().TempDir()
			readOnlyFileDir := filepath.Join(tempDir, "readonly-files")
			Expect(os.Mkdir(readOnlyFileDir, 0755)).To(Succeed())
			Expect(os.Chmod(readOnlyFileDir, 0555)).To(Succeed())

			service = delivery.NewFileDeliveryService(readOnlyFileDir)

			notification := &delivery.Notification{
				Subject:  "Sync failed",
				Body:     "testing write permission denied",
				Channels: []delivery.Channel{delivery.ChannelFile},
			}

			By("Attempting delivery with write permission denied")
			err := service.Deliver(ctx, notification)
			Expect(err).To(HaveOccurred())

			By("Verifying error is wrapped as RetryableError")
			var retryableErr *delivery.RetryableError
			Expect(err).To(BeAssignableToTypeOf(retryableErr))

			By("Verifying error message contains file write failure")
			Expect(err.Error()).To(ContainSubstring("failed to write temporary file"))
		})
	})
})
