package msglog_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/telegram"
)

var _ = Describe("Log", func() {
	var (
		tempDir      string
		messagesPath string
		claimsPath   string
		log          *msglog.Log
		currentTime  time.Time
	)

	envelope := func(id int64, text string) msglog.Envelope {
		return msglog.Envelope{
			SequenceID: id,
			Update: telegram.Update{
				UpdateID: id,
				Message: &telegram.Message{
					MessageID: id,
					Text:      text,
					Chat:      telegram.Chat{ID: 42},
				},
			},
			ReceivedAt: currentTime,
		}
	}

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "msglog-test-*")
		Expect(err).NotTo(HaveOccurred())

		messagesPath = filepath.Join(tempDir, "messages.jsonl")
		claimsPath = filepath.Join(tempDir, "claims.jsonl")
		currentTime = time.Date(2025, 12, 4, 10, 30, 0, 0, time.UTC)

		log = msglog.New(
			messagesPath,
			claimsPath,
			msglog.WithTimeFunc(func() time.Time { return currentTime }),
		)
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Describe("Append", func() {
		It("appends envelopes and reads them back", func() {
			Expect(log.Append([]msglog.Envelope{
				envelope(1, "first"),
				envelope(2, "second"),
			})).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].SequenceID).To(Equal(int64(1)))
			Expect(all[1].Update.Message.Text).To(Equal("second"))
		})

		It("drops envelopes whose sequence id is already present", func() {
			Expect(log.Append([]msglog.Envelope{envelope(1, "first")})).To(Succeed())
			Expect(log.Append([]msglog.Envelope{
				envelope(1, "duplicate"),
				envelope(2, "second"),
			})).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].Update.Message.Text).To(Equal("first"))
		})

		It("deduplicates within a single batch", func() {
			Expect(log.Append([]msglog.Envelope{
				envelope(7, "once"),
				envelope(7, "twice"),
			})).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("is a no-op for an empty batch", func() {
			Expect(log.Append(nil)).To(Succeed())
			Expect(messagesPath).NotTo(BeAnExistingFile())
		})
	})

	Describe("ReadAll", func() {
		It("treats a missing file as empty", func() {
			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})

		It("applies the filter predicate", func() {
			Expect(log.Append([]msglog.Envelope{
				envelope(1, "keep"),
				envelope(2, "drop"),
			})).To(Succeed())

			matched, err := log.ReadAll(func(env *msglog.Envelope) bool {
				return env.Update.Text() == "keep"
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(matched).To(HaveLen(1))
			Expect(matched[0].SequenceID).To(Equal(int64(1)))
		})

		It("skips malformed lines without failing", func() {
			Expect(log.Append([]msglog.Envelope{envelope(1, "good")})).To(Succeed())

			file, err := os.OpenFile(messagesPath, os.O_WRONLY|os.O_APPEND, 0o600)
			Expect(err).NotTo(HaveOccurred())
			_, err = file.WriteString("{not json\n")
			Expect(err).NotTo(HaveOccurred())
			Expect(file.Close()).To(Succeed())

			Expect(log.Append([]msglog.Envelope{envelope(2, "after")})).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
		})
	})

	Describe("HighWaterMark", func() {
		It("returns zero for an empty log", func() {
			mark, err := log.HighWaterMark()
			Expect(err).NotTo(HaveOccurred())
			Expect(mark).To(BeZero())
		})

		It("returns the largest sequence id", func() {
			Expect(log.Append([]msglog.Envelope{
				envelope(5, "a"),
				envelope(12, "b"),
				envelope(9, "c"),
			})).To(Succeed())

			mark, err := log.HighWaterMark()
			Expect(err).NotTo(HaveOccurred())
			Expect(mark).To(Equal(int64(12)))
		})
	})

	Describe("claims", func() {
		It("records and reports claimed ids", func() {
			Expect(log.AppendClaim(msglog.Claim{
				SequenceID: 3,
				ClaimedBy:  "abc123",
			})).To(Succeed())

			claimed, err := log.ClaimedIDs()
			Expect(err).NotTo(HaveOccurred())
			Expect(claimed).To(HaveKey(int64(3)))
			Expect(claimed).NotTo(HaveKey(int64(4)))
		})

		It("stamps the claim time when unset", func() {
			Expect(log.AppendClaim(msglog.Claim{SequenceID: 3, ClaimedBy: "abc123"})).To(Succeed())

			data, err := os.ReadFile(claimsPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("2025-12-04T10:30:00Z"))
		})
	})

	Describe("Trim", func() {
		It("keeps only the most recent records", func() {
			var batch []msglog.Envelope
			for i := int64(1); i <= 10; i++ {
				batch = append(batch, envelope(i, "msg"))
			}
			Expect(log.Append(batch)).To(Succeed())

			Expect(log.Trim(3)).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].SequenceID).To(Equal(int64(8)))
			Expect(all[2].SequenceID).To(Equal(int64(10)))
		})

		It("leaves a short log untouched", func() {
			Expect(log.Append([]msglog.Envelope{envelope(1, "only")})).To(Succeed())
			Expect(log.Trim(5)).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("ignores a non-positive keep", func() {
			Expect(log.Append([]msglog.Envelope{envelope(1, "only")})).To(Succeed())
			Expect(log.Trim(0)).To(Succeed())

			all, err := log.ReadAll(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})
})
