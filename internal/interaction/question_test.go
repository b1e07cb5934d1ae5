package interaction_test

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/internal/interaction"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
)

// questionContext builds an AskUserQuestion hook context.
func questionContext(questions ...map[string]any) *hook.Context {
	input, err := json.Marshal(map[string]any{"questions": questions})
	Expect(err).NotTo(HaveOccurred())

	return &hook.Context{
		EventType: hook.EventTypePreToolUse,
		ToolName:  "AskUserQuestion",
		ToolInput: input,
		SessionID: "sess-1",
	}
}

func withOptions(question string, labels ...string) map[string]any {
	options := make([]map[string]any, 0, len(labels))
	for _, label := range labels {
		options = append(options, map[string]any{"label": label})
	}

	return map[string]any{"question": question, "options": options}
}

var _ = Describe("Question", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(defaultConfig())
	})

	AfterEach(func() {
		h.cleanup()
	})

	Describe("Run", func() {
		It("collects a button answer", func() {
			question := interaction.NewQuestion(h.deps)

			// Second option of the first (index 0) sub-question.
			h.api.QueueBatch(callbackUpdate(1, "qst|"+question.ID()+"|0|1"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging", "production")),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictAnswered))
			Expect(outcome.Answers).To(HaveLen(1))
			Expect(outcome.Answers[0].Question).To(Equal("Deploy target?"))
			Expect(outcome.Answers[0].Choice).To(Equal("production"))
		})

		It("accepts a numeric free-text answer", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(chatText(1, "1"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging", "production")),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictAnswered))
			Expect(outcome.Answers[0].Choice).To(Equal("staging"))
		})

		It("accepts a literal option label regardless of case", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(chatText(1, "STAGING"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging", "production")),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Answers[0].Choice).To(Equal("staging"))
		})

		It("takes unmatched free text as the literal answer", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(chatText(1, "use the canary cluster"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging", "production")),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Answers[0].Choice).To(Equal("use the canary cluster"))
		})

		It("walks a multi-question sequence in order", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "qst|"+question.ID()+"|0|0"))
			h.api.QueueBatch(callbackUpdate(2, "qst|"+question.ID()+"|1|1"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(
					withOptions("Deploy target?", "staging", "production"),
					withOptions("Run migrations?", "yes", "no"),
				),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictAnswered))
			Expect(outcome.Answers).To(HaveLen(2))
			Expect(outcome.Answers[0].Choice).To(Equal("staging"))
			Expect(outcome.Answers[1].Choice).To(Equal("no"))
			Expect(h.api.SentCount()).To(Equal(2))
		})

		It("ends the sequence on skip, keeping earlier answers", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "qst|"+question.ID()+"|0|0"))
			h.api.QueueBatch(callbackUpdate(2, "qst|"+question.ID()+"|1|skip"))

			outcome, err := question.Run(
				context.Background(),
				questionContext(
					withOptions("Deploy target?", "staging", "production"),
					withOptions("Run migrations?", "yes", "no"),
				),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictSkipped))
			Expect(outcome.Answers).To(HaveLen(1))
			Expect(outcome.Answers[0].Choice).To(Equal("staging"))
		})

		It("skips an empty question list without messaging", func() {
			question := interaction.NewQuestion(h.deps)

			outcome, err := question.Run(context.Background(), questionContext())
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictSkipped))
			Expect(h.api.SentCount()).To(BeZero())
		})

		It("times out when the operator never answers", func() {
			h.cfg.Approval.Timeout = config.Duration(2 * time.Second)

			question := interaction.NewQuestion(h.deps)

			outcome, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging")),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictTimedOut))
		})

		It("releases the reply lock after each sub-question", func() {
			question := interaction.NewQuestion(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "qst|"+question.ID()+"|0|0"))

			_, err := question.Run(
				context.Background(),
				questionContext(withOptions("Deploy target?", "staging")),
			)
			Expect(err).NotTo(HaveOccurred())

			lock, err := h.reg.CurrentReplyLock()
			Expect(err).NotTo(HaveOccurred())
			Expect(lock).To(BeNil())
		})
	})
})
