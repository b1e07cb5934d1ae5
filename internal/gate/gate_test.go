package gate_test

import (
	"context"
	"encoding/json"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/internal/gate"
	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
)

const testChatID int64 = 42

type harness struct {
	stateDir string
	workDir  string
	resolver *paths.Resolver
	api      *telegram.MockAPI
	modes    *mode.Resolver
	cfg      *config.Config
	gate     *gate.Gate
}

func newHarness(cfg *config.Config) *harness {
	stateDir, err := os.MkdirTemp("", "gate-state-*")
	Expect(err).NotTo(HaveOccurred())

	workDir, err := os.MkdirTemp("", "gate-work-*")
	Expect(err).NotTo(HaveOccurred())

	h := &harness{
		stateDir: stateDir,
		workDir:  workDir,
		resolver: paths.NewResolverWithDir(stateDir),
		api:      telegram.NewMockAPI(),
		cfg:      cfg,
	}

	h.modes = mode.NewResolver(h.resolver, workDir)

	h.gate, err = gate.New(cfg, h.resolver, workDir, gate.WithAPI(h.api))
	Expect(err).NotTo(HaveOccurred())

	return h
}

func (h *harness) cleanup() {
	_ = os.RemoveAll(h.stateDir)
	_ = os.RemoveAll(h.workDir)
}

// replyText answers the most recent prompt by replying to message id 1,
// which is what the mock assigns to the first sent message.
func replyText(id int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID:      id + 100,
			Text:           text,
			Chat:           telegram.Chat{ID: testChatID},
			ReplyToMessage: &telegram.Message{MessageID: 1},
		},
	}
}

func chatText(id int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id + 100,
			Text:      text,
			Chat:      telegram.Chat{ID: testChatID},
		},
	}
}

func defaultConfig() *config.Config {
	return &config.Config{
		Telegram: &config.TelegramConfig{
			BotToken: "token",
			ChatID:   testChatID,
		},
		Approval: &config.ApprovalConfig{
			Timeout:       config.Duration(time.Minute),
			TimeoutAction: string(config.TimeoutActionDeny),
		},
	}
}

func bashContext(command string) *hook.Context {
	input, err := json.Marshal(map[string]string{"command": command})
	Expect(err).NotTo(HaveOccurred())

	return &hook.Context{
		EventType: hook.EventTypePreToolUse,
		ToolName:  "Bash",
		ToolInput: input,
		SessionID: "sess-1",
	}
}

var _ = Describe("Gate", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(defaultConfig())
	})

	AfterEach(func() {
		h.cleanup()
	})

	Describe("Handle", func() {
		It("has no opinion in local mode", func() {
			result, err := h.gate.Handle(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Action).To(Equal(gate.ActionNoOpinion))
			Expect(h.api.SentCount()).To(BeZero())
		})

		It("has no opinion for unknown events", func() {
			Expect(h.modes.SetGlobal(mode.ModeRemote)).To(Succeed())

			result, err := h.gate.Handle(context.Background(), &hook.Context{
				EventType: hook.EventTypeUnknown,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Action).To(Equal(gate.ActionNoOpinion))
		})

		Context("in remote mode", func() {
			BeforeEach(func() {
				Expect(h.modes.SetGlobal(mode.ModeRemote)).To(Succeed())
			})

			It("allows when the operator replies yes", func() {
				h.api.QueueBatch(replyText(1, "yes"))

				result, err := h.gate.Handle(context.Background(), bashContext("make deploy"))
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionRespond))
				Expect(result.Response.HookSpecificOutput.PermissionDecision).To(Equal("allow"))

				Expect(h.api.SentCount()).To(Equal(1))
				Expect(h.api.Sent[0].Text).To(ContainSubstring("make deploy"))
			})

			It("denies when the operator replies anything else", func() {
				h.api.QueueBatch(replyText(1, "not now"))

				result, err := h.gate.Handle(context.Background(), bashContext("rm -rf build"))
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionRespond))
				Expect(result.Response.HookSpecificOutput.PermissionDecision).To(Equal("deny"))
			})

			It("allows auto-allowed tools without asking", func() {
				h.cfg.Approval.AutoAllow = []string{"Bash(git status*)"}

				result, err := h.gate.Handle(context.Background(), bashContext("git status -sb"))
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionRespond))
				Expect(result.Response.HookSpecificOutput.PermissionDecision).To(Equal("allow"))
				Expect(h.api.SentCount()).To(BeZero())
			})

			It("records the decision in the history log", func() {
				h.api.QueueBatch(replyText(1, "yes"))

				_, err := h.gate.Handle(context.Background(), bashContext("make test"))
				Expect(err).NotTo(HaveOccurred())

				content, err := os.ReadFile(h.resolver.HistoryLog())
				Expect(err).NotTo(HaveOccurred())
				Expect(string(content)).To(ContainSubstring(`"verdict":"approved"`))
			})

			It("forwards notifications fire-and-forget", func() {
				result, err := h.gate.Handle(context.Background(), &hook.Context{
					EventType:           hook.EventTypeNotification,
					NotificationMessage: "Claude needs your permission to use Bash",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionNoOpinion))

				Expect(h.api.SentCount()).To(Equal(1))
				Expect(h.api.Sent[0].Text).
					To(Equal("🔔 Claude needs your permission to use Bash"))
			})

			It("turns a stop continuation into a block response", func() {
				h.api.QueueBatch(chatText(1, "also run the tests"))

				result, err := h.gate.Handle(context.Background(), &hook.Context{
					EventType: hook.EventTypeStop,
					SessionID: "sess-1",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionContinue))
				Expect(result.Response.Decision).To(Equal("block"))
				Expect(result.Response.Reason).To(Equal("also run the tests"))
			})

			It("never loops on an active stop continuation", func() {
				result, err := h.gate.Handle(context.Background(), &hook.Context{
					EventType:      hook.EventTypeStop,
					SessionID:      "sess-1",
					StopHookActive: true,
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionNoOpinion))
				Expect(h.api.SentCount()).To(BeZero())
			})
		})

		Context("in readonly mode", func() {
			BeforeEach(func() {
				Expect(h.modes.SetGlobal(mode.ModeReadonly)).To(Succeed())
			})

			It("denies locally and notifies the operator", func() {
				result, err := h.gate.Handle(context.Background(), bashContext("rm -rf /"))
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionRespond))
				Expect(result.Response.HookSpecificOutput.PermissionDecision).To(Equal("deny"))

				Expect(h.api.SentCount()).To(Equal(1))
				Expect(h.api.Sent[0].Text).To(ContainSubstring("⛔ Denied (readonly): Bash"))
			})

			It("leaves questions to the host", func() {
				result, err := h.gate.Handle(context.Background(), &hook.Context{
					EventType: hook.EventTypePreToolUse,
					ToolName:  "AskUserQuestion",
					SessionID: "sess-1",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionNoOpinion))
				Expect(h.api.SentCount()).To(BeZero())
			})

			It("does not gate stop events", func() {
				result, err := h.gate.Handle(context.Background(), &hook.Context{
					EventType: hook.EventTypeStop,
					SessionID: "sess-1",
				})
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Action).To(Equal(gate.ActionNoOpinion))
			})
		})
	})
})
