package interaction_test

import (
	"context"
	"encoding/json"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/internal/claim"
	"github.com/smykla-skalski/telegate/internal/interaction"
	"github.com/smykla-skalski/telegate/internal/mode"
	"github.com/smykla-skalski/telegate/internal/msglog"
	"github.com/smykla-skalski/telegate/internal/paths"
	"github.com/smykla-skalski/telegate/internal/poller"
	"github.com/smykla-skalski/telegate/internal/registry"
	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
	"github.com/smykla-skalski/telegate/pkg/hook"
	"github.com/smykla-skalski/telegate/pkg/logger"
)

const testChatID int64 = 42

// harness wires a full interaction stack over a temp state directory with
// a mock remote API and a fake clock.
type harness struct {
	tempDir string
	workDir string
	api     *telegram.MockAPI
	modes   *mode.Resolver
	reg     *registry.Registry
	cfg     *config.Config
	deps    interaction.Deps

	currentTime time.Time
}

func newHarness(cfg *config.Config) *harness {
	tempDir, err := os.MkdirTemp("", "interaction-test-*")
	Expect(err).NotTo(HaveOccurred())

	workDir, err := os.MkdirTemp("", "interaction-work-*")
	Expect(err).NotTo(HaveOccurred())

	h := &harness{
		tempDir:     tempDir,
		workDir:     workDir,
		api:         telegram.NewMockAPI(),
		cfg:         cfg,
		currentTime: time.Date(2025, 12, 4, 10, 30, 0, 0, time.UTC),
	}

	timeFunc := func() time.Time { return h.currentTime }

	resolver := paths.NewResolverWithDir(tempDir)
	log := msglog.New(resolver.MessagesLog(), resolver.ClaimsLog(),
		msglog.WithTimeFunc(timeFunc))
	h.modes = mode.NewResolver(resolver, workDir)
	h.reg = registry.New(resolver, registry.WithTimeFunc(timeFunc))

	// Waits cancel in local mode, so the harness starts remote.
	Expect(h.modes.SetGlobal(mode.ModeRemote)).To(Succeed())

	coordinator := claim.NewCoordinator(log, resolver.ClaimLock(),
		claim.WithTimeFunc(timeFunc),
		claim.WithSleepFunc(func(time.Duration) {}),
	)

	p := poller.New(
		poller.Deps{
			API:      h.api,
			Log:      log,
			Claims:   coordinator,
			Registry: h.reg,
			Modes:    h.modes,
		},
		cfg,
		poller.WithTimeFunc(timeFunc),
		poller.WithSleepFunc(func(_ context.Context, d time.Duration) error {
			h.currentTime = h.currentTime.Add(d)

			return nil
		}),
	)

	h.deps = interaction.Deps{
		API:      h.api,
		Poller:   p,
		Registry: h.reg,
		Config:   cfg,
		Logger:   logger.NewNoOpLogger(),
		Now:      timeFunc,
	}

	return h
}

func (h *harness) cleanup() {
	_ = os.RemoveAll(h.tempDir)
	_ = os.RemoveAll(h.workDir)
}

func callbackUpdate(id int64, data string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		CallbackQuery: &telegram.CallbackQuery{
			ID:      "cb-1",
			Data:    data,
			Message: &telegram.Message{MessageID: 1, Chat: telegram.Chat{ID: testChatID}},
		},
	}
}

func chatText(id int64, text string) telegram.Update {
	return telegram.Update{
		UpdateID: id,
		Message: &telegram.Message{
			MessageID: id,
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

var _ = Describe("Approval", func() {
	var h *harness

	BeforeEach(func() {
		h = newHarness(defaultConfig())
	})

	AfterEach(func() {
		h.cleanup()
	})

	Describe("Run", func() {
		It("approves when the operator presses the approve button", func() {
			approval := interaction.NewApproval(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "apr|"+approval.ID()+"|approve"))

			outcome, err := approval.Run(context.Background(), bashContext("rm -rf build"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictApproved))
			Expect(outcome.Reason).To(ContainSubstring("approved by operator"))

			// The prompt was sent, the button acknowledged, the keyboard
			// dropped via edit.
			Expect(h.api.SentCount()).To(Equal(1))
			Expect(h.api.Sent[0].Text).To(ContainSubstring("rm -rf build"))
			Expect(h.api.AnsweredIDs).To(ContainElement("cb-1"))
			Expect(h.api.Edited).To(HaveLen(1))
		})

		It("denies when the operator presses the deny button", func() {
			approval := interaction.NewApproval(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "apr|"+approval.ID()+"|deny"))

			outcome, err := approval.Run(context.Background(), bashContext("rm -rf /"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictDenied))
		})

		It("reports allow-all so the caller can drop the session to local", func() {
			approval := interaction.NewApproval(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "apr|"+approval.ID()+"|allow_all"))

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictAllowAll))
		})

		It("reports delegate for the host's native flow", func() {
			approval := interaction.NewApproval(h.deps)

			h.api.QueueBatch(callbackUpdate(1, "apr|"+approval.ID()+"|delegate"))

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictDelegate))
		})

		It("ignores callbacks tagged with another interaction id", func() {
			approval := interaction.NewApproval(h.deps)

			h.api.QueueBatch(
				callbackUpdate(1, "apr|someoneelse|approve"),
				callbackUpdate(2, "apr|"+approval.ID()+"|deny"),
			)

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictDenied))
		})

		It("approves on a literal yes reply to the prompt", func() {
			approval := interaction.NewApproval(h.deps)

			reply := chatText(1, "yes")
			reply.Message.ReplyToMessage = &telegram.Message{MessageID: 1}

			h.api.QueueBatch(reply)

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictApproved))
		})

		It("treats any other reply text as a denial with reason", func() {
			approval := interaction.NewApproval(h.deps)

			reply := chatText(1, "not on production")
			reply.Message.ReplyToMessage = &telegram.Message{MessageID: 1}

			h.api.QueueBatch(reply)

			outcome, err := approval.Run(context.Background(), bashContext("make deploy"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictDenied))
			Expect(outcome.Reason).To(ContainSubstring("not on production"))
		})

		It("times out into the configured deny action", func() {
			h.cfg.Approval.Timeout = config.Duration(2 * time.Second)

			approval := interaction.NewApproval(h.deps)

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictTimedOut))
			Expect(outcome.Reason).To(ContainSubstring("timeout action"))
		})

		It("times out into an approval when the action is allow", func() {
			h.cfg.Approval.Timeout = config.Duration(2 * time.Second)
			h.cfg.Approval.TimeoutAction = string(config.TimeoutActionAllow)

			approval := interaction.NewApproval(h.deps)

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictApproved))
		})

		It("reports cancellation when the mode flips to local mid-wait", func() {
			Expect(h.modes.SetGlobal(mode.ModeLocal)).To(Succeed())

			approval := interaction.NewApproval(h.deps)

			outcome, err := approval.Run(context.Background(), bashContext("make test"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Cancelled).To(BeTrue())
		})

		It("short-circuits on an auto-allow pattern without messaging", func() {
			h.cfg.Approval.AutoAllow = []string{"Bash(git status*)"}

			approval := interaction.NewApproval(h.deps)

			outcome, err := approval.Run(context.Background(), bashContext("git status --short"))
			Expect(err).NotTo(HaveOccurred())
			Expect(outcome.Verdict).To(Equal(interaction.VerdictApproved))
			Expect(outcome.AutoAllowed).To(BeTrue())
			Expect(h.api.SentCount()).To(BeZero())
		})
	})
})

var _ = Describe("MatchesAutoAllow", func() {
	It("matches a bare tool name against any input", func() {
		ctx := &hook.Context{ToolName: "WebSearch"}
		Expect(interaction.MatchesAutoAllow([]string{"WebSearch"}, ctx)).To(BeTrue())
	})

	It("matches a command glob", func() {
		Expect(interaction.MatchesAutoAllow(
			[]string{"Bash(git status*)"},
			bashContext("git status --short"),
		)).To(BeTrue())
	})

	It("rejects a command outside the glob", func() {
		Expect(interaction.MatchesAutoAllow(
			[]string{"Bash(git status*)"},
			bashContext("git push origin main"),
		)).To(BeFalse())
	})

	It("rejects a different tool", func() {
		Expect(interaction.MatchesAutoAllow(
			[]string{"Read(**)"},
			bashContext("cat file"),
		)).To(BeFalse())
	})

	It("matches file paths for file tools", func() {
		input, err := json.Marshal(map[string]string{"file_path": "/repo/docs/readme.md"})
		Expect(err).NotTo(HaveOccurred())

		ctx := &hook.Context{ToolName: "Read", ToolInput: input}
		Expect(interaction.MatchesAutoAllow([]string{"Read(/repo/**)"}, ctx)).To(BeTrue())
	})

	It("never matches an empty pattern list", func() {
		Expect(interaction.MatchesAutoAllow(nil, bashContext("anything"))).To(BeFalse())
	})
})
