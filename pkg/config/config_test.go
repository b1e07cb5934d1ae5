package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/pkg/config"
)

var _ = Describe("Config", func() {
	Describe("section getters", func() {
		It("returns non-nil sections on a nil config", func() {
			var cfg *config.Config

			Expect(cfg.GetTelegram()).NotTo(BeNil())
			Expect(cfg.GetApproval()).NotTo(BeNil())
			Expect(cfg.GetSession()).NotTo(BeNil())
			Expect(cfg.GetPoll()).NotTo(BeNil())
			Expect(cfg.GetLogging()).NotTo(BeNil())
		})

		It("returns non-nil sections on an empty config", func() {
			cfg := &config.Config{}

			Expect(cfg.GetTelegram().IsConfigured()).To(BeFalse())
			Expect(cfg.GetApproval().GetTimeout()).To(Equal(config.DefaultApprovalTimeout))
		})

		It("returns populated sections as-is", func() {
			cfg := &config.Config{
				Telegram: &config.TelegramConfig{BotToken: "token", ChatID: 42},
			}

			Expect(cfg.GetTelegram().IsConfigured()).To(BeTrue())
		})
	})

	Describe("TelegramConfig", func() {
		It("requires both token and chat id to be configured", func() {
			Expect((&config.TelegramConfig{BotToken: "token"}).IsConfigured()).To(BeFalse())
			Expect((&config.TelegramConfig{ChatID: 42}).IsConfigured()).To(BeFalse())
		})

		It("falls back to default timings", func() {
			t := &config.TelegramConfig{}

			Expect(t.GetAPIBaseURL()).To(Equal(config.DefaultAPIBaseURL))
			Expect(t.GetFetchTimeout()).To(Equal(config.DefaultFetchTimeout))
			Expect(t.GetRequestTimeout()).To(Equal(config.DefaultRequestTimeout))
		})
	})

	Describe("ApprovalConfig", func() {
		It("falls back to deny on an invalid timeout action", func() {
			a := &config.ApprovalConfig{TimeoutAction: "maybe"}

			Expect(a.GetTimeoutAction()).To(Equal(config.TimeoutActionDeny))
		})

		It("returns the configured action", func() {
			a := &config.ApprovalConfig{TimeoutAction: "wait"}

			Expect(a.GetTimeoutAction()).To(Equal(config.TimeoutActionWait))
		})
	})

	Describe("PollConfig", func() {
		It("falls back to default timings", func() {
			var p *config.PollConfig

			Expect(p.GetMinDelay()).To(Equal(config.DefaultMinDelay))
			Expect(p.GetMaxDelay()).To(Equal(config.DefaultMaxDelay))
			Expect(p.GetErrorBackoff()).To(Equal(config.DefaultErrorBackoff))
			Expect(p.GetMaxLogRecords()).To(Equal(config.DefaultMaxLogRecords))
		})

		It("treats non-positive retention as unset", func() {
			p := &config.PollConfig{MaxLogRecords: -5}

			Expect(p.GetMaxLogRecords()).To(Equal(config.DefaultMaxLogRecords))
		})
	})

	Describe("SessionConfig", func() {
		It("returns configured values", func() {
			s := &config.SessionConfig{
				HeartbeatInterval: config.Duration(2 * time.Second),
				SweepInterval:     config.Duration(30 * time.Second),
			}

			Expect(s.GetHeartbeatInterval()).To(Equal(2 * time.Second))
			Expect(s.GetSweepInterval()).To(Equal(30 * time.Second))
			Expect(s.GetLivenessThreshold()).To(Equal(config.DefaultLivenessThreshold))
			Expect(s.GetMessageMapMaxAge()).To(Equal(config.DefaultMessageMapMaxAge))
		})
	})

	Describe("LoggingConfig", func() {
		It("defaults the level and leaves the file empty", func() {
			var l *config.LoggingConfig

			Expect(l.GetLevel()).To(Equal(config.DefaultLogLevel))
			Expect(l.GetFile()).To(BeEmpty())
		})
	})
})
