package telegram_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/smykla-skalski/telegate/internal/telegram"
	"github.com/smykla-skalski/telegate/pkg/config"
)

// fakeBotAPI records the last Bot API call and replays a canned envelope.
type fakeBotAPI struct {
	server *httptest.Server

	lastPath string
	lastBody map[string]any

	response string
}

func newFakeBotAPI(response string) *fakeBotAPI {
	f := &fakeBotAPI{response: response}

	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.lastPath = r.URL.Path

		body, err := io.ReadAll(r.Body)
		if err == nil && len(body) > 0 {
			_ = json.Unmarshal(body, &f.lastBody)
		}

		_, _ = w.Write([]byte(f.response))
	}))

	return f
}

func (f *fakeBotAPI) client() *telegram.Client {
	cfg := &config.TelegramConfig{
		BotToken:   "test-token",
		ChatID:     42,
		APIBaseURL: f.server.URL,
	}

	client, err := telegram.NewClient(cfg)
	Expect(err).NotTo(HaveOccurred())

	return client
}

var _ = Describe("Client", func() {
	var fake *fakeBotAPI

	AfterEach(func() {
		if fake != nil {
			fake.server.Close()
			fake = nil
		}
	})

	Describe("NewClient", func() {
		It("refuses to build without credentials", func() {
			_, err := telegram.NewClient(&config.TelegramConfig{BotToken: "token"})
			Expect(err).To(MatchError(telegram.ErrNotConfigured))

			_, err = telegram.NewClient(&config.TelegramConfig{ChatID: 42})
			Expect(err).To(MatchError(telegram.ErrNotConfigured))
		})
	})

	Describe("GetUpdates", func() {
		It("decodes updates and passes the offset", func() {
			fake = newFakeBotAPI(`{
				"ok": true,
				"result": [
					{"update_id": 7, "message": {"message_id": 1, "text": "yes", "chat": {"id": 42}}},
					{"update_id": 8, "callback_query": {"id": "cb-1", "data": "apr|abc|approve"}}
				]
			}`)

			updates, err := fake.client().GetUpdates(context.Background(), 7, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(updates).To(HaveLen(2))
			Expect(updates[0].UpdateID).To(Equal(int64(7)))
			Expect(updates[0].Text()).To(Equal("yes"))
			Expect(updates[1].CallbackData()).To(Equal("apr|abc|approve"))

			Expect(fake.lastPath).To(Equal("/bottest-token/getUpdates"))
			Expect(fake.lastBody["offset"]).To(BeEquivalentTo(7))
			Expect(fake.lastBody["timeout"]).To(BeEquivalentTo(1))
		})

		It("omits the offset on the first fetch", func() {
			fake = newFakeBotAPI(`{"ok": true, "result": []}`)

			_, err := fake.client().GetUpdates(context.Background(), 0, time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.lastBody).NotTo(HaveKey("offset"))
		})
	})

	Describe("SendMessage", func() {
		It("returns the sent message", func() {
			fake = newFakeBotAPI(`{
				"ok": true,
				"result": {"message_id": 99, "chat": {"id": 42}, "text": "sent"}
			}`)

			msg, err := fake.client().SendMessage(context.Background(), telegram.SendMessageRequest{
				ChatID: 42,
				Text:   "⚠️ Permission required",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.MessageID).To(Equal(int64(99)))

			Expect(fake.lastPath).To(Equal("/bottest-token/sendMessage"))
			Expect(fake.lastBody["text"]).To(Equal("⚠️ Permission required"))
		})
	})

	Describe("EditMessageText", func() {
		It("targets the chat and message", func() {
			fake = newFakeBotAPI(`{"ok": true, "result": {}}`)

			err := fake.client().EditMessageText(context.Background(), 42, 99, "✅ Approved")
			Expect(err).NotTo(HaveOccurred())

			Expect(fake.lastPath).To(Equal("/bottest-token/editMessageText"))
			Expect(fake.lastBody["chat_id"]).To(BeEquivalentTo(42))
			Expect(fake.lastBody["message_id"]).To(BeEquivalentTo(99))
		})
	})

	Describe("AnswerCallbackQuery", func() {
		It("acknowledges the pressed button", func() {
			fake = newFakeBotAPI(`{"ok": true, "result": true}`)

			err := fake.client().AnswerCallbackQuery(context.Background(), "cb-1", "approved")
			Expect(err).NotTo(HaveOccurred())

			Expect(fake.lastPath).To(Equal("/bottest-token/answerCallbackQuery"))
			Expect(fake.lastBody["callback_query_id"]).To(Equal("cb-1"))
		})
	})

	Describe("API failures", func() {
		It("surfaces ok=false with the description", func() {
			fake = newFakeBotAPI(`{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`)

			_, err := fake.client().SendMessage(context.Background(), telegram.SendMessageRequest{
				ChatID: 42,
				Text:   "hello",
			})
			Expect(err).To(MatchError(telegram.ErrAPIFailure))
			Expect(err.Error()).To(ContainSubstring("chat not found"))
		})
	})
})

var _ = Describe("Update", func() {
	It("resolves the chat id from either shape", func() {
		byMessage := telegram.Update{
			Message: &telegram.Message{Chat: telegram.Chat{ID: 42}},
		}
		byCallback := telegram.Update{
			CallbackQuery: &telegram.CallbackQuery{
				Message: &telegram.Message{Chat: telegram.Chat{ID: 43}},
			},
		}
		empty := telegram.Update{}

		Expect(byMessage.ChatID()).To(Equal(int64(42)))
		Expect(byCallback.ChatID()).To(Equal(int64(43)))
		Expect(empty.ChatID()).To(BeZero())
	})

	It("detects structured replies", func() {
		reply := telegram.Update{
			Message: &telegram.Message{
				Text:           "yes",
				ReplyToMessage: &telegram.Message{MessageID: 7},
			},
		}

		Expect(reply.IsReplyTo(7)).To(BeTrue())
		Expect(reply.IsReplyTo(8)).To(BeFalse())
		Expect((&telegram.Update{}).IsReplyTo(7)).To(BeFalse())
	})
})
