// Package telegram provides a minimal Telegram Bot API client carrying only
// what message routing depends on.
package telegram

import "encoding/json"

// Update is one inbound item from getUpdates. UpdateID is the
// source-assigned, monotonically increasing sequence id the claiming core
// deduplicates on.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
}

// Message is an inbound or outbound chat message.
type Message struct {
	MessageID      int64    `json:"message_id"`
	Text           string   `json:"text,omitempty"`
	Chat           Chat     `json:"chat"`
	From           *User    `json:"from,omitempty"`
	ReplyToMessage *Message `json:"reply_to_message,omitempty"`
	Date           int64    `json:"date,omitempty"`
}

// Chat identifies the conversation.
type Chat struct {
	ID int64 `json:"id"`
}

// User identifies the sender.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot,omitempty"`
}

// CallbackQuery is an inline-keyboard button press. Data carries the
// structured verdict tagged with the interaction id.
type CallbackQuery struct {
	ID      string   `json:"id"`
	Data    string   `json:"data,omitempty"`
	Message *Message `json:"message,omitempty"`
	From    *User    `json:"from,omitempty"`
}

// InlineKeyboardButton is one button in an inline keyboard row.
type InlineKeyboardButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data,omitempty"`
}

// InlineKeyboardMarkup is the inline keyboard attached to a message.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// SendMessageRequest is the payload for sendMessage.
type SendMessageRequest struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// ChatID returns the chat the update arrived in, or 0 when unknown.
func (u *Update) ChatID() int64 {
	switch {
	case u.Message != nil:
		return u.Message.Chat.ID
	case u.CallbackQuery != nil && u.CallbackQuery.Message != nil:
		return u.CallbackQuery.Message.Chat.ID
	default:
		return 0
	}
}

// Text returns the free-text content of the update, or empty for
// callback-style updates.
func (u *Update) Text() string {
	if u.Message != nil {
		return u.Message.Text
	}

	return ""
}

// CallbackData returns the callback payload, or empty for plain messages.
func (u *Update) CallbackData() string {
	if u.CallbackQuery != nil {
		return u.CallbackQuery.Data
	}

	return ""
}

// IsReplyTo returns true when the update is a structured reply to the given
// outbound message id.
func (u *Update) IsReplyTo(messageID int64) bool {
	return u.Message != nil &&
		u.Message.ReplyToMessage != nil &&
		u.Message.ReplyToMessage.MessageID == messageID
}

// RepliedToID returns the id of the message this update replies to, or 0
// when the update is not a structured reply.
func (u *Update) RepliedToID() int64 {
	if u.Message != nil && u.Message.ReplyToMessage != nil {
		return u.Message.ReplyToMessage.MessageID
	}

	return 0
}
