// Package telegram wraps the two Bot API calls the claim flows depend on,
// getChatMember and getChatAdministrators, plus the one-shot welcome message
// sent to freshly registered users.
package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Client struct {
	bot         *tgbotapi.BotAPI
	botUsername string
}

func NewClient(botToken, botUsername string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bot: %w", err)
	}
	return &Client{
		bot:         bot,
		botUsername: strings.TrimPrefix(botUsername, "@"),
	}, nil
}

// IsChatMember reports whether userID belongs to the chat. Creator, admin and
// restricted statuses all count as membership.
func (c *Client) IsChatMember(chat string, userID int64) (bool, error) {
	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: normalizeChat(chat),
			UserID:             userID,
		},
	})
	if err != nil {
		return false, fmt.Errorf("getChatMember: %w", err)
	}

	switch member.Status {
	case "member", "administrator", "creator", "restricted":
		return true, nil
	}
	return false, nil
}

// IsBotAdmin reports whether this bot is an administrator of the chat, i.e.
// whether membership checks against it can be trusted at all.
func (c *Client) IsBotAdmin(chat string) (bool, error) {
	admins, err := c.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{
			SuperGroupUsername: normalizeChat(chat),
		},
	})
	if err != nil {
		return false, fmt.Errorf("getChatAdministrators: %w", err)
	}

	for _, admin := range admins {
		if admin.User != nil && admin.User.IsBot && admin.User.UserName == c.botUsername {
			return true, nil
		}
	}
	return false, nil
}

type WelcomeButton struct {
	Text string `mapstructure:"text"`
	URL  string `mapstructure:"url"`
}

type WelcomeMessage struct {
	Text    string          `mapstructure:"text"`
	Photo   string          `mapstructure:"photo"`
	Buttons []WelcomeButton `mapstructure:"buttons"`
}

// SendWelcome delivers the welcome message to a user's private chat.
func (c *Client) SendWelcome(userID int64, msg WelcomeMessage) error {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, b := range msg.Buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL),
		))
	}

	if msg.Photo != "" {
		photo := tgbotapi.NewPhoto(userID, tgbotapi.FileURL(msg.Photo))
		photo.Caption = msg.Text
		if len(rows) > 0 {
			photo.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
		}
		_, err := c.bot.Send(photo)
		return err
	}

	text := tgbotapi.NewMessage(userID, msg.Text)
	if len(rows) > 0 {
		text.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	_, err := c.bot.Send(text)
	return err
}

// ChatFromURL extracts the @username form from a t.me link so task URLs can
// be checked for membership.
func ChatFromURL(url string) (string, error) {
	trimmed := strings.TrimSuffix(url, "/")
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/"} {
		if strings.HasPrefix(trimmed, prefix) {
			name := strings.TrimPrefix(trimmed, prefix)
			if name == "" || strings.ContainsAny(name, "/?+") {
				return "", fmt.Errorf("unsupported chat url %q", url)
			}
			return "@" + name, nil
		}
	}
	if strings.HasPrefix(trimmed, "@") {
		return trimmed, nil
	}
	return "", fmt.Errorf("unsupported chat url %q", url)
}

func normalizeChat(chat string) string {
	if strings.HasPrefix(chat, "@") {
		return chat
	}
	return "@" + chat
}
