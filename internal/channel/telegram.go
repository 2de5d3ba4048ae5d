// Package channel contains the platform adapters that translate between
// platform messages and the internal event model.
package channel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/provider"
)

const (
	telegramMaxMsgLen      = 4000
	telegramMaxSendRetries = 3
	telegramDownloadWait   = 60 * time.Second
)

// Telegram implements domain.Channel over the Telegram Bot API. Incoming
// documents and photos are downloaded into the workspace so the file tools
// can operate on them; outbound Files are shipped back as documents.
type Telegram struct {
	token     string
	workspace string
	allowFrom []int64 // allowed user ids, empty allows everyone
	admins    []int64 // ids listed in the config count as admins
	parseMode string
	maxBytes  int64

	bot      *tgbotapi.BotAPI
	queue    domain.EventQueue
	http     *http.Client
	logger   *slog.Logger
	stopOnce sync.Once
}

type TelegramOptions struct {
	Token     string
	Workspace string
	AllowFrom []string // user ids as strings
	ParseMode string
	MaxFileMB int
	Logger    *slog.Logger
}

func NewTelegram(opts TelegramOptions) *Telegram {
	var allowed []int64
	for _, s := range opts.AllowFrom {
		if id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			allowed = append(allowed, id)
		}
	}
	if opts.ParseMode == "" {
		opts.ParseMode = "Markdown"
	}
	if opts.MaxFileMB <= 0 {
		opts.MaxFileMB = 20
	}
	return &Telegram{
		token:     opts.Token,
		workspace: opts.Workspace,
		allowFrom: allowed,
		admins:    allowed,
		parseMode: opts.ParseMode,
		maxBytes:  int64(opts.MaxFileMB) << 20,
		http:      provider.NewHTTPClient(telegramDownloadWait),
		logger:    opts.Logger.With("component", "telegram"),
	}
}

func (t *Telegram) Name() string { return "telegram" }

// Start connects to Telegram and polls for updates until ctx is cancelled.
func (t *Telegram) Start(ctx context.Context, queue domain.EventQueue) error {
	t.queue = queue

	bot, err := tgbotapi.NewBotAPI(t.token)
	if err != nil {
		return fmt.Errorf("telegram bot init: %w", err)
	}
	t.bot = bot
	t.logger.Info("telegram bot connected",
		"username", bot.Self.UserName, "id", bot.Self.ID)

	queue.OnOutbound("telegram", t.handleOutbound)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := bot.GetUpdatesChan(u)

	t.logger.Info("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("telegram channel stopping")
			t.stopPolling()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			t.handleUpdate(update)
		}
	}
}

// Stop halts update polling. Context cancellation in Start reaches the same
// guard, so the underlying StopReceivingUpdates runs at most once.
func (t *Telegram) Stop() error {
	t.stopPolling()
	return nil
}

func (t *Telegram) stopPolling() {
	t.stopOnce.Do(func() {
		if t.bot != nil {
			t.bot.StopReceivingUpdates()
		}
	})
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}

	userID := msg.From.ID
	chatID := msg.Chat.ID

	if !t.isAllowed(userID) {
		t.logger.Warn("unauthorized telegram user",
			"user_id", userID, "username", msg.From.UserName)
		return
	}

	if msg.IsCommand() {
		t.handleCommand(chatID, msg)
		return
	}

	ev := t.buildEvent(msg)
	if len(ev.Segments) == 0 {
		return
	}

	t.logger.Info("telegram message received",
		"user_id", userID, "chat_id", chatID,
		"text_len", len(ev.RawText), "has_file", ev.HasFile())

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	_, _ = t.bot.Send(typing)

	t.queue.Publish(ev)
}

// buildEvent maps one Telegram message onto the internal event model:
// text and caption become text segments, attachments become file segments
// after download, entities become mention segments.
func (t *Telegram) buildEvent(msg *tgbotapi.Message) *domain.MessageEvent {
	ev := &domain.MessageEvent{
		Platform:  "telegram",
		SenderID:  strconv.FormatInt(msg.From.ID, 10),
		SenderNym: msg.From.UserName,
		Session:   strconv.FormatInt(msg.Chat.ID, 10),
		SelfID:    strconv.FormatInt(t.bot.Self.ID, 10),
		IsGroup:   msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
		IsAdmin:   t.isAdmin(msg.From.ID),
		Timestamp: time.Unix(int64(msg.Date), 0),
	}

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		ev.Segments = append(ev.Segments, &domain.ReplySegment{
			MessageID: strconv.Itoa(msg.ReplyToMessage.MessageID),
			Target:    strconv.FormatInt(msg.ReplyToMessage.From.ID, 10),
		})
	}

	text := msg.Text
	if text == "" {
		text = msg.Caption
	}
	for _, ent := range append(msg.Entities, msg.CaptionEntities...) {
		switch ent.Type {
		case "mention":
			// "@username" mentions only resolve for the bot itself; other
			// usernames cannot be mapped to ids without extra API calls.
			mentioned := entityText(text, ent)
			if strings.EqualFold(mentioned, "@"+t.bot.Self.UserName) {
				ev.Segments = append(ev.Segments, &domain.MentionSegment{Target: ev.SelfID})
			}
		case "text_mention":
			if ent.User != nil {
				ev.Segments = append(ev.Segments, &domain.MentionSegment{
					Target: strconv.FormatInt(ent.User.ID, 10),
				})
			}
		}
	}

	if s := strings.TrimSpace(text); s != "" {
		ev.Segments = append(ev.Segments, &domain.TextSegment{Text: s})
		ev.RawText = s
	}

	if msg.Document != nil {
		t.attachFile(ev, msg.Document.FileID, msg.Document.FileName, int64(msg.Document.FileSize))
	}
	if len(msg.Photo) > 0 {
		// Telegram sends multiple resolutions; the last one is the largest.
		photo := msg.Photo[len(msg.Photo)-1]
		name := fmt.Sprintf("photo_%s.jpg", time.Now().Format("20060102_150405"))
		t.attachFile(ev, photo.FileID, name, int64(photo.FileSize))
	}

	return ev
}

// attachFile downloads one attachment into the workspace and appends a file
// segment. Oversized or failed downloads are skipped with a log.
func (t *Telegram) attachFile(ev *domain.MessageEvent, fileID, name string, size int64) {
	if size > t.maxBytes {
		t.logger.Warn("attachment exceeds size limit, skipping",
			"name", name, "size", size, "limit", t.maxBytes)
		return
	}

	path, err := t.download(fileID, name)
	if err != nil {
		t.logger.Error("attachment download failed", "name", name, "err", err)
		return
	}
	ev.Segments = append(ev.Segments, &domain.FileSegment{
		Name: name,
		Path: path,
		Size: size,
	})
}

func (t *Telegram) download(fileID, name string) (string, error) {
	url, err := t.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file url: %w", err)
	}
	return t.fetch(url, name)
}

// fetch streams url into a sanitized, collision-free workspace path. The
// declared size from Telegram is advisory, so the actual byte count is
// checked again here.
func (t *Telegram) fetch(url, name string) (string, error) {
	resp, err := t.http.Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(t.workspace, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	path := office.UniquePath(t.workspace, office.Sanitize(name))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	n, err := io.Copy(f, io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if n > t.maxBytes {
		os.Remove(path)
		return "", fmt.Errorf("file exceeds the %d byte limit", t.maxBytes)
	}

	t.logger.Debug("attachment downloaded", "name", name, "path", path)
	return path, nil
}

func (t *Telegram) handleOutbound(msg domain.OutboundMessage) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		t.logger.Error("invalid chat id for telegram outbound",
			"chat_id", msg.ChatID, "err", err)
		return
	}

	if msg.Text != "" {
		t.sendMessage(chatID, msg.Text)
	}
	for _, path := range msg.Files {
		t.sendDocument(chatID, path)
	}
}

func (t *Telegram) sendDocument(chatID int64, path string) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := t.bot.Send(doc); err != nil {
		t.logger.Error("telegram document send failed",
			"path", path, "err", err)
		t.sendMessage(chatID, fmt.Sprintf("Could not send file %s.", filepath.Base(path)))
		return
	}
	t.logger.Info("document sent", "chat_id", chatID, "file", filepath.Base(path))
}

func (t *Telegram) handleCommand(chatID int64, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.sendMessage(chatID, "Hello! I generate and convert office documents.\n\nAsk me for a Word, Excel or PowerPoint file, send me a document to convert to PDF, or send a PDF to extract.\n\nCommands:\n/help - usage\n/status - bot status")
	case "help":
		t.sendMessage(chatID, "Examples:\n- \"Create a Word report about Q3 sales\"\n- \"Make an Excel sheet with this data: ...\"\n- Send a .docx and say \"convert to pdf\"\n- Send a PDF and say \"extract to excel\"\n\nGenerated files are sent back here automatically.")
	case "status":
		t.sendMessage(chatID, fmt.Sprintf("Online.\nBot: @%s\nYour ID: %d\nChat ID: %d",
			t.bot.Self.UserName, msg.From.ID, chatID))
	default:
		t.sendMessage(chatID, "Unknown command. Type /help for usage.")
	}
}

func (t *Telegram) isAllowed(userID int64) bool {
	if len(t.allowFrom) == 0 {
		return true
	}
	for _, id := range t.allowFrom {
		if id == userID {
			return true
		}
	}
	return false
}

// isAdmin reports whether the user is explicitly listed in the allow list.
// With an empty list everyone may talk to the bot but nobody is an admin.
func (t *Telegram) isAdmin(userID int64) bool {
	for _, id := range t.admins {
		if id == userID {
			return true
		}
	}
	return false
}

func (t *Telegram) sendMessage(chatID int64, text string) {
	// Telegram caps messages at 4096 chars; split on line boundaries.
	for len(text) > 0 {
		chunk := text
		if len(chunk) > telegramMaxMsgLen {
			cutAt := strings.LastIndex(chunk[:telegramMaxMsgLen], "\n")
			if cutAt < telegramMaxMsgLen/2 {
				cutAt = telegramMaxMsgLen
			}
			chunk = text[:cutAt]
			text = text[cutAt:]
		} else {
			text = ""
		}
		t.sendChunk(chatID, chunk)
	}
}

// sendChunk sends one message with retry: parse mode first, plain text on
// parse errors, backoff on rate limits and transient failures.
func (t *Telegram) sendChunk(chatID int64, text string) {
	for attempt := 0; attempt <= telegramMaxSendRetries; attempt++ {
		msg := tgbotapi.NewMessage(chatID, text)
		if attempt == 0 && t.parseMode != "" {
			msg.ParseMode = t.parseMode
		}

		_, err := t.bot.Send(msg)
		if err == nil {
			return
		}
		errStr := err.Error()

		if strings.Contains(errStr, "Too Many Requests") || strings.Contains(errStr, "429") {
			retryAfter := time.Duration(attempt+1) * 3 * time.Second
			t.logger.Warn("telegram rate limited, backing off",
				"retry_after", retryAfter, "attempt", attempt+1)
			time.Sleep(retryAfter)
			continue
		}

		if attempt == 0 && msg.ParseMode != "" &&
			strings.Contains(errStr, "can't parse entities") {
			t.logger.Warn("telegram markdown parse error, retrying as plain text", "err", err)
			plain := tgbotapi.NewMessage(chatID, text)
			if _, err2 := t.bot.Send(plain); err2 == nil {
				return
			}
		}

		if attempt < telegramMaxSendRetries {
			backoff := time.Duration(attempt+1) * time.Second
			t.logger.Warn("telegram send error, retrying", "err", err, "backoff", backoff)
			time.Sleep(backoff)
			continue
		}
		t.logger.Error("telegram send failed after retries",
			"err", err, "attempts", telegramMaxSendRetries+1)
	}
}

// entityText slices the UTF-16 range an entity refers to. Telegram offsets
// count UTF-16 code units, not bytes.
func entityText(text string, ent tgbotapi.MessageEntity) string {
	runes := []rune(text)
	var b strings.Builder
	pos := 0
	for _, r := range runes {
		units := 1
		if r > 0xFFFF {
			units = 2
		}
		if pos >= ent.Offset && pos < ent.Offset+ent.Length {
			b.WriteRune(r)
		}
		pos += units
		if pos >= ent.Offset+ent.Length {
			break
		}
	}
	return b.String()
}

var _ domain.Channel = (*Telegram)(nil)
