// Package assistant is the plugin core: it consumes events from the host
// queue, coalesces attachment bursts through the message buffer, gates them by
// permission and trigger rules, and drives the LLM tool loop that generates
// and converts documents.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/analyzer"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/buffer"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/config"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/office"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/pdfconv"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/preview"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/storage"
	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/tool"
)

const (
	// maxReentry bounds how often one logical message may be recycled through
	// the host queue. A synthesized event that somehow re-enters the buffer
	// path is dropped past this count instead of looping forever.
	maxReentry = 3

	defaultMaxToolRounds = 4
	defaultLLMMaxTokens  = 4096
	defaultTemperature   = 0.7
)

const systemPrompt = `You are an office document assistant. You create Word, Excel and PowerPoint documents, plain text and code files, and convert documents to and from PDF, using the provided tools.

Rules:
- When the user asks for a file, create it with the appropriate tool. Do not paste file content into the chat.
- Generated files are sent to the user automatically; after a tool reports success, confirm briefly.
- For office files, prefer structured JSON content as described in the tool parameters.
- When the user attached files, they are already in the workspace under the names given in the message.
- Answer in the user's language.`

// Delivery names the chat a produced file must be shipped to. It rides the
// tool execution context so the file sink knows where tool output belongs.
type Delivery struct {
	Platform string
	ChatID   string
	SenderID string
}

type deliveryKey struct{}

// WithDelivery attaches a delivery target to ctx.
func WithDelivery(ctx context.Context, d Delivery) context.Context {
	return context.WithValue(ctx, deliveryKey{}, d)
}

// DeliveryFrom extracts the delivery target, if any.
func DeliveryFrom(ctx context.Context) (Delivery, bool) {
	d, ok := ctx.Value(deliveryKey{}).(Delivery)
	return d, ok
}

// Options carries the assistant's collaborators. Store and Preview are
// optional; a nil store disables history and audit, a nil preview disables
// PDF thumbnails.
type Options struct {
	Config   *config.Config
	Queue    domain.EventQueue
	Provider domain.Provider
	Analyzer *analyzer.Analyzer
	Tools    *tool.Registry
	Store    *storage.SQLiteStore
	Preview  *preview.Generator
	// Converter, when set, lets delivery render previews for office outputs
	// by converting them to PDF first.
	Converter *pdfconv.Converter
	Logger    *slog.Logger

	// MaxToolRounds caps LLM round trips per message (default 4).
	MaxToolRounds int
}

// Assistant owns the message buffer and the processing pipeline.
type Assistant struct {
	cfg       *config.Config
	queue     domain.EventQueue
	provider  domain.Provider
	analyzer  *analyzer.Analyzer
	tools     *tool.Registry
	store     *storage.SQLiteStore
	preview   *preview.Generator
	converter *pdfconv.Converter
	buf       *buffer.MessageBuffer
	logger    *slog.Logger
	maxRounds int
}

func New(opts Options) *Assistant {
	if opts.MaxToolRounds <= 0 {
		opts.MaxToolRounds = defaultMaxToolRounds
	}
	a := &Assistant{
		cfg:       opts.Config,
		queue:     opts.Queue,
		provider:  opts.Provider,
		analyzer:  opts.Analyzer,
		tools:     opts.Tools,
		store:     opts.Store,
		preview:   opts.Preview,
		converter: opts.Converter,
		logger:    opts.Logger.With("component", "assistant"),
		maxRounds: opts.MaxToolRounds,
	}
	a.buf = buffer.New(buffer.Options{
		ObserveWindow: opts.Config.Buffer.ObserveWindow(),
		FullWindow:    opts.Config.Buffer.FullWindow(),
		DropTextOnly:  opts.Config.Buffer.DropTextOnly,
	}, opts.Logger.With("component", "buffer"))
	a.buf.OnComplete(a.onComplete)
	a.buf.OnPassthrough(a.onPassthrough)
	return a
}

// Buffer exposes the message buffer for introspection (doctor, tests).
func (a *Assistant) Buffer() *buffer.MessageBuffer { return a.buf }

// Run consumes events from the queue until ctx is cancelled or the queue
// closes. Pending buffer windows are discarded on shutdown.
func (a *Assistant) Run(ctx context.Context) {
	a.logger.Info("assistant started", "buffering", a.buf.Enabled())
	defer a.buf.Close()

	inbound := a.queue.Subscribe()
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("assistant stopping")
			return
		case ev, ok := <-inbound:
			if !ok {
				a.logger.Info("event queue closed, assistant stopping")
				return
			}
			a.handleEvent(ctx, ev)
		}
	}
}

// handleEvent is the per-event entry point. Synthesized events bypass the
// buffer so a recycled message cannot re-enter its own aggregation window.
func (a *Assistant) handleEvent(ctx context.Context, ev *domain.MessageEvent) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("event processing panic", "key", ev.Key().String(), "panic", r)
		}
	}()

	if !ev.Synthesized && a.buf.Add(ev) {
		// The buffer took ownership; it resubmits on window expiry.
		return
	}
	a.process(ctx, ev)
}

// onComplete fires when an aggregate that saw at least one file completes.
// The original event is rebuilt with the combined content and recycled
// through the host queue so downstream processing sees one message.
func (a *Assistant) onComplete(agg *buffer.Aggregate) {
	a.recycle(agg.Event, synthesize(agg), agg.Files)
}

// onPassthrough fires for observe-only aggregates. The accumulated texts are
// recycled unchanged so plain messages are never swallowed by the buffer.
func (a *Assistant) onPassthrough(agg *buffer.Aggregate) {
	text := strings.Join(agg.Texts, "\n")
	if text == "" {
		text = agg.Event.RawText
	}
	a.recycle(agg.Event, text, nil)
}

// recycle rebuilds the event with the aggregate content and feeds it back to
// the host queue. SetContent drops file segments, so the aggregated files are
// reattached afterwards.
func (a *Assistant) recycle(ev *domain.MessageEvent, content string, files []*domain.FileSegment) {
	if ev.Reentry >= maxReentry {
		a.logger.Warn("reentry limit reached, dropping message",
			"key", ev.Key().String(), "reentry", ev.Reentry)
		return
	}
	ev.SetContent(content)
	for _, f := range files {
		ev.Segments = append(ev.Segments, f)
	}
	ev.Synthesized = true
	ev.Reentry++
	if err := a.queue.Resubmit(ev); err != nil {
		a.logger.Error("resubmit failed, message lost",
			"key", ev.Key().String(), "err", err)
	}
}

// synthesize renders a completed aggregate as one message: an attachment
// header line naming each file and its size, followed by every buffered text.
func synthesize(agg *buffer.Aggregate) string {
	var b strings.Builder
	if len(agg.Files) > 0 {
		names := make([]string, 0, len(agg.Files))
		for _, f := range agg.Files {
			if f.Size > 0 {
				names = append(names, fmt.Sprintf("%s (%s)", f.Name, office.FormatFileSize(f.Size)))
			} else {
				names = append(names, f.Name)
			}
		}
		fmt.Fprintf(&b, "[Attached files: %s]", strings.Join(names, ", "))
	}
	for _, t := range agg.Texts {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(t)
	}
	return b.String()
}

// process runs one event through the gates, the intent analysis and the tool
// loop.
func (a *Assistant) process(ctx context.Context, ev *domain.MessageEvent) {
	text := ev.PlainText()

	if !a.permitted(ev) {
		a.logger.Debug("sender not permitted", "sender", ev.SenderID)
		return
	}
	if !a.triggered(ev, text) {
		return
	}

	a.logger.Info("processing message",
		"key", ev.Key().String(), "len", len(text), "files", ev.HasFile())

	intent, err := a.analyzer.AnalyzeMessage(ctx, text)
	if err != nil {
		a.logger.Error("intent analysis failed", "key", ev.Key().String(), "err", err)
		a.reply(ev, "Sorry, I could not process that request right now.")
		return
	}
	if intent == nil && !ev.HasFile() {
		a.logger.Debug("no file intent detected", "key", ev.Key().String())
		return
	}

	a.runAgent(ctx, ev, text, intent)
}

// permitted applies the admin/whitelist gate.
func (a *Assistant) permitted(ev *domain.MessageEvent) bool {
	perm := a.cfg.Permission
	if !perm.RequireAdmin {
		return true
	}
	if ev.IsAdmin {
		return true
	}
	for _, id := range perm.WhitelistUsers {
		if id == ev.SenderID {
			return true
		}
	}
	return false
}

// triggered applies the auto-detect, mention and length gates.
func (a *Assistant) triggered(ev *domain.MessageEvent, text string) bool {
	trig := a.cfg.Trigger
	if ev.IsGroup {
		if !trig.AutoDetectInGroup {
			return false
		}
		if trig.RequireMentionInGroup && !ev.MentionsSelf() {
			return false
		}
	} else if !trig.AutoDetectInPrivate {
		return false
	}
	if len([]rune(text)) < trig.MinMessageLength && !ev.HasFile() {
		a.logger.Debug("message below minimum length", "len", len(text))
		return false
	}
	return true
}

// runAgent drives the LLM tool loop: call the model, execute requested tools,
// feed results back, stop on a plain answer or the round cap.
func (a *Assistant) runAgent(ctx context.Context, ev *domain.MessageEvent, text string, intent *analyzer.FileIntent) {
	ctx = WithDelivery(ctx, Delivery{
		Platform: ev.Platform,
		ChatID:   ev.Session,
		SenderID: ev.SenderID,
	})

	user := text
	if intent != nil {
		user += fmt.Sprintf(
			"\n\n(Detected request: a %s file named %q. %s)",
			intent.FileInfo.Type, intent.FileInfo.Filename, intent.FileInfo.Description)
	}
	messages := []domain.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: user},
	}
	toolDefs := a.tools.GetDefinitions()

	var final string
	toolRan := false
	for round := 0; round < a.maxRounds; round++ {
		start := time.Now()
		resp, err := a.provider.Chat(ctx, domain.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   defaultLLMMaxTokens,
			Temperature: defaultTemperature,
		})
		if err != nil {
			a.logger.Error("LLM call failed", "round", round, "err", err)
			break
		}
		a.logger.Debug("LLM round", "round", round,
			"tool_calls", len(resp.ToolCalls), "latency_ms", time.Since(start).Milliseconds())

		if !resp.HasToolCalls() {
			final = resp.Content
			break
		}

		messages = append(messages, domain.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, tc := range resp.ToolCalls {
			result, execErr := a.tools.Execute(ctx, tc.Name, tc.Arguments)
			if execErr != nil {
				result = fmt.Sprintf("Error executing tool %s: %s", tc.Name, execErr)
			} else {
				toolRan = true
			}
			a.audit(ctx, ev, tc.Name, execErr, result)
			messages = append(messages, domain.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: tc.ID,
				ToolName:   tc.Name,
			})
		}
	}

	if final == "" && !toolRan && intent != nil {
		final = a.fallbackGenerate(ctx, ev, intent)
	}
	if final == "" && toolRan {
		final = "Done, the file has been sent."
	}
	a.reply(ev, final)
}

// fallbackGenerate creates the analyzed file directly when the tool loop
// produced nothing, expanding a bare description into content first.
func (a *Assistant) fallbackGenerate(ctx context.Context, ev *domain.MessageEvent, intent *analyzer.FileIntent) string {
	info := intent.FileInfo
	content := info.Content
	if content == "" && info.Description != "" {
		content = a.analyzer.GenerateContent(ctx, info.Type, info.Description)
	}
	if content == "" {
		return ""
	}

	result, err := a.tools.Execute(ctx, "write_file", map[string]any{
		"filename":  info.Filename,
		"content":   content,
		"file_type": info.Type,
	})
	a.audit(ctx, ev, "write_file", err, result)
	if err != nil {
		a.logger.Error("fallback generation failed", "key", ev.Key().String(), "err", err)
		return "Sorry, generating the file failed."
	}
	a.logger.Info("fallback generation succeeded",
		"key", ev.Key().String(), "type", info.Type)
	return result
}

func (a *Assistant) reply(ev *domain.MessageEvent, text string) {
	if text == "" || !a.cfg.Trigger.ReplyToUser {
		return
	}
	a.queue.SendOutbound(domain.OutboundMessage{
		Platform: ev.Platform,
		ChatID:   ev.Session,
		Text:     text,
	})
}

// DeliverFile is the FileSink wired into every file-producing tool: it ships
// the file to the originating chat, attaches a PDF thumbnail when the preview
// tool is available, and records it in history.
func (a *Assistant) DeliverFile(ctx context.Context, path string) {
	d, ok := DeliveryFrom(ctx)
	if !ok {
		a.logger.Warn("file produced outside a delivery context", "path", path)
		return
	}

	files := []string{path}
	if png := a.previewFor(ctx, path); png != "" {
		files = append(files, png)
	}

	a.queue.SendOutbound(domain.OutboundMessage{
		Platform: d.Platform,
		ChatID:   d.ChatID,
		Files:    files,
	})

	if a.store != nil {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		_, err := a.store.RecordFile(ctx, storage.FileRecord{
			Platform:  d.Platform,
			SenderID:  d.SenderID,
			Kind:      strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
			Path:      path,
			SizeBytes: size,
			Source:    "tool",
		})
		if err != nil {
			a.logger.Warn("cannot record file history", "path", path, "err", err)
		}
	}
}

// previewFor renders a first-page thumbnail for a produced file. PDFs preview
// directly; office outputs go through a PDF conversion first when a converter
// is available. Returns "" when no preview can be made.
func (a *Assistant) previewFor(ctx context.Context, path string) string {
	if !a.cfg.Features.EnablePreview || a.preview == nil || !a.preview.Available() {
		return ""
	}

	pdfPath := path
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		if a.converter == nil || !a.converter.CanConvertToPDF(path) {
			return ""
		}
		converted, err := a.converter.ToPDF(ctx, path)
		if err != nil {
			a.logger.Debug("preview conversion failed", "path", path, "err", err)
			return ""
		}
		pdfPath = converted
	}

	png, err := a.preview.FromPDF(ctx, pdfPath)
	if err != nil {
		a.logger.Debug("preview generation failed", "path", pdfPath, "err", err)
		return ""
	}
	return png
}

func (a *Assistant) audit(ctx context.Context, ev *domain.MessageEvent, toolName string, execErr error, details string) {
	if a.store == nil {
		return
	}
	result := "ok"
	if execErr != nil {
		result = "error"
	}
	if len(details) > 500 {
		details = details[:500]
	}
	if err := a.store.LogAudit(ctx, storage.AuditEntry{
		Action:   "tool_execute",
		ToolName: toolName,
		SenderID: ev.SenderID,
		Result:   result,
		Details:  details,
	}); err != nil {
		a.logger.Warn("cannot write audit entry", "tool", toolName, "err", err)
	}
}
