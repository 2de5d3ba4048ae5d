package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Clhikari/astrbot-plugin-office-assistant/internal/domain"
)

// CLI implements domain.Channel for interactive terminal use. Besides plain
// text it understands "/attach <path>" which publishes a file event, so the
// whole buffer-and-generate pipeline can be exercised without a bot token.
type CLI struct {
	queue  domain.EventQueue
	logger *slog.Logger
	in     io.Reader
	out    io.Writer
}

type CLIOptions struct {
	Logger *slog.Logger
	In     io.Reader
	Out    io.Writer
}

func NewCLI(opts CLIOptions) *CLI {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	return &CLI{
		logger: opts.Logger.With("component", "cli"),
		in:     opts.In,
		out:    opts.Out,
	}
}

func (c *CLI) Name() string { return "cli" }

// Start runs the REPL and blocks until context cancellation or EOF.
func (c *CLI) Start(ctx context.Context, queue domain.EventQueue) error {
	c.queue = queue

	queue.OnOutbound("cli", func(msg domain.OutboundMessage) {
		if msg.Text != "" {
			fmt.Fprintf(c.out, "\n--- assistant ---\n%s\n-----------------\n", msg.Text)
		}
		for _, f := range msg.Files {
			fmt.Fprintf(c.out, "[file produced] %s\n", f)
		}
		fmt.Fprint(c.out, "You> ")
	})

	fmt.Fprintln(c.out, "Office assistant CLI. Type a request, /attach <path> to add a file, /quit to exit.")
	fmt.Fprint(c.out, "You> ")

	scanner := bufio.NewScanner(c.in)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			fmt.Fprint(c.out, "You> ")
			continue
		case line == "/quit" || line == "/exit" || line == "/q":
			c.logger.Info("user requested quit")
			return nil
		case strings.HasPrefix(line, "/attach "):
			c.publishFile(strings.TrimSpace(strings.TrimPrefix(line, "/attach ")))
		default:
			c.publish(&domain.TextSegment{Text: line}, line)
		}
	}
}

// Stop is a no-op; the REPL exits when Start returns.
func (c *CLI) Stop() error { return nil }

func (c *CLI) publishFile(path string) {
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(c.out, "cannot attach %s: %v\nYou> ", path, err)
		return
	}
	c.publish(&domain.FileSegment{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}, "")
}

func (c *CLI) publish(seg domain.Segment, raw string) {
	c.queue.Publish(&domain.MessageEvent{
		Platform:  "cli",
		SenderID:  "user",
		Session:   "direct",
		IsAdmin:   true,
		Segments:  []domain.Segment{seg},
		RawText:   raw,
		Timestamp: time.Now(),
	})
}

var _ domain.Channel = (*CLI)(nil)
