// flowsync - terminal client for the My Flow streaming chat service.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/myflowhq/flowsync/internal/chat"
	"github.com/myflowhq/flowsync/internal/config"
	"github.com/myflowhq/flowsync/internal/domain"
	"github.com/myflowhq/flowsync/internal/flowapi"
	"github.com/myflowhq/flowsync/internal/flowcache"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Rebuild the logger now that the configured level is known. Logs go to
	// stderr so stdout stays clean for the conversation.
	logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Level(),
	}))
	slog.SetDefault(logger)

	contextID := cfg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
		slog.Info("No context id configured, generated one", "context_id", contextID)
	}

	slog.Info("Starting flowsync", "api_url", cfg.APIBaseURL, "context_id", contextID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize collaborators.
	api := flowapi.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, logger)
	cache := flowcache.New(cfg.CacheTTL, api.ListFlows, logger)
	cache.StartSweeper(ctx, time.Minute)

	printer := newConsolePrinter(os.Stdout)

	session, err := chat.New(chat.Config{
		BaseURL:   cfg.APIBaseURL,
		ContextID: contextID,
	}, chat.Deps{
		Cache:    cache,
		Deleter:  api,
		Notifier: printer,
		Logger:   logger,
	})
	if err != nil {
		slog.Error("Failed to create chat session", "error", err)
		os.Exit(1)
	}
	defer session.Close()

	printer.banner(contextID)
	runREPL(ctx, session, cache, printer)

	slog.Info("Shutting down")
}

func runREPL(ctx context.Context, session *chat.Session, cache *flowcache.Store, printer *consolePrinter) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := handleLine(ctx, line, session, cache, printer); quit {
				return
			}
		}
	}
}

func handleLine(ctx context.Context, line string, session *chat.Session, cache *flowcache.Store, printer *consolePrinter) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	switch {
	case line == "/quit" || line == "/exit":
		return true
	case line == "/accept":
		if err := session.AcceptExtractions(); err != nil {
			printer.errorf("accept failed: %v", err)
		} else {
			printer.infof("pending flows accepted")
		}
	case line == "/dismiss":
		if err := session.DismissExtractions(ctx); err != nil {
			printer.errorf("dismiss failed: %v", err)
		} else {
			printer.infof("pending flows dismissed")
		}
	case strings.HasPrefix(line, "/switch"):
		target := strings.TrimSpace(strings.TrimPrefix(line, "/switch"))
		if target == "" {
			printer.errorf("usage: /switch <context-id>")
			break
		}
		session.SwitchContext(target)
		printer.infof("switched to context %s", target)
	case line == "/flows":
		contextID := session.Snapshot().ContextID
		flows, ok := cache.GetList(contextID)
		if !ok {
			printer.infof("no cached flows for context %s", contextID)
			break
		}
		printer.flowList(flows)
	case line == "/help":
		printer.help()
	case strings.HasPrefix(line, "/"):
		printer.errorf("unknown command %s (try /help)", line)
	default:
		if err := session.SendMessage(line); err != nil {
			printer.errorf("%v", err)
		}
	}
	return false
}

// consolePrinter renders the conversation. Engine callbacks arrive on the
// session's reader goroutine while command feedback prints from the REPL
// loop, so all writes are serialized with a mutex.
type consolePrinter struct {
	mu      sync.Mutex
	out     io.Writer
	inReply bool
}

func newConsolePrinter(out io.Writer) *consolePrinter {
	return &consolePrinter{out: out}
}

func (p *consolePrinter) OnAssistantToken(_ string, token string, complete bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if token != "" {
		if !p.inReply {
			fmt.Fprint(p.out, "ai> ")
			p.inReply = true
		}
		fmt.Fprint(p.out, token)
	}
	if complete && p.inReply {
		fmt.Fprintln(p.out)
		p.inReply = false
	}
}

func (p *consolePrinter) OnFlowsExtracted(flows []domain.Flow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakReplyLocked()
	fmt.Fprintf(p.out, "-- %d flow(s) extracted from this conversation:\n", len(flows))
	p.flowLinesLocked(flows)
	fmt.Fprintln(p.out, "-- /accept to keep them, /dismiss to discard")
}

func (p *consolePrinter) OnToolExecuted(name string, result chat.ToolResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakReplyLocked()
	if result.Success {
		msg := result.Message
		if msg == "" {
			msg = "ok"
		}
		fmt.Fprintf(p.out, "-- tool %s: %s\n", name, msg)
		return
	}
	reason := result.Error
	if reason == "" {
		reason = result.Message
	}
	fmt.Fprintf(p.out, "-- tool %s failed: %s\n", name, reason)
}

func (p *consolePrinter) OnConversationUpdated(conversationID string) {
	slog.Debug("Conversation updated", "conversation_id", conversationID)
}

func (p *consolePrinter) OnError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakReplyLocked()
	fmt.Fprintf(p.out, "-- error: %v\n", err)
}

func (p *consolePrinter) banner(contextID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "flowsync connected to context %s\n", contextID)
	fmt.Fprintln(p.out, "type a message and press enter; /help lists commands")
}

func (p *consolePrinter) help() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, "/accept              accept the pending extracted flows")
	fmt.Fprintln(p.out, "/dismiss             dismiss the pending extracted flows")
	fmt.Fprintln(p.out, "/flows               show the cached flow list for this context")
	fmt.Fprintln(p.out, "/switch <context-id> switch to another context")
	fmt.Fprintln(p.out, "/quit                exit")
}

func (p *consolePrinter) flowList(flows []domain.Flow) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(flows) == 0 {
		fmt.Fprintln(p.out, "-- no flows")
		return
	}
	fmt.Fprintf(p.out, "-- %d flow(s):\n", len(flows))
	p.flowLinesLocked(flows)
}

func (p *consolePrinter) infof(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakReplyLocked()
	fmt.Fprintf(p.out, "-- "+format+"\n", args...)
}

func (p *consolePrinter) errorf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.breakReplyLocked()
	fmt.Fprintf(p.out, "-- error: "+format+"\n", args...)
}

func (p *consolePrinter) flowLinesLocked(flows []domain.Flow) {
	now := time.Now()
	for _, f := range flows {
		marker := " "
		if f.Overdue(now) {
			marker = "!"
		}
		fmt.Fprintf(p.out, " %s [%s] %s\n", marker, f.Priority, f.Title)
	}
}

// breakReplyLocked ends a partially printed assistant line so notices start
// on their own line.
func (p *consolePrinter) breakReplyLocked() {
	if p.inReply {
		fmt.Fprintln(p.out)
		p.inReply = false
	}
}
