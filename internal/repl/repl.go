// Package repl is a line-oriented console over a chat controller
package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"RagChat/internal/chat"
	"RagChat/internal/session"
)

var errQuit = errors.New("quit")

// REPL reads commands and messages line by line
type REPL struct {
	ctrl     *chat.Controller
	in       io.Reader
	out      io.Writer
	logger   *slog.Logger
	tenants  []string
	entities []string
	models   func(ctx context.Context) ([]string, error)
	tools    func() []string
	banner   string

	cyan   *color.Color
	green  *color.Color
	yellow *color.Color
	red    *color.Color
	faint  *color.Color
}

// Option configures a REPL
type Option func(*REPL)

// WithCatalog restricts /start to the given tenants and entities
func WithCatalog(tenants, entities []string) Option {
	return func(r *REPL) {
		r.tenants = tenants
		r.entities = entities
	}
}

// WithModels enables /models
func WithModels(list func(ctx context.Context) ([]string, error)) Option {
	return func(r *REPL) {
		r.models = list
	}
}

// WithTools enables /tools
func WithTools(list func() []string) Option {
	return func(r *REPL) {
		r.tools = list
	}
}

// WithBanner sets the line printed under the title
func WithBanner(banner string) Option {
	return func(r *REPL) {
		r.banner = banner
	}
}

// WithLogger sets the logger for command failures
func WithLogger(logger *slog.Logger) Option {
	return func(r *REPL) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a REPL over ctrl
func New(ctrl *chat.Controller, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		ctrl:   ctrl,
		in:     in,
		out:    out,
		logger: slog.Default(),
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow),
		red:    color.New(color.FgRed),
		faint:  color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "repl")
	return r
}

// Run processes input until EOF, /quit or ctx is done
func (r *REPL) Run(ctx context.Context) error {
	r.cyan.Fprintln(r.out, "=== RAG Chat ===")
	if r.banner != "" {
		fmt.Fprintln(r.out, r.banner)
	}
	fmt.Fprintln(r.out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(r.out)

	scanner := bufio.NewScanner(r.in)
	for {
		if ctx.Err() != nil {
			return nil
		}
		r.prompt()
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		var err error
		if strings.HasPrefix(input, "/") {
			err = r.handleCommand(ctx, input)
		} else {
			err = r.send(ctx, input)
		}
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			r.red.Fprintf(r.out, "Error: %v\n", err)
			r.logger.Warn("command failed", "input", input, "error", err)
		}
	}

	fmt.Fprintln(r.out, "Goodbye!")
	return scanner.Err()
}

func (r *REPL) prompt() {
	label := "no chat"
	if snap := r.ctrl.Snapshot(); snap.Active != nil {
		label = snap.Active.Title
	}
	r.faint.Fprintf(r.out, "[%s] ", label)
	fmt.Fprint(r.out, "You: ")
}

func (r *REPL) handleCommand(ctx context.Context, cmd string) error {
	parts := strings.Fields(cmd)

	switch parts[0] {
	case "/quit", "/exit":
		return errQuit

	case "/new":
		conv, err := r.ctrl.NewChat()
		if err != nil {
			return err
		}
		r.green.Fprintf(r.out, "Started %s\n", conv.Title)
		return nil

	case "/start":
		if len(parts) < 4 {
			return fmt.Errorf("usage: /start <tenant> <entity> <message>")
		}
		tenant, entity := parts[1], parts[2]
		if len(r.tenants) > 0 && !slices.Contains(r.tenants, tenant) {
			return fmt.Errorf("unknown tenant %q (see /tenants)", tenant)
		}
		if len(r.entities) > 0 && !slices.Contains(r.entities, entity) {
			return fmt.Errorf("unknown entity %q (see /tenants)", entity)
		}
		message := strings.Join(parts[3:], " ")
		conv, reply, err := r.ctrl.StartNewChat(ctx, tenant, entity, message)
		if err != nil {
			return err
		}
		r.green.Fprintf(r.out, "Started %q for %s/%s\n", conv.Title, tenant, entity)
		return r.await(ctx, reply)

	case "/list":
		r.list()
		return nil

	case "/select":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /select <id|#>")
		}
		id, err := r.resolve(parts[1])
		if err != nil {
			return err
		}
		r.ctrl.Select(id)
		r.show()
		return nil

	case "/delete":
		if len(parts) < 2 {
			return fmt.Errorf("usage: /delete <id|#>")
		}
		id, err := r.resolve(parts[1])
		if err != nil {
			return err
		}
		if _, err := r.ctrl.Delete(id); err != nil {
			return err
		}
		r.yellow.Fprintln(r.out, "Deleted conversation")
		return nil

	case "/rename":
		if len(parts) < 3 {
			return fmt.Errorf("usage: /rename <id|#> <title>")
		}
		id, err := r.resolve(parts[1])
		if err != nil {
			return err
		}
		title := strings.Join(parts[2:], " ")
		if _, err := r.ctrl.Rename(id, title); err != nil {
			return err
		}
		r.green.Fprintf(r.out, "Renamed to %q\n", title)
		return nil

	case "/show":
		r.show()
		return nil

	case "/tenants":
		fmt.Fprintf(r.out, "Tenants:  %s\n", strings.Join(r.tenants, ", "))
		fmt.Fprintf(r.out, "Entities: %s\n", strings.Join(r.entities, ", "))
		return nil

	case "/models":
		if r.models == nil {
			return fmt.Errorf("model listing is not available")
		}
		models, err := r.models(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Available models:")
		for i, m := range models {
			fmt.Fprintf(r.out, "%d. %s\n", i+1, m)
		}
		return nil

	case "/tools":
		if r.tools == nil {
			return fmt.Errorf("no MCP servers are connected")
		}
		tools := r.tools()
		if len(tools) == 0 {
			fmt.Fprintln(r.out, "No MCP tools available.")
			return nil
		}
		fmt.Fprintln(r.out, "Available MCP tools:")
		for i, t := range tools {
			fmt.Fprintf(r.out, "%d. %s\n", i+1, t)
		}
		return nil

	case "/help":
		r.help()
		return nil

	default:
		return fmt.Errorf("unknown command %s (see /help)", parts[0])
	}
}

func (r *REPL) help() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  /new                              - Start an empty chat")
	fmt.Fprintln(r.out, "  /start <tenant> <entity> <message> - Start a chat about an entity's documents")
	fmt.Fprintln(r.out, "  /list                             - List conversations, newest first")
	fmt.Fprintln(r.out, "  /select <id|#>                    - Switch to a conversation")
	fmt.Fprintln(r.out, "  /delete <id|#>                    - Delete a conversation")
	fmt.Fprintln(r.out, "  /rename <id|#> <title>            - Rename a conversation")
	fmt.Fprintln(r.out, "  /show                             - Show the active conversation")
	fmt.Fprintln(r.out, "  /tenants                          - List tenants and entities")
	if r.models != nil {
		fmt.Fprintln(r.out, "  /models                           - List backend models")
	}
	if r.tools != nil {
		fmt.Fprintln(r.out, "  /tools                            - List document tools")
	}
	fmt.Fprintln(r.out, "  /quit, /exit                      - Exit")
	fmt.Fprintln(r.out, "Anything else is sent to the active conversation.")
}

func (r *REPL) send(ctx context.Context, text string) error {
	reply, err := r.ctrl.SendToActive(ctx, text)
	if errors.Is(err, chat.ErrNoActiveConversation) {
		return fmt.Errorf("no active conversation, use /new or /start first")
	}
	if err != nil {
		return err
	}
	return r.await(ctx, reply)
}

func (r *REPL) await(ctx context.Context, reply *chat.Reply) error {
	if r.ctrl.Busy() {
		r.faint.Fprintln(r.out, "thinking...")
	}
	if err := reply.Wait(ctx); err != nil && ctx.Err() != nil {
		return err
	}
	msg, ok := reply.Message()
	if !ok {
		if err := reply.Err(); err != nil {
			return err
		}
		return nil
	}
	r.printMessage(msg)
	fmt.Fprintln(r.out)
	return nil
}

func (r *REPL) printMessage(msg session.Message) {
	switch {
	case msg.Role == session.RoleUser:
		r.cyan.Fprint(r.out, "You: ")
		fmt.Fprintln(r.out, msg.Content)
	case msg.Kind == session.KindError:
		r.red.Fprintln(r.out, "Bot: "+msg.Content)
	default:
		r.green.Fprint(r.out, "Bot: ")
		fmt.Fprintln(r.out, msg.Content)
	}
}

func (r *REPL) list() {
	snap := r.ctrl.Snapshot()
	if len(snap.Conversations) == 0 {
		fmt.Fprintln(r.out, "No conversations.")
		return
	}
	for i, c := range snap.Conversations {
		marker := " "
		if c.Active {
			marker = "*"
		}
		line := fmt.Sprintf("%s %d. %s", marker, i+1, c.Title)
		if c.Active {
			r.green.Fprint(r.out, line)
		} else {
			fmt.Fprint(r.out, line)
		}
		if s, ok := c.Scope.(session.Scoped); ok {
			r.faint.Fprintf(r.out, " [%s/%s]", s.Tenant, s.Entity)
		}
		fmt.Fprintln(r.out)
		if c.LastMessage != "" {
			r.faint.Fprintf(r.out, "     %s  %s\n", c.LastMessage, c.Timestamp.Format(time.Kitchen))
		}
	}
}

func (r *REPL) show() {
	snap := r.ctrl.Snapshot()
	if snap.Active == nil {
		fmt.Fprintln(r.out, "No active conversation.")
		return
	}
	r.cyan.Fprintf(r.out, "--- %s ---\n", snap.Active.Title)
	for _, msg := range snap.Active.Messages {
		r.printMessage(msg)
	}
	if snap.Busy {
		r.faint.Fprintln(r.out, "thinking...")
	}
}

// resolve maps a list position or an id, or a unique id prefix, to an id
func (r *REPL) resolve(ref string) (string, error) {
	snap := r.ctrl.Snapshot()
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(snap.Conversations) {
			return "", fmt.Errorf("no conversation #%d", n)
		}
		return snap.Conversations[n-1].ID, nil
	}

	var match string
	for _, c := range snap.Conversations {
		if c.ID == ref {
			return c.ID, nil
		}
		if strings.HasPrefix(c.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("%q matches more than one conversation", ref)
			}
			match = c.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no conversation %q", ref)
	}
	return match, nil
}
