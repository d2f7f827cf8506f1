package repl

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"RagChat/internal/chat"
	"RagChat/internal/responder"
	"RagChat/internal/store"
)

func init() {
	color.NoColor = true
}

func newController(t *testing.T, r responder.Responder, opts ...store.Option) (*chat.Controller, *store.ConversationStore) {
	t.Helper()
	s, err := store.NewConversationStore(nil, opts...)
	require.NoError(t, err)
	ctrl := chat.NewController(s, r)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = ctrl.Close(ctx)
	})
	return ctrl, s
}

func echo() responder.Responder {
	return responder.Func(func(ctx context.Context, req responder.Request) (string, error) {
		return "echo: " + req.Text, nil
	})
}

func run(t *testing.T, ctrl *chat.Controller, input string, opts ...Option) string {
	t.Helper()
	var out bytes.Buffer
	r := New(ctrl, strings.NewReader(input), &out, opts...)
	require.NoError(t, r.Run(context.Background()))
	return out.String()
}

func TestREPL_SendWithoutConversation(t *testing.T) {
	ctrl, s := newController(t, echo())
	out := run(t, ctrl, "hello\n/quit\n")

	assert.Contains(t, out, "no active conversation, use /new or /start first")
	assert.Empty(t, s.List())
	assert.Contains(t, out, "Goodbye!")
}

func TestREPL_NewChatAndSend(t *testing.T) {
	ctrl, s := newController(t, echo())
	out := run(t, ctrl, "/new\nWhat is in the Q3 report?\n")

	assert.Contains(t, out, "Started New Chat")
	assert.Contains(t, out, "Bot: echo: What is in the Q3 report?")

	convs := s.List()
	require.Len(t, convs, 1)
	assert.Equal(t, "What is in the Q3 report?", convs[0].Title)
	assert.Len(t, convs[0].Messages, 2)
}

func TestREPL_StartValidatesCatalog(t *testing.T) {
	ctrl, s := newController(t, echo())
	out := run(t, ctrl,
		"/start acme invoices hi\n/start tenant-1 nope hi\n/start tenant-1\n/start tenant-1 entity-2 Summarise the contract\n",
		WithCatalog([]string{"tenant-1"}, []string{"entity-2"}))

	assert.Contains(t, out, `unknown tenant "acme"`)
	assert.Contains(t, out, `unknown entity "nope"`)
	assert.Contains(t, out, "usage: /start <tenant> <entity> <message>")
	assert.Contains(t, out, `Started "Summarise the contract" for tenant-1/entity-2`)
	assert.Contains(t, out, "Bot: echo: Summarise the contract")
	require.Len(t, s.List(), 1)
}

func TestREPL_ListSelectRenameDelete(t *testing.T) {
	ctrl, s := newController(t, echo(), store.WithSeed(store.DemoSeed(time.Now())))
	seed := s.List()
	require.Len(t, seed, 4)

	out := run(t, ctrl, "/list\n/select 2\n/rename 2 Budget review\n/delete 1\n/list\n")

	assert.Contains(t, out, "* 1. "+seed[0].Title)
	assert.Contains(t, out, "  2. "+seed[1].Title)
	assert.Contains(t, out, "--- "+seed[1].Title+" ---")
	assert.Contains(t, out, `Renamed to "Budget review"`)
	assert.Contains(t, out, "Deleted conversation")

	got, ok := s.Get(seed[1].ID)
	require.True(t, ok)
	assert.Equal(t, "Budget review", got.Title)
	assert.False(t, s.Exists(seed[0].ID))
	assert.Equal(t, seed[1].ID, s.ActiveID(), "deleting an inactive conversation keeps the selection")
}

func TestREPL_ResolveErrors(t *testing.T) {
	ctrl, _ := newController(t, echo())
	_, err := ctrl.NewChat()
	require.NoError(t, err)

	out := run(t, ctrl, "/select 5\n/delete zzz\n/rename 1\n/bogus\n")
	assert.Contains(t, out, "no conversation #5")
	assert.Contains(t, out, `no conversation "zzz"`)
	assert.Contains(t, out, "usage: /rename <id|#> <title>")
	assert.Contains(t, out, "unknown command /bogus")
}

func TestREPL_SelectByIDPrefix(t *testing.T) {
	ctrl, s := newController(t, echo())
	first, _ := ctrl.NewChat()
	_, _ = ctrl.NewChat()

	run(t, ctrl, "/select "+first.ID+"\n")
	assert.Equal(t, first.ID, s.ActiveID())
}

func TestREPL_ResponderFailureShownAsBotError(t *testing.T) {
	failing := responder.Func(func(ctx context.Context, req responder.Request) (string, error) {
		return "", errors.New("index offline")
	})
	ctrl, _ := newController(t, failing)
	out := run(t, ctrl, "/new\nhello\n/show\n")

	assert.Contains(t, out, "Bot: The assistant could not answer: index offline")
	assert.Contains(t, out, "You: hello")
}

func TestREPL_OptionalCommands(t *testing.T) {
	ctrl, _ := newController(t, echo())

	out := run(t, ctrl, "/models\n/tools\n/help\n")
	assert.Contains(t, out, "model listing is not available")
	assert.Contains(t, out, "no MCP servers are connected")
	assert.NotContains(t, out, "/models  ")

	out = run(t, ctrl, "/models\n/tools\n/tenants\n/help\n",
		WithModels(func(ctx context.Context) ([]string, error) { return []string{"llama3:latest"}, nil }),
		WithTools(func() []string { return []string{"query_documents (docs)"} }),
		WithCatalog([]string{"tenant-1"}, []string{"entity-1"}),
	)
	assert.Contains(t, out, "1. llama3:latest")
	assert.Contains(t, out, "1. query_documents (docs)")
	assert.Contains(t, out, "Tenants:  tenant-1")
	assert.Contains(t, out, "Entities: entity-1")
	assert.Contains(t, out, "/models")
}

func TestREPL_StopsOnCanceledContext(t *testing.T) {
	ctrl, _ := newController(t, echo())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	require.NoError(t, New(ctrl, strings.NewReader("/new\n"), &out).Run(ctx))
	assert.Empty(t, ctrl.Snapshot().Conversations)
}
