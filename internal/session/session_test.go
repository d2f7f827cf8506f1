package session

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "Hello", DeriveTitle("  Hello  "))

	long := strings.Repeat("a", 60)
	assert.Equal(t, strings.Repeat("a", 50)+"...", DeriveTitle(long))

	exact := strings.Repeat("b", 50)
	assert.Equal(t, exact, DeriveTitle(exact))

	// runes, not bytes
	accented := strings.Repeat("é", 51)
	assert.Equal(t, strings.Repeat("é", 50)+"...", DeriveTitle(accented))
}

func TestPreview_TruncatesAssistantOnly(t *testing.T) {
	long := strings.Repeat("x", 80)

	user := NewMessage(RoleUser, long)
	assert.Equal(t, long, Preview(user))

	assistant := NewMessage(RoleAssistant, long)
	assert.Equal(t, strings.Repeat("x", 50)+"...", Preview(assistant))
}

func TestNewConversation_DefaultTitle(t *testing.T) {
	conv := NewConversation(nil, "   ")
	assert.Equal(t, DefaultTitle, conv.Title)
	assert.False(t, conv.Renamed)
	assert.Equal(t, Bare{}, conv.Scope)
	assert.Empty(t, conv.Messages)

	_, scoped := ScopeOf(conv)
	assert.False(t, scoped)
}

func TestConversation_AppendAdoptsFirstUserMessageAsTitle(t *testing.T) {
	conv := NewConversation(Bare{}, "")
	conv.Append(NewMessage(RoleUser, "What is a UX audit?"))
	conv.Append(NewMessage(RoleAssistant, "An evaluation."))
	conv.Append(NewMessage(RoleUser, "Thanks"))

	assert.Equal(t, "What is a UX audit?", conv.Title)
	assert.Equal(t, "Thanks", conv.LastMessage)
	require.Len(t, conv.Messages, 3)
	assert.Equal(t, conv.Messages[2].Timestamp, conv.Timestamp)
}

func TestConversation_AppendKeepsExplicitTitle(t *testing.T) {
	conv := NewConversation(Scoped{Tenant: "t1", Entity: "e1"}, "Pinned")
	conv.Append(NewMessage(RoleUser, "Hello"))
	assert.Equal(t, "Pinned", conv.Title)

	scope, ok := ScopeOf(conv)
	require.True(t, ok)
	assert.Equal(t, "t1", scope.Tenant)
	assert.Equal(t, "e1", scope.Entity)
}

func TestConversation_CloneIsIndependent(t *testing.T) {
	conv := NewConversation(Bare{}, "")
	conv.Append(NewMessage(RoleUser, "one"))

	cp := conv.Clone()
	cp.Messages = append(cp.Messages, NewMessage(RoleUser, "two"))
	cp.Title = "changed"

	assert.Len(t, conv.Messages, 1)
	assert.Equal(t, "one", conv.Title)
}

func TestNewID_SortsByCreation(t *testing.T) {
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = NewID()
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage("boom")
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, KindError, msg.Kind)
	assert.NotEmpty(t, msg.ID)
}
