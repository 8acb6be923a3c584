// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/nexuschat/internal/api"
)

func chatState() State {
	return Reduce(Initial(), Authenticated{User: api.Profile{Username: "ada"}})
}

func loaded(t *testing.T, s State, id int64, msgs ...string) State {
	t.Helper()
	s = Reduce(s, LoadRequested{ID: id})
	var messages []api.Message
	for i, m := range msgs {
		sender := api.SenderUser
		if i%2 == 1 {
			sender = api.SenderAssistant
		}
		messages = append(messages, api.Message{ID: int64(i + 1), Sender: sender, Content: m})
	}
	s = Reduce(s, ConversationLoaded{ID: id, Messages: messages})
	require.Equal(t, id, s.ActiveID)
	return s
}

func TestReduce_AuthenticatedAndUnauthorized(t *testing.T) {
	s := chatState()
	assert.Equal(t, ViewChat, s.View)
	require.NotNil(t, s.User)
	assert.Equal(t, "ada", s.User.Username)

	s = loaded(t, s, 4, "hi", "hello")
	s = Reduce(s, Unauthorized{Message: "Authentication required"})
	assert.Equal(t, ViewLogin, s.View)
	assert.Nil(t, s.User)
	assert.Zero(t, s.ActiveID)
	assert.Empty(t, s.Thread)
	assert.Equal(t, NoticeError, s.Notice.Level)
	assert.Equal(t, "Authentication required", s.Notice.Text)
}

func TestReduce_NewConversationClearsActiveIDs(t *testing.T) {
	s := loaded(t, chatState(), 3, "hi", "hello")
	s = Reduce(s, FileUploaded{SessionID: 3, Item: api.UploadedItem{ID: 8, OriginalFilename: "a.png"}})
	require.NotNil(t, s.ActiveFile)
	epoch := s.ThreadEpoch

	s = Reduce(s, NewConversation{})
	assert.Zero(t, s.ActiveID)
	assert.Nil(t, s.ActiveFile)
	assert.Empty(t, s.Thread)
	assert.NotEqual(t, epoch, s.ThreadEpoch)
	assert.False(t, s.HasActive())
}

func TestReduce_FirstMessageCreatesConversation(t *testing.T) {
	s := chatState()
	s = Reduce(s, ConversationCreated{ID: 11, Title: api.DefaultSessionTitle})
	assert.Equal(t, int64(11), s.ActiveID)

	s = Reduce(s, SendStarted{SessionID: 11, Text: "hello"})
	assert.True(t, s.Sending)
	assert.True(t, s.Typing)
	require.Len(t, s.Thread, 1)
	assert.Equal(t, RoleUser, s.Thread[0].Role)

	s = Reduce(s, ReplyReceived{SessionID: 11, Text: "hi there"})
	assert.False(t, s.Sending)
	assert.False(t, s.Typing)
	require.Len(t, s.Thread, 2)
	assert.Equal(t, RoleAssistant, s.Thread[1].Role)
}

func TestReduce_CreatedIgnoredWhenAnotherConversationTookOver(t *testing.T) {
	s := loaded(t, chatState(), 2, "hi")
	s = Reduce(s, ConversationCreated{ID: 9})
	assert.Equal(t, int64(2), s.ActiveID)
}

func TestReduce_StaleReplyIsDropped(t *testing.T) {
	s := loaded(t, chatState(), 1, "a", "b")
	s = Reduce(s, SendStarted{SessionID: 1, Text: "question"})
	require.Len(t, s.Thread, 3)

	// user navigates away while the reply is in flight
	s = loaded(t, s, 2, "x")
	assert.True(t, s.Sending, "send is still in flight")
	assert.False(t, s.Typing)

	s = Reduce(s, ReplyReceived{SessionID: 1, Text: "late answer"})
	assert.False(t, s.Sending)
	require.Len(t, s.Thread, 1)
	assert.Equal(t, "x", s.Thread[0].Text)
}

func TestReduce_StaleLoadIsDropped(t *testing.T) {
	s := chatState()
	s = Reduce(s, LoadRequested{ID: 1})
	s = Reduce(s, LoadRequested{ID: 2})

	s = Reduce(s, ConversationLoaded{ID: 1, Messages: []api.Message{{Sender: "user", Content: "old"}}})
	assert.Zero(t, s.ActiveID)
	assert.Empty(t, s.Thread)

	s = Reduce(s, ConversationLoaded{ID: 2, Messages: []api.Message{{Sender: "user", Content: "new"}}})
	assert.Equal(t, int64(2), s.ActiveID)
	require.Len(t, s.Thread, 1)
	assert.Equal(t, "new", s.Thread[0].Text)

	s = Reduce(s, NewConversation{})
	s2 := Reduce(s, ConversationLoaded{ID: 2})
	assert.Zero(t, s2.ActiveID, "load superseded by new conversation")
}

func TestReduce_LoadSetsLatestUploadAsActiveFile(t *testing.T) {
	s := chatState()
	s = Reduce(s, LoadRequested{ID: 5})
	s = Reduce(s, ConversationLoaded{ID: 5, LatestUpload: &api.UploadedItem{ID: 40, FileType: api.FileTypeImage}})
	require.NotNil(t, s.ActiveFile)
	assert.Equal(t, int64(40), s.ActiveFile.ID)

	s = Reduce(s, FileDeleted{ItemID: 40})
	assert.Nil(t, s.ActiveFile)
}

func TestReduce_LoadFailed(t *testing.T) {
	s := loaded(t, chatState(), 1, "keep")
	s = Reduce(s, LoadRequested{ID: 2})
	s = Reduce(s, LoadFailed{ID: 2, Err: "Session not found"})
	assert.Zero(t, s.PendingLoad)
	assert.Equal(t, int64(1), s.ActiveID)
	assert.Len(t, s.Thread, 1)
	assert.Equal(t, NoticeError, s.Notice.Level)
}

func TestReduce_DeleteActiveClearsThread(t *testing.T) {
	s := loaded(t, chatState(), 6, "a", "b", "c")
	s = Reduce(s, ConversationDeleted{ID: 6})
	assert.Zero(t, s.ActiveID)
	assert.Empty(t, s.Thread)

	s = loaded(t, s, 7, "keep")
	s = Reduce(s, ConversationDeleted{ID: 6})
	assert.Equal(t, int64(7), s.ActiveID)
	assert.Len(t, s.Thread, 1)
}

func TestReduce_UploadMessagesOnlyForActive(t *testing.T) {
	s := loaded(t, chatState(), 1)
	s = Reduce(s, FileUploaded{SessionID: 1, Item: api.UploadedItem{ID: 1, OriginalFilename: "a.txt"}})
	s = Reduce(s, UploadFailed{SessionID: 1, Filename: "b.exe", Err: "File type not allowed"})
	s = Reduce(s, FileUploaded{SessionID: 1, Item: api.UploadedItem{ID: 3, OriginalFilename: "c.pdf"}})

	require.Len(t, s.Thread, 3)
	assert.Equal(t, RoleError, s.Thread[1].Role)
	assert.Equal(t, "Failed to upload b.exe: File type not allowed", s.Thread[1].Text)
	assert.Equal(t, int64(3), s.ActiveFile.ID)

	s = Reduce(s, UploadFailed{SessionID: 99, Filename: "x", Err: "y"})
	assert.Len(t, s.Thread, 3)
}

func TestReduce_DoesNotAliasInput(t *testing.T) {
	base := loaded(t, chatState(), 1, "a")
	// leave spare capacity so an in-place append would be visible
	base.Thread = append(make([]Entry, 0, 8), base.Thread...)

	one := Reduce(base, SystemNote{Text: "one"})
	two := Reduce(base, SystemNote{Text: "two"})

	assert.Len(t, base.Thread, 1)
	assert.Equal(t, "one", one.Thread[1].Text)
	assert.Equal(t, "two", two.Thread[1].Text)
}

func TestReduce_SystemNoteScoped(t *testing.T) {
	s := loaded(t, chatState(), 1)
	s = Reduce(s, SystemNote{SessionID: 2, Text: "elsewhere"})
	assert.Empty(t, s.Thread)
	s = Reduce(s, SystemNote{SessionID: 1, Text: "here"})
	assert.Len(t, s.Thread, 1)
}

func TestStore_DispatchNotifies(t *testing.T) {
	store := NewStore(Initial())

	var transitions []string
	unsubscribe := store.Subscribe(func(prev, next State) {
		transitions = append(transitions, prev.View.String()+"->"+next.View.String())
	})

	store.Dispatch(Authenticated{User: api.Profile{Username: "ada"}})
	store.Dispatch(Unauthorized{})
	unsubscribe()
	store.Dispatch(Authenticated{})

	assert.Equal(t, []string{"login->chat", "chat->login"}, transitions)
	assert.Equal(t, ViewChat, store.State().View)
}

func TestStore_ConcurrentDispatch(t *testing.T) {
	store := NewStore(chatState())
	store.Dispatch(ConversationCreated{ID: 1})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Dispatch(SystemNote{Text: "note"})
		}()
		go func() {
			defer wg.Done()
			_ = store.State().Thread
		}()
	}
	wg.Wait()

	assert.Len(t, store.State().Thread, 50)
}
