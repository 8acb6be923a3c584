// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import "fmt"

// Reduce returns the state that results from applying a to s. It never
// mutates s: slices are copied before they are extended.
//
// Responses tagged with a session that is no longer active, and loads that
// were superseded by a newer request, leave the thread untouched.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case Authenticated:
		user := a.User
		s.View = ViewChat
		s.User = &user
		s.Notice = Notice{}

	case Unauthorized:
		s = signedOut(s)
		if a.Message != "" {
			s.Notice = Notice{Level: NoticeError, Text: a.Message}
		}

	case LoggedOut:
		s = signedOut(s)
		s.Notice = Notice{Level: NoticeInfo, Text: "Logged out"}

	case SessionsLoaded:
		s.Sessions = a.Sessions

	case NewConversation:
		s = clearConversation(s)

	case ConversationCreated:
		// A load or another conversation may have taken over meanwhile.
		if s.ActiveID == 0 && s.PendingLoad == 0 {
			s.ActiveID = a.ID
		}

	case LoadRequested:
		s.PendingLoad = a.ID

	case ConversationLoaded:
		if s.PendingLoad != a.ID {
			return s
		}
		s.PendingLoad = 0
		s.ActiveID = a.ID
		s.Typing = false
		s.ActiveFile = nil
		if a.LatestUpload != nil {
			item := *a.LatestUpload
			s.ActiveFile = &item
		}
		thread := make([]Entry, 0, len(a.Messages))
		for _, m := range a.Messages {
			thread = append(thread, Entry{Role: RoleFromSender(m.Sender), Text: m.Content, At: m.When()})
		}
		s = replaceThread(s, thread)

	case LoadFailed:
		if s.PendingLoad != a.ID {
			return s
		}
		s.PendingLoad = 0
		s.Notice = Notice{Level: NoticeError, Text: fmt.Sprintf("Could not load conversation: %s", a.Err)}

	case ConversationDeleted:
		if s.PendingLoad == a.ID {
			s.PendingLoad = 0
		}
		if s.ActiveID == a.ID {
			s = clearConversation(s)
		}
		s.Notice = Notice{Level: NoticeInfo, Text: "Conversation deleted"}

	case ConversationRenamed:
		s.Notice = Notice{Level: NoticeInfo, Text: fmt.Sprintf("Renamed to %q", a.Title)}

	case SendStarted:
		s.Sending = true
		s.SendingID = a.SessionID
		if a.SessionID == s.ActiveID {
			s.Typing = true
			s = appendEntry(s, Entry{Role: RoleUser, Text: a.Text, At: a.At})
		}

	case ReplyReceived:
		s = sendDone(s)
		if a.SessionID == s.ActiveID {
			s.Typing = false
			s = appendEntry(s, Entry{Role: RoleAssistant, Text: a.Text, At: a.At})
		}

	case SendFailed:
		s = sendDone(s)
		if a.SessionID == s.ActiveID {
			s.Typing = false
			s = appendEntry(s, Entry{Role: RoleError, Text: "Error: " + a.Err})
		}

	case FileUploaded:
		if a.SessionID != s.ActiveID {
			return s
		}
		item := a.Item
		s.ActiveFile = &item
		text := fmt.Sprintf("Uploaded %s", a.Item.OriginalFilename)
		if a.Summary != "" {
			text += "\n\n" + a.Summary
		}
		s = appendEntry(s, Entry{Role: RoleSystem, Text: text})

	case UploadFailed:
		if a.SessionID != s.ActiveID {
			return s
		}
		s = appendEntry(s, Entry{Role: RoleError, Text: fmt.Sprintf("Failed to upload %s: %s", a.Filename, a.Err)})

	case FileDeleted:
		if s.ActiveFile != nil && s.ActiveFile.ID == a.ItemID {
			s.ActiveFile = nil
		}

	case SystemNote:
		if a.SessionID != 0 && a.SessionID != s.ActiveID {
			return s
		}
		s = appendEntry(s, Entry{Role: RoleSystem, Text: a.Text})

	case SetNotice:
		s.Notice = a.Notice
	}
	return s
}

func signedOut(s State) State {
	s = clearConversation(s)
	s.View = ViewLogin
	s.User = nil
	s.Sessions = nil
	s.Sending = false
	s.SendingID = 0
	return s
}

// clearConversation is the "no active conversation" transition. An in-flight
// send keeps Sending set; its reply will be dropped when it arrives.
func clearConversation(s State) State {
	s.ActiveID = 0
	s.ActiveFile = nil
	s.PendingLoad = 0
	s.Typing = false
	return replaceThread(s, nil)
}

func sendDone(s State) State {
	s.Sending = false
	s.SendingID = 0
	return s
}

func replaceThread(s State, thread []Entry) State {
	s.Thread = thread
	s.ThreadEpoch++
	return s
}

func appendEntry(s State, e Entry) State {
	thread := make([]Entry, len(s.Thread), len(s.Thread)+1)
	copy(thread, s.Thread)
	s.Thread = append(thread, e)
	return s
}
