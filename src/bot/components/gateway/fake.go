package gateway

import (
	"fmt"
	"sync"
)

// Fake is an in-memory Gateway for tests. It records every outbound call and
// serves scripted channel history. Sends to a channel listed in FailChannels
// return an error without recording, so publish-failure paths can be driven.
type Fake struct {
	mu     sync.Mutex
	nextID int

	history map[string][]Message // newest first, like the transport
	pinned  map[string][]Message

	Texts        []FakeSend
	Photos       []FakePhoto
	CaptionEdits []FakeEdit
	ControlEdits []FakeEdit
	TextEdits    []FakeEdit
	Answers      []string
	Pins         []MessageRef

	Roles        map[string][]string // userID -> role IDs
	FailChannels map[string]bool
	FailEdits    bool
}

type FakeSend struct {
	ChannelID string
	Text      string
	Ref       MessageRef
}

type FakePhoto struct {
	ChannelID string
	PhotoRef  string
	Caption   string
	Controls  []Control
	Ref       MessageRef
}

type FakeEdit struct {
	Ref      MessageRef
	Text     string
	Controls []Control
}

func NewFake() *Fake {
	return &Fake{
		history:      make(map[string][]Message),
		pinned:       make(map[string][]Message),
		Roles:        make(map[string][]string),
		FailChannels: make(map[string]bool),
	}
}

// Seed places a message at the head of a channel's history.
func (f *Fake) Seed(channelID, text string) MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepend(channelID, text)
}

// SeedPinned places a pinned message in a channel.
func (f *Fake) SeedPinned(channelID, text string) MessageRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := f.prepend(channelID, text)
	f.pinned[channelID] = append(f.pinned[channelID], Message{Ref: ref, Text: text})
	return ref
}

func (f *Fake) prepend(channelID, text string) MessageRef {
	f.nextID++
	ref := MessageRef{ChannelID: channelID, MessageID: fmt.Sprintf("m%d", f.nextID)}
	f.history[channelID] = append([]Message{{Ref: ref, Text: text}}, f.history[channelID]...)
	return ref
}

func (f *Fake) SendText(channelID, text string) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailChannels[channelID] {
		return MessageRef{}, fmt.Errorf("send text to %s: transport down", channelID)
	}
	ref := f.prepend(channelID, text)
	f.Texts = append(f.Texts, FakeSend{ChannelID: channelID, Text: text, Ref: ref})
	return ref, nil
}

func (f *Fake) SendPhoto(channelID, photoRef, caption string, controls []Control) (MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailChannels[channelID] {
		return MessageRef{}, fmt.Errorf("send photo to %s: transport down", channelID)
	}
	ref := f.prepend(channelID, caption)
	f.Photos = append(f.Photos, FakePhoto{ChannelID: channelID, PhotoRef: photoRef, Caption: caption, Controls: controls, Ref: ref})
	return ref, nil
}

func (f *Fake) EditCaption(ref MessageRef, caption string, controls []Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailEdits {
		return fmt.Errorf("edit caption %s/%s: transport down", ref.ChannelID, ref.MessageID)
	}
	f.CaptionEdits = append(f.CaptionEdits, FakeEdit{Ref: ref, Text: caption, Controls: controls})
	return nil
}

func (f *Fake) EditControls(ref MessageRef, controls []Control) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ControlEdits = append(f.ControlEdits, FakeEdit{Ref: ref, Controls: controls})
	return nil
}

func (f *Fake) EditText(ref MessageRef, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.TextEdits = append(f.TextEdits, FakeEdit{Ref: ref, Text: text})
	for i, m := range f.history[ref.ChannelID] {
		if m.Ref == ref {
			f.history[ref.ChannelID][i].Text = text
		}
	}
	for i, m := range f.pinned[ref.ChannelID] {
		if m.Ref == ref {
			f.pinned[ref.ChannelID][i].Text = text
		}
	}
	return nil
}

func (f *Fake) AnswerCallback(cb Callback, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answers = append(f.Answers, text)
	return nil
}

func (f *Fake) ReadRecentHistory(channelID string, count int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.history[channelID]
	if len(msgs) > count {
		msgs = msgs[:count]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (f *Fake) ReadPinned(channelID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.pinned[channelID]))
	copy(out, f.pinned[channelID])
	return out, nil
}

func (f *Fake) PinMessage(ref MessageRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Pins = append(f.Pins, ref)
	for _, m := range f.history[ref.ChannelID] {
		if m.Ref == ref {
			f.pinned[ref.ChannelID] = append(f.pinned[ref.ChannelID], m)
		}
	}
	return nil
}

func (f *Fake) HasRole(userID, roleID string) bool {
	if roleID == "" {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.Roles[userID] {
		if r == roleID {
			return true
		}
	}
	return false
}

// LastText returns the most recent text sent to a channel, or "".
func (f *Fake) LastText(channelID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.Texts) - 1; i >= 0; i-- {
		if f.Texts[i].ChannelID == channelID {
			return f.Texts[i].Text
		}
	}
	return ""
}
