package gateway

// MessageRef identifies a message the bot has sent or observed.
type MessageRef struct {
	ChannelID string
	MessageID string
}

func (r MessageRef) IsZero() bool {
	return r.MessageID == ""
}

// Message is a channel message as seen through the gateway.
type Message struct {
	Ref  MessageRef
	Text string
}

// Control is an interactive button attached to a message. Token is the
// action token delivered back through OnCallback when the button is pressed.
type Control struct {
	Label string
	Token string
}

// Callback is a button press raised by the transport. Raw holds the
// transport-specific handle needed to acknowledge it.
type Callback struct {
	ActorID string
	Token   string
	Raw     interface{}
}

// Gateway is the messaging capability the review core consumes. The Discord
// adapter implements it for production; tests use the recording Fake.
type Gateway interface {
	SendText(channelID, text string) (MessageRef, error)
	SendPhoto(channelID, photoRef, caption string, controls []Control) (MessageRef, error)
	EditCaption(ref MessageRef, caption string, controls []Control) error
	EditControls(ref MessageRef, controls []Control) error
	EditText(ref MessageRef, text string) error
	AnswerCallback(cb Callback, text string) error
	ReadRecentHistory(channelID string, count int) ([]Message, error)
	ReadPinned(channelID string) ([]Message, error)
	PinMessage(ref MessageRef) error
	HasRole(userID, roleID string) bool
}
