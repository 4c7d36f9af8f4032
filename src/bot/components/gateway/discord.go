package gateway

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord adapts a discordgo session to the Gateway contract.
type Discord struct {
	session *discordgo.Session
	guildID string
}

func NewDiscord(session *discordgo.Session, guildID string) *Discord {
	return &Discord{session: session, guildID: guildID}
}

func (d *Discord) SendText(channelID, text string) (MessageRef, error) {
	msg, err := d.session.ChannelMessageSend(channelID, text)
	if err != nil {
		return MessageRef{}, fmt.Errorf("send text to %s: %w", channelID, err)
	}
	return MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (d *Discord) SendPhoto(channelID, photoRef, caption string, controls []Control) (MessageRef, error) {
	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: caption,
		Embed: &discordgo.MessageEmbed{
			Image: &discordgo.MessageEmbedImage{URL: photoRef},
		},
		Components: buildComponents(controls),
	})
	if err != nil {
		return MessageRef{}, fmt.Errorf("send photo to %s: %w", channelID, err)
	}
	return MessageRef{ChannelID: channelID, MessageID: msg.ID}, nil
}

func (d *Discord) EditCaption(ref MessageRef, caption string, controls []Control) error {
	comps := buildComponents(controls)
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChannelID,
		ID:         ref.MessageID,
		Content:    &caption,
		Components: &comps,
	})
	if err != nil {
		return fmt.Errorf("edit caption %s/%s: %w", ref.ChannelID, ref.MessageID, err)
	}
	return nil
}

func (d *Discord) EditControls(ref MessageRef, controls []Control) error {
	comps := buildComponents(controls)
	_, err := d.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChannelID,
		ID:         ref.MessageID,
		Components: &comps,
	})
	if err != nil {
		return fmt.Errorf("edit controls %s/%s: %w", ref.ChannelID, ref.MessageID, err)
	}
	return nil
}

func (d *Discord) EditText(ref MessageRef, text string) error {
	if _, err := d.session.ChannelMessageEdit(ref.ChannelID, ref.MessageID, text); err != nil {
		return fmt.Errorf("edit text %s/%s: %w", ref.ChannelID, ref.MessageID, err)
	}
	return nil
}

func (d *Discord) AnswerCallback(cb Callback, text string) error {
	interaction, ok := cb.Raw.(*discordgo.Interaction)
	if !ok {
		return fmt.Errorf("callback has no interaction handle")
	}
	if text == "" {
		return d.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	}
	return d.session.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: text,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func (d *Discord) ReadRecentHistory(channelID string, count int) ([]Message, error) {
	msgs, err := d.session.ChannelMessages(channelID, count, "", "", "")
	if err != nil {
		return nil, fmt.Errorf("read history of %s: %w", channelID, err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			Ref:  MessageRef{ChannelID: channelID, MessageID: m.ID},
			Text: m.Content,
		})
	}
	return out, nil
}

func (d *Discord) ReadPinned(channelID string) ([]Message, error) {
	msgs, err := d.session.ChannelMessagesPinned(channelID)
	if err != nil {
		return nil, fmt.Errorf("read pinned of %s: %w", channelID, err)
	}
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Message{
			Ref:  MessageRef{ChannelID: channelID, MessageID: m.ID},
			Text: m.Content,
		})
	}
	return out, nil
}

func (d *Discord) PinMessage(ref MessageRef) error {
	if err := d.session.ChannelMessagePin(ref.ChannelID, ref.MessageID); err != nil {
		return fmt.Errorf("pin %s/%s: %w", ref.ChannelID, ref.MessageID, err)
	}
	return nil
}

// HasRole checks whether a user has a role in the guild. Empty roleID always
// returns true.
func (d *Discord) HasRole(userID, roleID string) bool {
	if roleID == "" {
		return true
	}
	member, err := d.session.GuildMember(d.guildID, userID)
	if err != nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

func buildComponents(controls []Control) []discordgo.MessageComponent {
	if len(controls) == 0 {
		return []discordgo.MessageComponent{}
	}
	buttons := make([]discordgo.MessageComponent, 0, len(controls))
	for _, c := range controls {
		buttons = append(buttons, discordgo.Button{
			Label:    c.Label,
			Style:    discordgo.PrimaryButton,
			CustomID: c.Token,
		})
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: buttons},
	}
}
