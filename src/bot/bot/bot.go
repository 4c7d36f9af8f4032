package bot

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/microcosm-cc/bluemonday"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/fundcomms/src/bot/components/gateway"
	"github.com/stake-plus/fundcomms/src/bot/components/ledger"
	"github.com/stake-plus/fundcomms/src/bot/components/review"
	"github.com/stake-plus/fundcomms/src/bot/config"
	"github.com/stake-plus/fundcomms/src/bot/data"
	"gorm.io/gorm"
)

const helpMessage = "Hello! I'm the fundraiser bot.\n" +
	"`!donate <amount> [anon]` — submit a donation claim\n" +
	"`!sell <price> | <category> | <description> | <contact> [anon]` — submit a sale listing\n" +
	"After submitting, send a photo of your receipt or item to start the review."

type Bot struct {
	session *discordgo.Session
	db      *gorm.DB
	rdb     *redis.Client
	config  config.Config

	store   review.Store
	ledger  *ledger.Ledger
	machine *review.Machine
	limiter *review.SubmitLimiter
}

func New(cfg config.Config, db *gorm.DB, rdb *redis.Client) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, err
	}

	gw := gateway.NewDiscord(dg, cfg.GuildID)
	store := review.NewMemoryStore()
	led := ledger.New(gw, cfg.LedgerChannelID, cfg.LedgerMode)
	sanitizer := bluemonday.StrictPolicy()

	machine := review.NewMachine(review.Config{
		Gateway:         gw,
		Store:           store,
		Ledger:          led,
		ReviewChannelID: cfg.ReviewChannelID,
		PublicChannelID: cfg.PublicChannelID,
		ReviewerRoleID:  cfg.ReviewerRoleID,
		Goal:            cfg.Goal,
		Increments:      cfg.Increments,
		Sanitize:        sanitizer.Sanitize,
		Archive:         data.NewArchive(db),
		Events:          data.NewApprovalStream(rdb),
	})

	bot := &Bot{
		session: dg,
		db:      db,
		rdb:     rdb,
		config:  cfg,
		store:   store,
		ledger:  led,
		machine: machine,
		limiter: review.NewSubmitLimiter(cfg.SubmitCooldown),
	}

	dg.AddHandler(bot.handleReady)
	dg.AddHandler(bot.handleMessageCreate)
	dg.AddHandler(bot.handleInteractionCreate)

	dg.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuilds

	return bot, nil
}

func (b *Bot) Start() error {
	return b.session.Open()
}

func (b *Bot) Stop() {
	b.session.Close()
}

// Store exposes the live index for the ops API.
func (b *Bot) Store() review.Store { return b.store }

// Ledger exposes the aggregate reader for the ops API.
func (b *Bot) Ledger() *ledger.Ledger { return b.ledger }

func (b *Bot) handleReady(s *discordgo.Session, event *discordgo.Ready) {
	log.Printf("Discord bot logged in as %s", event.User.Username)
}

func (b *Bot) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	switch {
	case strings.HasPrefix(m.Content, "!start"):
		s.ChannelMessageSend(m.ChannelID, helpMessage)
	case strings.HasPrefix(m.Content, "!donate"):
		b.handleSubmit(s, m, review.KindDonation)
	case strings.HasPrefix(m.Content, "!sell"):
		b.handleSubmit(s, m, review.KindSale)
	case len(m.Attachments) > 0:
		b.handleProof(s, m)
	}
}

func (b *Bot) handleSubmit(s *discordgo.Session, m *discordgo.MessageCreate, kind review.Kind) {
	if !b.limiter.CanUse(m.Author.ID) {
		timeLeft := b.limiter.TimeUntilNext(m.Author.ID)
		s.ChannelMessageSend(m.ChannelID,
			fmt.Sprintf("Please wait %d seconds before submitting again.", int(timeLeft.Seconds())+1))
		return
	}

	rawAmount, attrs, anonymous, ok := parseSubmitCommand(m.Content, kind)
	if !ok {
		s.ChannelMessageSend(m.ChannelID, usage(kind))
		return
	}

	sub, err := b.machine.Submit(m.Author.ID, m.Author.Username, m.ChannelID, kind, rawAmount, attrs, anonymous)
	var ve *review.ValidationError
	switch {
	case err == nil:
		if kind == review.KindDonation {
			s.ChannelMessageSend(m.ChannelID,
				fmt.Sprintf("Thank you for your donation of %s! Please send a screenshot for verification.",
					sub.Amount.String()))
		} else {
			s.ChannelMessageSend(m.ChannelID,
				fmt.Sprintf("Listing at %s recorded. Please send a photo of the item for verification.",
					sub.Amount.String()))
		}
	case errors.As(err, &ve):
		s.ChannelMessageSend(m.ChannelID, fmt.Sprintf("Invalid %s: %s. %s", ve.Field, ve.Reason, usage(kind)))
	case errors.Is(err, review.ErrPendingReview):
		s.ChannelMessageSend(m.ChannelID, "You already have a submission waiting for review. Please wait for a verdict.")
	default:
		log.Printf("bot: submit for %s: %v", m.Author.ID, err)
		s.ChannelMessageSend(m.ChannelID, "Failed to record your submission. Please try again.")
	}
}

func (b *Bot) handleProof(s *discordgo.Session, m *discordgo.MessageCreate) {
	proofRef := m.Attachments[0].URL

	_, err := b.machine.AttachProof(m.Author.ID, proofRef)
	switch {
	case err == nil:
		s.ChannelMessageSend(m.ChannelID, "Your screenshot has been received. Please wait for review.")
	case errors.Is(err, review.ErrStaleAction):
		s.ChannelMessageSend(m.ChannelID, "Please submit with !donate or !sell before sending a photo.")
	default:
		log.Printf("bot: attach proof for %s: %v", m.Author.ID, err)
		s.ChannelMessageSend(m.ChannelID, "Could not forward your proof for review. Please try again.")
	}
}

func (b *Bot) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionMessageComponent {
		return
	}

	actorID := ""
	if i.Member != nil && i.Member.User != nil {
		actorID = i.Member.User.ID
	} else if i.User != nil {
		actorID = i.User.ID
	}

	b.machine.HandleCallback(gateway.Callback{
		ActorID: actorID,
		Token:   i.MessageComponentData().CustomID,
		Raw:     i.Interaction,
	})
}

// parseSubmitCommand splits "!donate 500 anon" or
// "!sell 100 | books | box of novels | DM @seller anon" into its parts.
func parseSubmitCommand(content string, kind review.Kind) (rawAmount string, attrs review.Attributes, anonymous bool, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(content), " ", 2)
	if len(parts) < 2 {
		return "", review.Attributes{}, false, false
	}
	rest := strings.TrimSpace(parts[1])

	if strings.HasSuffix(rest, " anon") {
		anonymous = true
		rest = strings.TrimSpace(strings.TrimSuffix(rest, " anon"))
	}

	if kind == review.KindDonation {
		if rest == "" || strings.ContainsAny(rest, " |") {
			return "", review.Attributes{}, false, false
		}
		return rest, review.Attributes{}, anonymous, true
	}

	fields := strings.Split(rest, "|")
	rawAmount = strings.TrimSpace(fields[0])
	if rawAmount == "" {
		return "", review.Attributes{}, false, false
	}
	if len(fields) > 1 {
		attrs.Category = strings.TrimSpace(fields[1])
	}
	if len(fields) > 2 {
		attrs.Description = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 {
		attrs.Contact = strings.TrimSpace(fields[3])
	}
	return rawAmount, attrs, anonymous, true
}

func usage(kind review.Kind) string {
	if kind == review.KindSale {
		return "Usage: !sell <price> | <category> | <description> | <contact> [anon]"
	}
	return "Usage: !donate <amount> [anon]"
}
