package ledger

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/stake-plus/fundcomms/src/bot/components/gateway"
)

// Mode selects which message in the aggregate channel is authoritative.
type Mode string

const (
	// ModeAppend treats the literal last message as the total and commits by
	// appending a new message.
	ModeAppend Mode = "append"
	// ModePinned treats the pinned message as the total and commits by
	// editing it in place, pinning one first if none exists.
	ModePinned Mode = "pinned"
)

var totalRe = regexp.MustCompile(`Total Donations: (\d+)`)

// Ledger reconstructs the running donation total from the aggregate
// channel's message content. There is no cached value: every read goes to
// the channel so out-of-band updates by another process or an admin are
// picked up.
type Ledger struct {
	gw        gateway.Gateway
	channelID string
	mode      Mode
}

func New(gw gateway.Gateway, channelID string, mode Mode) *Ledger {
	if mode != ModePinned {
		mode = ModeAppend
	}
	return &Ledger{gw: gw, channelID: channelID, mode: mode}
}

// ReadTotal returns the current total. Unreadable, absent, or unparseable
// content yields 0; the ledger always has a defined value.
func (l *Ledger) ReadTotal() int64 {
	var msgs []gateway.Message
	var err error
	switch l.mode {
	case ModePinned:
		msgs, err = l.gw.ReadPinned(l.channelID)
	default:
		msgs, err = l.gw.ReadRecentHistory(l.channelID, 1)
	}
	if err != nil {
		log.Printf("ledger: read %s channel %s: %v", l.mode, l.channelID, err)
		return 0
	}
	if len(msgs) == 0 {
		return 0
	}
	total, ok := ParseTotal(msgs[0].Text)
	if !ok {
		return 0
	}
	return total
}

// Commit writes a new total back to the aggregate channel. The caller must
// compute the value from ReadTotal within the same critical section; there
// is no compare-and-set on the channel.
func (l *Ledger) Commit(total int64) error {
	text := FormatTotal(total)

	if l.mode == ModePinned {
		pinned, err := l.gw.ReadPinned(l.channelID)
		if err != nil {
			return fmt.Errorf("ledger commit: read pinned: %w", err)
		}
		if len(pinned) > 0 {
			if err := l.gw.EditText(pinned[0].Ref, text); err != nil {
				return fmt.Errorf("ledger commit: %w", err)
			}
			return nil
		}
		ref, err := l.gw.SendText(l.channelID, text)
		if err != nil {
			return fmt.Errorf("ledger commit: %w", err)
		}
		if err := l.gw.PinMessage(ref); err != nil {
			return fmt.Errorf("ledger commit: pin: %w", err)
		}
		return nil
	}

	if _, err := l.gw.SendText(l.channelID, text); err != nil {
		return fmt.Errorf("ledger commit: %w", err)
	}
	return nil
}

// ParseTotal extracts a total from message text. Accepts the labeled form
// "Total Donations: <integer>" or a bare integer.
func ParseTotal(text string) (int64, bool) {
	if m := totalRe.FindStringSubmatch(text); len(m) == 2 {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FormatTotal encodes a total in the labeled form the reader accepts.
func FormatTotal(total int64) string {
	return fmt.Sprintf("Total Donations: %d", total)
}
