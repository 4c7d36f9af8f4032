package review

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stake-plus/fundcomms/src/bot/components/gateway"
	"github.com/stake-plus/fundcomms/src/bot/components/ledger"
	"github.com/stake-plus/fundcomms/src/bot/components/pricing"
)

// Archiver persists resolved submissions for audit. Best-effort: failures
// are logged and never block a transition.
type Archiver interface {
	Archive(sub Submission) error
}

// EventPublisher emits an event after every successful publish.
type EventPublisher interface {
	PublishApproval(ev ApprovalEvent) error
}

// ApprovalEvent describes a published submission.
type ApprovalEvent struct {
	ID          string
	Kind        Kind
	RequesterID string
	Amount      string
	FinalPrice  string
	Total       int64
	Anonymous   bool
}

type Config struct {
	Gateway gateway.Gateway
	Store   Store
	Ledger  *ledger.Ledger

	ReviewChannelID string
	PublicChannelID string
	ReviewerRoleID  string

	Goal       int64
	Increments []decimal.Decimal

	// Sanitize cleans requester free-form text before it reaches any
	// channel. Nil means no sanitization.
	Sanitize func(string) string

	Archive Archiver       // optional
	Events  EventPublisher // optional
}

// Machine drives submissions through their lifecycle. A single mutex
// serializes every transition; ledger read-modify-write pairs run inside
// the same critical section, so concurrent approvals cannot interleave
// between ReadTotal and Commit.
type Machine struct {
	cfg Config
	mu  sync.Mutex
}

func NewMachine(cfg Config) *Machine {
	if cfg.Sanitize == nil {
		cfg.Sanitize = func(s string) string { return s }
	}
	return &Machine{cfg: cfg}
}

// Submit creates a submission in Collecting. A prior record still in
// Collecting is overwritten; one already in front of reviewers refuses with
// ErrPendingReview so a live review message is never silently stranded.
func (m *Machine) Submit(requesterID, username, originChannelID string, kind Kind, rawAmount string, attrs Attributes, anonymous bool) (*Submission, error) {
	amount, err := parseAmount(kind, rawAmount)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prior, ok := m.cfg.Store.Get(requesterID); ok && prior.Status != StatusCollecting {
		return nil, ErrPendingReview
	}

	sub := &Submission{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		Username:    username,
		OriginChan:  originChannelID,
		Kind:        kind,
		Amount:      amount,
		Anonymous:   anonymous,
		Status:      StatusCollecting,
		CreatedAt:   time.Now(),
		Attrs: Attributes{
			Category:    m.cfg.Sanitize(attrs.Category),
			Description: m.cfg.Sanitize(attrs.Description),
			Contact:     m.cfg.Sanitize(attrs.Contact),
		},
	}
	m.cfg.Store.Put(sub)
	return sub, nil
}

// AttachProof moves a Collecting submission to AwaitingReview and posts the
// review request with Approve/Reject controls to the reviewer channel.
func (m *Machine) AttachProof(requesterID, proofRef string) (*Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok || sub.Status != StatusCollecting {
		return nil, fmt.Errorf("attach proof for %s: %w", requesterID, ErrStaleAction)
	}

	ref, err := m.cfg.Gateway.SendPhoto(m.cfg.ReviewChannelID, proofRef,
		m.reviewCaption(sub), m.reviewControls(sub))
	if err != nil {
		return nil, &GatewayError{Op: "review request", Err: err}
	}

	sub.ProofRef = proofRef
	sub.ReviewMsg = ref
	sub.Status = StatusAwaitingReview
	return sub, nil
}

// Approve resolves a donation (ledger update + broadcast) or moves a sale
// listing to the price adjustment step.
func (m *Machine) Approve(reviewerID, requesterID string) error {
	if err := m.authorize(reviewerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok || sub.Status != StatusAwaitingReview {
		return fmt.Errorf("approve %s: %w", requesterID, ErrStaleAction)
	}

	if sub.Kind == KindDonation {
		return m.publishDonation(sub)
	}

	sub.Status = StatusAdjustingPrice
	caption := m.reviewCaption(sub) + "\n\nSelect a price increment:"
	if err := m.cfg.Gateway.EditCaption(sub.ReviewMsg, caption, m.adjustControls(sub)); err != nil {
		sub.Status = StatusAwaitingReview
		return &GatewayError{Op: "increment menu", Err: err}
	}
	return nil
}

// Reject terminates a submission from AwaitingReview or AdjustingPrice.
func (m *Machine) Reject(reviewerID, requesterID string) error {
	if err := m.authorize(reviewerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok || (sub.Status != StatusAwaitingReview && sub.Status != StatusAdjustingPrice) {
		return fmt.Errorf("reject %s: %w", requesterID, ErrStaleAction)
	}

	m.notifyRequester(sub, "Sorry, your submission could not be verified by the reviewers.")
	m.finalize(sub, StatusRejected, "❌ Rejected")
	return nil
}

// SelectIncrement applies a percentage from the configured menu and moves
// the listing to ReadyToPublish. Re-selection always recomputes from the
// declared price, so repeated select/go-back cycles never compound.
func (m *Machine) SelectIncrement(reviewerID, requesterID, rawPercent string) error {
	if err := m.authorize(reviewerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok || sub.Kind != KindSale ||
		(sub.Status != StatusAdjustingPrice && sub.Status != StatusReadyToPublish) {
		return fmt.Errorf("adjust %s: %w", requesterID, ErrStaleAction)
	}

	pct, err := decimal.NewFromString(rawPercent)
	if err != nil || !pricing.InMenu(m.cfg.Increments, pct) {
		return fmt.Errorf("adjust %s: percent %q not in menu: %w", requesterID, rawPercent, ErrStaleAction)
	}

	prevAdj, prevFinal, prevStatus := sub.Adjustment, sub.FinalPrice, sub.Status

	final := pricing.Apply(sub.Amount, pct)
	sub.Adjustment = &pct
	sub.FinalPrice = &final
	sub.Status = StatusReadyToPublish

	caption := fmt.Sprintf("%s\n\nIncrement: +%s%%\nFinal price: %s",
		m.reviewCaption(sub), pct.String(), final.StringFixed(2))
	if err := m.cfg.Gateway.EditCaption(sub.ReviewMsg, caption, m.publishControls(sub)); err != nil {
		sub.Adjustment, sub.FinalPrice, sub.Status = prevAdj, prevFinal, prevStatus
		return &GatewayError{Op: "publish menu", Err: err}
	}
	return nil
}

// Publish broadcasts a ReadyToPublish sale listing, or resolves a donation
// still in AwaitingReview (the donation path has no adjustment step).
func (m *Machine) Publish(reviewerID, requesterID string) error {
	if err := m.authorize(reviewerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok {
		return fmt.Errorf("publish %s: %w", requesterID, ErrStaleAction)
	}

	switch {
	case sub.Kind == KindDonation && sub.Status == StatusAwaitingReview:
		return m.publishDonation(sub)
	case sub.Kind == KindSale && sub.Status == StatusReadyToPublish:
		return m.publishSale(sub)
	default:
		return fmt.Errorf("publish %s in %s: %w", requesterID, sub.Status, ErrStaleAction)
	}
}

// GoBack steps ReadyToPublish back to AdjustingPrice (clearing the
// adjustment) or AdjustingPrice back to AwaitingReview. Control re-render
// only; no other data changes.
func (m *Machine) GoBack(reviewerID, requesterID string) error {
	if err := m.authorize(reviewerID); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, ok := m.cfg.Store.Get(requesterID)
	if !ok {
		return fmt.Errorf("back %s: %w", requesterID, ErrStaleAction)
	}

	switch sub.Status {
	case StatusReadyToPublish:
		prevAdj, prevFinal := sub.Adjustment, sub.FinalPrice
		sub.Adjustment, sub.FinalPrice = nil, nil
		sub.Status = StatusAdjustingPrice
		caption := m.reviewCaption(sub) + "\n\nSelect a price increment:"
		if err := m.cfg.Gateway.EditCaption(sub.ReviewMsg, caption, m.adjustControls(sub)); err != nil {
			sub.Adjustment, sub.FinalPrice = prevAdj, prevFinal
			sub.Status = StatusReadyToPublish
			return &GatewayError{Op: "increment menu", Err: err}
		}
		return nil
	case StatusAdjustingPrice:
		sub.Status = StatusAwaitingReview
		if err := m.cfg.Gateway.EditCaption(sub.ReviewMsg, m.reviewCaption(sub), m.reviewControls(sub)); err != nil {
			sub.Status = StatusAdjustingPrice
			return &GatewayError{Op: "review menu", Err: err}
		}
		return nil
	default:
		return fmt.Errorf("back %s in %s: %w", requesterID, sub.Status, ErrStaleAction)
	}
}

// HandleCallback is the single dispatch entry point for reviewer controls.
// Every failure mode is answered at the transport; nothing raises.
func (m *Machine) HandleCallback(cb gateway.Callback) {
	action, err := ParseAction(cb.Token)
	if err != nil {
		m.answer(cb, "This action is no longer available.")
		return
	}

	var ack string
	switch action.Verb {
	case VerbApprove:
		err = m.Approve(cb.ActorID, action.RequesterID)
		ack = "Approved."
	case VerbReject:
		err = m.Reject(cb.ActorID, action.RequesterID)
		ack = "Rejected."
	case VerbAdjust:
		err = m.SelectIncrement(cb.ActorID, action.RequesterID, action.Param)
	case VerbPost:
		err = m.Publish(cb.ActorID, action.RequesterID)
		ack = "Published."
	case VerbBack:
		err = m.GoBack(cb.ActorID, action.RequesterID)
	}

	switch {
	case err == nil:
		m.answer(cb, ack)
	case errors.Is(err, ErrUnauthorized):
		log.Printf("review: denied %s for %s", cb.Token, cb.ActorID)
		m.answer(cb, "")
	case errors.Is(err, ErrStaleAction):
		m.answer(cb, "This action is no longer available.")
	default:
		log.Printf("review: %s failed: %v", cb.Token, err)
		m.answer(cb, "Action failed. Please try again.")
	}
}

// publishDonation runs the ledger read-modify-write and public broadcast.
// Caller holds the machine mutex. If the broadcast never leaves, the record
// stays in AwaitingReview so the reviewer can retry.
func (m *Machine) publishDonation(sub *Submission) error {
	total := m.cfg.Ledger.ReadTotal()
	newTotal := total + sub.Amount.IntPart()

	broadcast := fmt.Sprintf("🎉 %s donated %s!\nTotal donations so far: %d/%d.",
		sub.DisplayName(), sub.Amount.String(), newTotal, m.cfg.Goal)
	if _, err := m.cfg.Gateway.SendText(m.cfg.PublicChannelID, broadcast); err != nil {
		return &GatewayError{Op: "donation broadcast", Err: err}
	}

	if err := m.cfg.Ledger.Commit(newTotal); err != nil {
		// Broadcast already left; the next read will undercount until a
		// commit lands, which the next approval performs.
		log.Printf("review: ledger commit after broadcast: %v", err)
	}

	m.notifyRequester(sub, fmt.Sprintf("Your donation of %s has been verified. Thank you for your generosity!",
		sub.Amount.String()))
	m.finalize(sub, StatusPublished, "✅ Approved")
	m.publishEvent(sub, newTotal)
	return nil
}

// publishSale broadcasts the listing at its final price. Caller holds the
// machine mutex.
func (m *Machine) publishSale(sub *Submission) error {
	post := fmt.Sprintf("🛒 For sale by %s: %s\nCategory: %s\nPrice: %s\nContact: %s",
		sub.DisplayName(), sub.Attrs.Description, sub.Attrs.Category,
		sub.FinalPrice.StringFixed(2), sub.Attrs.Contact)
	if _, err := m.cfg.Gateway.SendText(m.cfg.PublicChannelID, post); err != nil {
		return &GatewayError{Op: "sale broadcast", Err: err}
	}

	m.notifyRequester(sub, fmt.Sprintf("Your listing has been approved and published at %s.",
		sub.FinalPrice.StringFixed(2)))
	m.finalize(sub, StatusPublished, "✅ Published")
	m.publishEvent(sub, 0)
	return nil
}

// finalize marks a terminal status, strips the review message's controls,
// archives, and releases the record from the live index.
func (m *Machine) finalize(sub *Submission, status Status, note string) {
	sub.Status = status
	if !sub.ReviewMsg.IsZero() {
		caption := m.reviewCaption(sub) + "\n\n" + note
		if err := m.cfg.Gateway.EditCaption(sub.ReviewMsg, caption, nil); err != nil {
			log.Printf("review: edit review message: %v", err)
		}
	}
	if m.cfg.Archive != nil {
		if err := m.cfg.Archive.Archive(*sub); err != nil {
			log.Printf("review: archive %s: %v", sub.ID, err)
		}
	}
	m.cfg.Store.Remove(sub.RequesterID)
}

func (m *Machine) publishEvent(sub *Submission, total int64) {
	if m.cfg.Events == nil {
		return
	}
	ev := ApprovalEvent{
		ID:          sub.ID,
		Kind:        sub.Kind,
		RequesterID: sub.RequesterID,
		Amount:      sub.Amount.String(),
		Total:       total,
		Anonymous:   sub.Anonymous,
	}
	if sub.FinalPrice != nil {
		ev.FinalPrice = sub.FinalPrice.StringFixed(2)
	}
	if err := m.cfg.Events.PublishApproval(ev); err != nil {
		log.Printf("review: publish event %s: %v", sub.ID, err)
	}
}

func (m *Machine) notifyRequester(sub *Submission, text string) {
	if sub.OriginChan == "" {
		return
	}
	msg := fmt.Sprintf("@%s %s", sub.Username, text)
	if _, err := m.cfg.Gateway.SendText(sub.OriginChan, msg); err != nil {
		log.Printf("review: notify %s: %v", sub.RequesterID, err)
	}
}

func (m *Machine) authorize(reviewerID string) error {
	if !m.cfg.Gateway.HasRole(reviewerID, m.cfg.ReviewerRoleID) {
		return ErrUnauthorized
	}
	return nil
}

func (m *Machine) answer(cb gateway.Callback, text string) {
	if err := m.cfg.Gateway.AnswerCallback(cb, text); err != nil {
		log.Printf("review: answer callback: %v", err)
	}
}

func (m *Machine) reviewCaption(sub *Submission) string {
	if sub.Kind == KindDonation {
		return fmt.Sprintf("New donation claim from @%s\nAmount: %s",
			sub.Username, sub.Amount.String())
	}
	return fmt.Sprintf("New sale listing from @%s\nDeclared price: %s\nCategory: %s\nContact: %s\n\n%s",
		sub.Username, sub.Amount.String(), sub.Attrs.Category, sub.Attrs.Contact, sub.Attrs.Description)
}

func (m *Machine) reviewControls(sub *Submission) []gateway.Control {
	return []gateway.Control{
		{Label: "✅ Approve", Token: Action{Verb: VerbApprove, RequesterID: sub.RequesterID}.Token()},
		{Label: "❌ Reject", Token: Action{Verb: VerbReject, RequesterID: sub.RequesterID}.Token()},
	}
}

func (m *Machine) adjustControls(sub *Submission) []gateway.Control {
	controls := make([]gateway.Control, 0, len(m.cfg.Increments)+1)
	for _, pct := range m.cfg.Increments {
		controls = append(controls, gateway.Control{
			Label: "+" + pct.String() + "%",
			Token: Action{Verb: VerbAdjust, RequesterID: sub.RequesterID, Param: pct.String()}.Token(),
		})
	}
	controls = append(controls, gateway.Control{
		Label: "↩ Back",
		Token: Action{Verb: VerbBack, RequesterID: sub.RequesterID}.Token(),
	})
	return controls
}

func (m *Machine) publishControls(sub *Submission) []gateway.Control {
	return []gateway.Control{
		{Label: "📢 Post", Token: Action{Verb: VerbPost, RequesterID: sub.RequesterID}.Token()},
		{Label: "↩ Back", Token: Action{Verb: VerbBack, RequesterID: sub.RequesterID}.Token()},
	}
}

func parseAmount(kind Kind, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, &ValidationError{Field: fieldName(kind), Reason: "not a number"}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ValidationError{Field: fieldName(kind), Reason: "must be positive"}
	}
	if kind == KindDonation && !amount.IsInteger() {
		return decimal.Zero, &ValidationError{Field: fieldName(kind), Reason: "must be a whole number"}
	}
	return amount, nil
}

func fieldName(kind Kind) string {
	if kind == KindSale {
		return "price"
	}
	return "amount"
}
