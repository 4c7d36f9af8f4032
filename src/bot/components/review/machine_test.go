package review

import (
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stake-plus/fundcomms/src/bot/components/gateway"
	"github.com/stake-plus/fundcomms/src/bot/components/ledger"
	"github.com/stake-plus/fundcomms/src/bot/components/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	chanReview = "review"
	chanPublic = "public"
	chanLedger = "ledger"
	chanOrigin = "origin"

	reviewer = "rev"
	modRole  = "modrole"
)

func newTestMachine(t *testing.T) (*Machine, *gateway.Fake, *MemoryStore) {
	t.Helper()
	fake := gateway.NewFake()
	fake.Roles[reviewer] = []string{modRole}

	store := NewMemoryStore()
	led := ledger.New(fake, chanLedger, ledger.ModeAppend)
	menu, err := pricing.ParseMenu("5,7.5,10,15,20")
	require.NoError(t, err)

	m := NewMachine(Config{
		Gateway:         fake,
		Store:           store,
		Ledger:          led,
		ReviewChannelID: chanReview,
		PublicChannelID: chanPublic,
		ReviewerRoleID:  modRole,
		Goal:            100000,
		Increments:      menu,
	})
	return m, fake, store
}

func mustSubmit(t *testing.T, m *Machine, id, user string, kind Kind, amount string, attrs Attributes) *Submission {
	t.Helper()
	sub, err := m.Submit(id, user, chanOrigin, kind, amount, attrs, false)
	require.NoError(t, err)
	return sub
}

func mustAttach(t *testing.T, m *Machine, id string) *Submission {
	t.Helper()
	sub, err := m.AttachProof(id, "https://cdn.example/proof.png")
	require.NoError(t, err)
	return sub
}

func TestDonationApprovalUpdatesLedger(t *testing.T) {
	m, fake, store := newTestMachine(t)
	fake.Seed(chanLedger, "Total Donations: 1000")

	mustSubmit(t, m, "u1", "alice", KindDonation, "500", Attributes{})
	sub := mustAttach(t, m, "u1")
	assert.Equal(t, StatusAwaitingReview, sub.Status)
	require.Len(t, fake.Photos, 1)
	assert.Contains(t, fake.Photos[0].Caption, "500")

	require.NoError(t, m.Approve(reviewer, "u1"))

	broadcast := fake.LastText(chanPublic)
	assert.Contains(t, broadcast, "500")
	assert.Contains(t, broadcast, "1500")
	assert.Contains(t, broadcast, "@alice")

	assert.Equal(t, "Total Donations: 1500", fake.LastText(chanLedger))

	_, live := store.Get("u1")
	assert.False(t, live, "record must leave the live index after publication")

	// Requester got a thank-you in their origin channel.
	assert.Contains(t, fake.LastText(chanOrigin), "verified")
}

func TestAnonymousDonationHidesName(t *testing.T) {
	m, fake, _ := newTestMachine(t)

	_, err := m.Submit("u1", "alice", chanOrigin, KindDonation, "250", Attributes{}, true)
	require.NoError(t, err)
	mustAttach(t, m, "u1")
	require.NoError(t, m.Approve(reviewer, "u1"))

	broadcast := fake.LastText(chanPublic)
	assert.Contains(t, broadcast, "anonymous supporter")
	assert.NotContains(t, broadcast, "@alice")
}

func TestSaleFlowPublishesFinalPrice(t *testing.T) {
	m, fake, store := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "100",
		Attributes{Category: "books", Description: "box of novels", Contact: "DM bob"})
	mustAttach(t, m, "u2")

	require.NoError(t, m.Approve(reviewer, "u2"))
	sub, ok := store.Get("u2")
	require.True(t, ok)
	assert.Equal(t, StatusAdjustingPrice, sub.Status)
	assert.Nil(t, sub.FinalPrice)

	require.NoError(t, m.SelectIncrement(reviewer, "u2", "20"))
	assert.Equal(t, StatusReadyToPublish, sub.Status)
	require.NotNil(t, sub.FinalPrice)
	assert.Equal(t, "120.00", sub.FinalPrice.StringFixed(2))

	require.NoError(t, m.Publish(reviewer, "u2"))

	post := fake.LastText(chanPublic)
	assert.Contains(t, post, "120.00")
	assert.NotContains(t, post, "Price: 100")
	assert.Contains(t, post, "box of novels")

	_, live := store.Get("u2")
	assert.False(t, live)
}

func TestSelectIncrementNeverCompounds(t *testing.T) {
	m, _, store := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "100", Attributes{})
	mustAttach(t, m, "u2")
	require.NoError(t, m.Approve(reviewer, "u2"))

	require.NoError(t, m.SelectIncrement(reviewer, "u2", "20"))
	sub, _ := store.Get("u2")
	first := sub.FinalPrice.StringFixed(2)

	// Re-selecting the same percent recomputes from the declared price.
	require.NoError(t, m.SelectIncrement(reviewer, "u2", "20"))
	assert.Equal(t, first, sub.FinalPrice.StringFixed(2))

	// Go back and select again: still the original result.
	require.NoError(t, m.GoBack(reviewer, "u2"))
	assert.Nil(t, sub.FinalPrice)
	assert.Nil(t, sub.Adjustment)
	require.NoError(t, m.SelectIncrement(reviewer, "u2", "20"))
	assert.Equal(t, first, sub.FinalPrice.StringFixed(2))
}

func TestGoBackToReviewStep(t *testing.T) {
	m, _, store := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "100", Attributes{})
	mustAttach(t, m, "u2")
	require.NoError(t, m.Approve(reviewer, "u2"))
	require.NoError(t, m.GoBack(reviewer, "u2"))

	sub, _ := store.Get("u2")
	assert.Equal(t, StatusAwaitingReview, sub.Status)

	// The approve control works again.
	require.NoError(t, m.Approve(reviewer, "u2"))
	assert.Equal(t, StatusAdjustingPrice, sub.Status)
}

func TestOffMenuPercentIsStale(t *testing.T) {
	m, _, _ := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "100", Attributes{})
	mustAttach(t, m, "u2")
	require.NoError(t, m.Approve(reviewer, "u2"))

	assert.ErrorIs(t, m.SelectIncrement(reviewer, "u2", "33"), ErrStaleAction)
	assert.ErrorIs(t, m.SelectIncrement(reviewer, "u2", "banana"), ErrStaleAction)
}

func TestSubmitValidation(t *testing.T) {
	m, _, store := newTestMachine(t)

	tests := []struct {
		kind   Kind
		amount string
	}{
		{KindDonation, "abc"},
		{KindDonation, "-5"},
		{KindDonation, "0"},
		{KindDonation, "10.5"}, // donations are whole numbers
		{KindSale, "free"},
		{KindSale, "-1"},
	}

	for _, tt := range tests {
		_, err := m.Submit("u1", "alice", chanOrigin, tt.kind, tt.amount, Attributes{}, false)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "amount %q", tt.amount)
	}

	// Nothing was stored; the requester just gets re-prompted.
	assert.Empty(t, store.List())
}

func TestResubmissionRules(t *testing.T) {
	m, _, store := newTestMachine(t)

	mustSubmit(t, m, "u1", "alice", KindDonation, "100", Attributes{})

	// Still collecting: overwrite is allowed.
	sub := mustSubmit(t, m, "u1", "alice", KindDonation, "200", Attributes{})
	assert.Equal(t, "200", sub.Amount.String())
	assert.Len(t, store.List(), 1)

	// Once in front of reviewers, a new submission is refused.
	mustAttach(t, m, "u1")
	_, err := m.Submit("u1", "alice", chanOrigin, KindDonation, "300", Attributes{}, false)
	assert.ErrorIs(t, err, ErrPendingReview)
}

func TestStaleTransitionsLeaveStateUntouched(t *testing.T) {
	m, fake, store := newTestMachine(t)
	fake.Seed(chanLedger, "Total Donations: 1000")

	// No record at all.
	assert.ErrorIs(t, m.Approve(reviewer, "ghost"), ErrStaleAction)
	assert.ErrorIs(t, m.Reject(reviewer, "ghost"), ErrStaleAction)
	assert.ErrorIs(t, m.Publish(reviewer, "ghost"), ErrStaleAction)
	assert.ErrorIs(t, m.GoBack(reviewer, "ghost"), ErrStaleAction)

	// Record in the wrong state.
	mustSubmit(t, m, "u1", "alice", KindDonation, "100", Attributes{})
	assert.ErrorIs(t, m.Approve(reviewer, "u1"), ErrStaleAction)
	assert.ErrorIs(t, m.SelectIncrement(reviewer, "u1", "20"), ErrStaleAction)

	// Ledger and record untouched.
	assert.Equal(t, "Total Donations: 1000", fake.LastText(chanLedger))
	sub, ok := store.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusCollecting, sub.Status)
	assert.Empty(t, fake.Texts)
}

func TestRejectNotifiesAndReleases(t *testing.T) {
	m, fake, store := newTestMachine(t)

	mustSubmit(t, m, "u1", "alice", KindDonation, "100", Attributes{})
	mustAttach(t, m, "u1")
	require.NoError(t, m.Reject(reviewer, "u1"))

	_, live := store.Get("u1")
	assert.False(t, live)
	assert.Contains(t, fake.LastText(chanOrigin), "could not be verified")

	// Review message got its controls stripped.
	require.NotEmpty(t, fake.CaptionEdits)
	last := fake.CaptionEdits[len(fake.CaptionEdits)-1]
	assert.Contains(t, last.Text, "Rejected")
	assert.Empty(t, last.Controls)
}

func TestUnauthorizedReviewerIsDenied(t *testing.T) {
	m, fake, store := newTestMachine(t)

	mustSubmit(t, m, "u1", "alice", KindDonation, "100", Attributes{})
	mustAttach(t, m, "u1")

	assert.ErrorIs(t, m.Approve("intruder", "u1"), ErrUnauthorized)
	assert.ErrorIs(t, m.Reject("intruder", "u1"), ErrUnauthorized)

	sub, _ := store.Get("u1")
	assert.Equal(t, StatusAwaitingReview, sub.Status)
	assert.Empty(t, fake.LastText(chanPublic))
}

func TestAttachProofGatewayFailure(t *testing.T) {
	m, fake, store := newTestMachine(t)
	fake.FailChannels[chanReview] = true

	mustSubmit(t, m, "u1", "alice", KindDonation, "100", Attributes{})
	_, err := m.AttachProof("u1", "proof")

	var ge *GatewayError
	assert.ErrorAs(t, err, &ge)

	sub, _ := store.Get("u1")
	assert.Equal(t, StatusCollecting, sub.Status)
	assert.Empty(t, sub.ProofRef)

	// The operator retries once the transport recovers.
	fake.FailChannels[chanReview] = false
	_, err = m.AttachProof("u1", "proof")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingReview, sub.Status)
}

func TestBroadcastFailureDoesNotPublish(t *testing.T) {
	m, fake, store := newTestMachine(t)
	fake.Seed(chanLedger, "Total Donations: 1000")
	fake.FailChannels[chanPublic] = true

	mustSubmit(t, m, "u1", "alice", KindDonation, "500", Attributes{})
	mustAttach(t, m, "u1")

	var ge *GatewayError
	assert.ErrorAs(t, m.Approve(reviewer, "u1"), &ge)

	// Record stays reviewable; ledger untouched.
	sub, ok := store.Get("u1")
	require.True(t, ok)
	assert.Equal(t, StatusAwaitingReview, sub.Status)
	assert.Equal(t, "Total Donations: 1000", fake.LastText(chanLedger))

	// Retry succeeds after the transport recovers.
	fake.FailChannels[chanPublic] = false
	require.NoError(t, m.Approve(reviewer, "u1"))
	assert.Equal(t, "Total Donations: 1500", fake.LastText(chanLedger))
}

func TestIncrementMenuEditFailureReverts(t *testing.T) {
	m, fake, store := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "100", Attributes{})
	mustAttach(t, m, "u2")

	fake.FailEdits = true
	var ge *GatewayError
	assert.ErrorAs(t, m.Approve(reviewer, "u2"), &ge)

	sub, _ := store.Get("u2")
	assert.Equal(t, StatusAwaitingReview, sub.Status)

	fake.FailEdits = false
	require.NoError(t, m.Approve(reviewer, "u2"))
	assert.Equal(t, StatusAdjustingPrice, sub.Status)
}

func TestHandleCallbackDispatch(t *testing.T) {
	m, fake, store := newTestMachine(t)
	fake.Seed(chanLedger, "Total Donations: 0")

	mustSubmit(t, m, "u1", "alice", KindDonation, "50", Attributes{})
	mustAttach(t, m, "u1")

	m.HandleCallback(gateway.Callback{
		ActorID: reviewer,
		Token:   Action{Verb: VerbApprove, RequesterID: "u1"}.Token(),
	})

	require.NotEmpty(t, fake.Answers)
	assert.Equal(t, "Approved.", fake.Answers[len(fake.Answers)-1])
	_, live := store.Get("u1")
	assert.False(t, live)
	assert.Equal(t, "Total Donations: 50", fake.LastText(chanLedger))
}

func TestHandleCallbackStaleAndMalformed(t *testing.T) {
	m, fake, _ := newTestMachine(t)

	for _, token := range []string{"approve_ghost", "nuke_u1", "garbage"} {
		m.HandleCallback(gateway.Callback{ActorID: reviewer, Token: token})
	}

	require.Len(t, fake.Answers, 3)
	for _, answer := range fake.Answers {
		assert.True(t, strings.Contains(answer, "no longer available"), "answer %q", answer)
	}
}

func TestHandleCallbackUnauthorizedIsSilent(t *testing.T) {
	m, fake, store := newTestMachine(t)

	mustSubmit(t, m, "u1", "alice", KindDonation, "50", Attributes{})
	mustAttach(t, m, "u1")

	m.HandleCallback(gateway.Callback{
		ActorID: "intruder",
		Token:   Action{Verb: VerbApprove, RequesterID: "u1"}.Token(),
	})

	require.Len(t, fake.Answers, 1)
	assert.Empty(t, fake.Answers[0])
	sub, _ := store.Get("u1")
	assert.Equal(t, StatusAwaitingReview, sub.Status)
}

// Two raw read/commit pairs interleaved without serialization lose a delta.
// This documents the accepted race the machine's critical section closes.
func TestLedgerRaceWithoutSerialization(t *testing.T) {
	fake := gateway.NewFake()
	led := ledger.New(fake, chanLedger, ledger.ModeAppend)

	readA := led.ReadTotal() // 0
	readB := led.ReadTotal() // 0, second approval reads before first commits
	require.NoError(t, led.Commit(readA+10))
	require.NoError(t, led.Commit(readB+20))

	assert.Equal(t, int64(20), led.ReadTotal(), "last writer wins, first delta lost")
}

func TestConcurrentApprovalsSerialize(t *testing.T) {
	m, fake, _ := newTestMachine(t)

	mustSubmit(t, m, "u1", "alice", KindDonation, "10", Attributes{})
	mustAttach(t, m, "u1")
	mustSubmit(t, m, "u2", "bob", KindDonation, "20", Attributes{})
	mustAttach(t, m, "u2")

	var wg sync.WaitGroup
	for _, id := range []string{"u1", "u2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			assert.NoError(t, m.Approve(reviewer, id))
		}(id)
	}
	wg.Wait()

	// Both deltas land regardless of scheduling.
	total, ok := ledger.ParseTotal(fake.LastText(chanLedger))
	require.True(t, ok)
	assert.Equal(t, int64(30), total)
}

func TestFinalPriceInvariant(t *testing.T) {
	m, _, store := newTestMachine(t)

	mustSubmit(t, m, "u2", "bob", KindSale, "80", Attributes{})
	sub, _ := store.Get("u2")
	assert.Nil(t, sub.FinalPrice, "no final price before the adjustment step")

	mustAttach(t, m, "u2")
	require.NoError(t, m.Approve(reviewer, "u2"))
	assert.Nil(t, sub.FinalPrice)

	require.NoError(t, m.SelectIncrement(reviewer, "u2", "7.5"))
	require.NotNil(t, sub.FinalPrice)
	want := pricing.Apply(decimal.NewFromInt(80), decimal.RequireFromString("7.5"))
	assert.True(t, sub.FinalPrice.Equal(want))
}
