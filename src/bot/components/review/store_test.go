package review

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSingleSlotPerRequester(t *testing.T) {
	s := NewMemoryStore()

	s.Put(&Submission{RequesterID: "u1", Amount: decimal.NewFromInt(100), CreatedAt: time.Now()})
	s.Put(&Submission{RequesterID: "u1", Amount: decimal.NewFromInt(200), CreatedAt: time.Now()})

	sub, ok := s.Get("u1")
	require.True(t, ok)
	assert.Equal(t, "200", sub.Amount.String())
	assert.Len(t, s.List(), 1)

	s.Remove("u1")
	_, ok = s.Get("u1")
	assert.False(t, ok)
	assert.Empty(t, s.List())
}

func TestMemoryStoreListOrdersByAge(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	s.Put(&Submission{RequesterID: "u2", CreatedAt: now.Add(time.Minute)})
	s.Put(&Submission{RequesterID: "u1", CreatedAt: now})

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "u1", list[0].RequesterID)
	assert.Equal(t, "u2", list[1].RequesterID)
}
