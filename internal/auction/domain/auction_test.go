package domain

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newActive(t *testing.T) *Auction {
	t.Helper()
	a, err := NewAuction("room_alice_1", "alice", "Lamp", "brass", 100, 1, t0)
	require.NoError(t, err)
	return a
}

func TestNewAuction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		title    string
		desc     string
		price    float64
		duration int
		wantErr  bool
	}{
		{name: "valid", title: "Lamp", price: 100, duration: 1},
		{name: "free_start", title: "Lamp", price: 0, duration: 5},
		{name: "blank_title", title: "   ", price: 10, duration: 1, wantErr: true},
		{name: "long_title", title: strings.Repeat("x", MaxTitleLength+1), price: 10, duration: 1, wantErr: true},
		{name: "long_description", title: "Lamp", desc: strings.Repeat("d", MaxDescriptionLength+1), price: 10, duration: 1, wantErr: true},
		{name: "negative_price", title: "Lamp", price: -1, duration: 1, wantErr: true},
		{name: "nan_price", title: "Lamp", price: math.NaN(), duration: 1, wantErr: true},
		{name: "zero_duration", title: "Lamp", price: 10, duration: 0, wantErr: true},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a, err := NewAuction("room_alice_1", "alice", tc.title, tc.desc, tc.price, tc.duration, t0)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidAuction)
				return
			}
			require.NoError(t, err)
			require.Equal(t, StatusActive, a.Status)
			require.Equal(t, tc.price, a.CurrentBid)
			require.Nil(t, a.HighestBidder)
			require.Equal(t, t0.Add(time.Duration(tc.duration)*time.Minute), a.EndTime)
		})
	}
}

func TestAuction_ApplyBid(t *testing.T) {
	t.Parallel()

	a := newActive(t)

	require.NoError(t, a.ApplyBid("bob", 150, t0))
	require.Equal(t, 150.0, a.CurrentBid)
	require.True(t, a.IsHighestBidder("bob"))

	require.ErrorIs(t, a.ApplyBid("bob", 1000, t0), ErrConsecutiveBid)
	require.ErrorIs(t, a.ApplyBid("carol", 150, t0), ErrBidTooLow)
	require.ErrorIs(t, a.ApplyBid("carol", 120, t0), ErrBidTooLow)
	require.ErrorIs(t, a.ApplyBid("carol", math.Inf(1), t0), ErrInvalidAmount)
	require.ErrorIs(t, a.ApplyBid("carol", -5, t0), ErrInvalidAmount)
	require.Equal(t, 150.0, a.CurrentBid)

	require.NoError(t, a.ApplyBid("carol", 160, t0))
	require.True(t, a.IsHighestBidder("carol"))
}

func TestAuction_ConsecutiveBeatsAmountCheck(t *testing.T) {
	t.Parallel()

	a := newActive(t)
	require.NoError(t, a.ApplyBid("bob", 150, t0))
	// a too-low amount from the highest bidder is still reported as consecutive
	require.ErrorIs(t, a.CheckBid("bob", 10), ErrConsecutiveBid)
	require.True(t, IsSoft(a.CheckBid("bob", 10)))
}

func TestAuction_Presence(t *testing.T) {
	t.Parallel()

	a := newActive(t)
	a.AddOnline("bob", t0)
	a.AddOnline("bob", t0)
	a.AddOnline("carol", t0)
	require.Equal(t, []string{"bob", "carol"}, a.OnlineParticipants)

	require.True(t, a.RemoveOnline("bob", t0))
	require.False(t, a.RemoveOnline("bob", t0))
	require.Equal(t, []string{"carol"}, a.OnlineParticipants)
	require.Equal(t, []string{"bob", "carol"}, a.JoinedParticipants)
}

func TestAuction_Finish(t *testing.T) {
	t.Parallel()

	a := newActive(t)
	require.NoError(t, a.ApplyBid("bob", 150, t0))
	require.True(t, a.IsExpired(t0.Add(time.Minute)))

	require.NoError(t, a.Finish(t0.Add(time.Minute)))
	require.Equal(t, StatusEnded, a.Status)
	require.Equal(t, "bob", *a.Winner)
	require.Equal(t, 150.0, a.FinalPrice)
	require.False(t, a.IsExpired(t0.Add(time.Hour)))

	require.ErrorIs(t, a.Finish(t0.Add(time.Hour)), ErrAuctionEnded)
	require.ErrorIs(t, a.CheckBid("carol", 500), ErrAuctionEnded)
}

func TestAuction_FinishWithoutBids(t *testing.T) {
	t.Parallel()

	a := newActive(t)
	require.NoError(t, a.Finish(t0))
	require.Nil(t, a.Winner)
	require.Equal(t, 100.0, a.FinalPrice)
}

func TestAuction_Clone(t *testing.T) {
	t.Parallel()

	a := newActive(t)
	a.AddOnline("bob", t0)
	require.NoError(t, a.ApplyBid("bob", 150, t0))

	c := a.Clone()
	c.AddOnline("carol", t0)
	*c.HighestBidder = "mallory"

	require.Equal(t, []string{"bob"}, a.OnlineParticipants)
	require.Equal(t, "bob", *a.HighestBidder)
}
