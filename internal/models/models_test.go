package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDirectPairKey_OrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	require.Equal(t, DirectPairKey(a, b), DirectPairKey(b, a))
	require.NotEqual(t, DirectPairKey(a, b), DirectPairKey(a, uuid.New()))
}

func TestParticipant_Unread(t *testing.T) {
	req := require.New(t)
	p := Participant{LastReadSeq: 3}

	req.EqualValues(0, p.Unread(3))
	req.EqualValues(0, p.Unread(1))
	req.EqualValues(4, p.Unread(7))
}

func TestRoom_Participant(t *testing.T) {
	req := require.New(t)
	alice, bob := uuid.New(), uuid.New()
	room := Room{Participants: []Participant{{UserID: alice, LastReadSeq: 2}}}

	req.True(room.HasParticipant(alice))
	req.False(room.HasParticipant(bob))

	p, ok := room.Participant(alice)
	req.True(ok)
	req.EqualValues(2, p.LastReadSeq)
}
