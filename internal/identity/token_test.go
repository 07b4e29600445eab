package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("s3cret", "bluemind")
	token, err := v.Issue(Actor{ID: "admin-1", Name: "Ada Admin", Email: "ada@club.test"}, time.Minute)
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Actor{ID: "admin-1", Name: "Ada Admin", Email: "ada@club.test"}, actor)
}

func TestVerifierRejects(t *testing.T) {
	v := NewVerifier("s3cret", "bluemind")

	expired, err := v.Issue(Actor{ID: "a"}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	foreign, err := NewVerifier("other", "bluemind").Issue(Actor{ID: "a"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer, err := NewVerifier("s3cret", "elsewhere").Issue(Actor{ID: "a"}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(wrongIssuer)
	assert.ErrorIs(t, err, ErrInvalidToken)

	anonymous, err := v.Issue(Actor{}, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(anonymous)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActor(t *testing.T) {
	assert.ErrorIs(t, Actor{ID: "  "}.Validate(), ErrNoActor)
	assert.Equal(t, "x@y.z", Actor{ID: "1", Email: "x@y.z"}.DisplayName())
	assert.Equal(t, "1", Actor{ID: "1"}.DisplayName())

	ctx := WithActor(context.Background(), Actor{ID: "7"})
	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "7", got.ID)
}
