package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripsync-backend/internal/services"
)

func TestTokenService_RoundTrip(t *testing.T) {
	tokens := services.NewTokenService("test-secret")

	signed, err := tokens.Issue("trip-1", "member-1", true)
	require.NoError(t, err)

	claims, err := tokens.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "trip-1", claims.TripID)
	assert.Equal(t, "member-1", claims.MemberID)
	assert.True(t, claims.IsAdmin)
}

func TestTokenService_WrongSecret(t *testing.T) {
	signed, err := services.NewTokenService("secret-a").Issue("trip-1", "member-1", false)
	require.NoError(t, err)

	_, err = services.NewTokenService("secret-b").Validate(signed)
	assert.Error(t, err)
}

func TestTokenService_Garbage(t *testing.T) {
	_, err := services.NewTokenService("test-secret").Validate("not-a-token")
	assert.Error(t, err)
}
