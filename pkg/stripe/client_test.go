package stripe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classbridge/billing-renewals/pkg/config"
)

func TestNewClientValidatesKeyAgainstEnvironment(t *testing.T) {
	ctx := context.Background()

	_, err := NewClient(ctx, config.StripeConfig{}, nil)
	require.True(t, errors.Is(err, errSecretRequired))

	_, err = NewClient(ctx, config.StripeConfig{Secret: "sk_live_abc", Env: "test"}, nil)
	require.Error(t, err)

	_, err = NewClient(ctx, config.StripeConfig{Secret: "sk_test_abc", Env: "staging"}, nil)
	require.True(t, errors.Is(err, errInvalidStripeEnv))

	client, err := NewClient(ctx, config.StripeConfig{Secret: "sk_test_abc"}, nil)
	require.NoError(t, err)
	assert.Equal(t, testEnv, client.Environment())
	assert.False(t, client.IsLive())

	live, err := NewClient(ctx, config.StripeConfig{Secret: "rk_live_abc", Env: "LIVE"}, nil)
	require.NoError(t, err)
	assert.True(t, live.IsLive())
}

func TestNilClientAccessors(t *testing.T) {
	var c *Client
	assert.Equal(t, "", c.Environment())
	assert.False(t, c.IsLive())
}
