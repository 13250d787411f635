package fake

import (
	"context"
	"testing"

	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
	"github.com/stretchr/testify/require"
)

func TestFakeClient_CreateIntent(t *testing.T) {
	c := New()
	req := payprovider.IntentRequest{AmountMinor: 10000, Currency: "usd", ParcelID: "p1"}

	in1, err := c.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	require.NotEmpty(t, in1.ID)
	require.Contains(t, in1.ClientSecret, "_secret_")

	in2, err := c.CreateIntent(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, in1, in2)
}

func TestFakeClient_CreateIntent_BadAmount(t *testing.T) {
	c := New()
	_, err := c.CreateIntent(context.Background(), payprovider.IntentRequest{AmountMinor: 0})
	require.Error(t, err)
}
