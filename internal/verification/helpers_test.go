package verification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"onboard/internal/gateway"
	"onboard/internal/gateway/stub"
)

var fixedNow = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// stubGateway serves every provider from stubs, with optional YAML overrides.
func stubGateway(t *testing.T, fixtures string) *gateway.Gateway {
	t.Helper()
	f, err := stub.ParseFixtures([]byte(fixtures))
	require.NoError(t, err)
	reg, err := stub.NewRegistry(stub.WithFixtures(f), stub.WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	gw, err := gateway.New(reg, gateway.WithPolicy(gateway.Policy{Timeout: time.Second, MaxAttempts: 1}))
	require.NoError(t, err)
	return gw
}
