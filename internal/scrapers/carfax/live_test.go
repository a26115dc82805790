package carfax

import (
	"context"
	"testing"
	devenv "vhrscraper/dev/env"
	"vhrscraper/internal/components/chrono"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/session"

	"github.com/stretchr/testify/require"
)

type liveConfig struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Vin      string `json:"vin"`
}

func TestLive(t *testing.T) {
	config, err := devenv.GetStateConfig[liveConfig]("carfax.json5")
	if err != nil {
		t.Skip("no live credentials in dev/.state/carfax.json5:", err)
	}

	ctx := context.Background()
	clock, err := chrono.NewStandardImpl("")
	require.NoError(t, err)
	tel := telemetry.SlogAPI{}

	refresher := session.NewOAuthRefresher(session.DefaultTokenEndpoint, "", clock, tel)
	token, err := refresher.PasswordLogin(ctx, config.Email, config.Password)
	require.NoError(t, err)
	require.True(t, token.ValidAt(clock.Now()))

	api := NewAPIClient(APIOptions{}, clock, tel)
	r, err := api.FetchReport(ctx, config.Vin, token)
	require.NoError(t, err)
	require.Equal(t, config.Vin, r.VIN)
	t.Log(r.Vehicle, r.Owners, r.TitleStatus)
}
