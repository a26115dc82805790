package commands

import (
	"context"
	"errors"
	"log/slog"
	"vhrscraper/internal/components/telemetry"
	"vhrscraper/internal/scrapers/carfax"
	"vhrscraper/internal/service"
	"vhrscraper/internal/session"
)

func (a *application) dump() (telemetry.MessageOutput, error) {
	if a.config.DumpDir == "" {
		return nil, nil
	}
	out, err := telemetry.NewDirOutput(a.config.DumpDir)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *application) client(dump telemetry.MessageOutput) (*carfax.Client, *session.CookieJar, error) {
	client, err := carfax.NewClient(a.config.ClientOptions(dump), a.tel)
	if err != nil {
		return nil, nil, err
	}
	jar, ok := a.store.LoadCookies()
	if !ok {
		jar = session.NewCookieJar()
	}
	client.SetCookies(jar.HTTPCookies(a.time.Now()))
	return client, jar, nil
}

// backend wires the page driver, the api client and the stored credentials.
func (a *application) backend() (service.Backend, error) {
	dump, err := a.dump()
	if err != nil {
		return service.Backend{}, err
	}
	client, jar, err := a.client(dump)
	if err != nil {
		return service.Backend{}, err
	}

	holder := a.holder()
	if token, ok := holder.Token(); ok && token.ValidAt(a.time.Now()) {
		client.SetBearer(token.AccessToken)
	}

	return service.Backend{
		Pages:   client,
		API:     carfax.NewAPIClient(a.config.APIOptions(dump), a.time, a.tel),
		Holder:  holder,
		Cookies: jar,
	}, nil
}

// login signs in with the configured credentials when the holder has no
// token it could refresh.
func (a *application) login(ctx context.Context, holder *session.Holder) error {
	token, ok := holder.Token()
	if ok && (token.ValidAt(a.time.Now()) || token.RefreshToken != "") {
		return nil
	}
	if !a.config.HasCredentials() {
		return errors.New("no usable token stored and no credentials configured, run `vhrscraper login` first")
	}

	slog.Info("signing in with configured credentials", "email", a.config.Email)
	token, err := a.refresher().PasswordLogin(ctx, a.config.Email, a.config.Password)
	if err != nil {
		return err
	}
	holder.Set(token)
	return a.store.SaveToken(token)
}
