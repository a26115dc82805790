package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"vhrscraper/internal/export"
	"vhrscraper/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	statusCheck = statusCmd.Flags().Bool("check", false, "Also load the portal to confirm the cookies are accepted.")
	loginCookies = loginCmd.Flags().String("cookies", "", "Import a Netscape cookie file exported from a signed in browser.")
	loginTokens = loginCmd.Flags().String("tokens", "", "Import a token json file exported from a signed in browser.")
	loginPassword = loginCmd.Flags().Bool("password", false, "Sign in with the configured email and password.")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(clearCmd)
}

func cookieState(a *application) string {
	jar, err := a.store.ReadCookies()
	if err != nil {
		return "missing"
	}
	if jar.AuthenticatedAt(a.time.Now()) {
		return fmt.Sprintf("authenticated (%d cookies)", jar.Len())
	}
	return fmt.Sprintf("not authenticated (%d cookies)", jar.Len())
}

func tokenState(a *application) string {
	token, err := a.store.ReadToken()
	if errors.Is(err, session.ErrNoCredentials) {
		return "missing"
	}
	if err != nil {
		return "unreadable: " + err.Error()
	}
	now := a.time.Now()
	if token.ValidAt(now) {
		return "valid for " + session.FormatRemaining(token.TimeRemaining(now))
	}
	if token.RefreshToken != "" {
		return "expired, refreshable"
	}
	return "expired"
}

func renderStatus(a *application, out io.Writer) {
	summary := a.config.Summary()
	t := export.NewTable(out)
	t.SetTitle("Status")
	t.AppendHeader(table.Row{"Setting", "Value"})
	t.AppendRows([]table.Row{
		{"credentials configured", strconv.FormatBool(summary.HasCredentials)},
		{"cookies file", summary.CookiesFile},
		{"cookies", cookieState(a)},
		{"tokens file", summary.TokensFile},
		{"token", tokenState(a)},
		{"output dir", summary.OutputDir},
		{"delay range", summary.DelayRange},
		{"concurrency", strconv.Itoa(summary.Concurrency)},
		{"proxy", strconv.FormatBool(summary.Proxy)},
		{"database", summary.Database},
		{"notify", strconv.FormatBool(summary.Notify)},
	})
	t.Render()
}

var statusCheck *bool

var statusCmd = &cobra.Command{
	Use:   "status [--check]",
	Short: "Shows the configuration and the state of the stored credentials.",
	RunE: func(cmd *cobra.Command, args []string) error {
		renderStatus(app, cmd.OutOrStdout())
		if !*statusCheck {
			return nil
		}

		client, _, err := app.client(nil)
		if err != nil {
			return err
		}
		loggedIn, err := client.CheckLogin(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "portal session accepted:", loggedIn)
		return nil
	},
}

var (
	loginCookies  *string
	loginTokens   *string
	loginPassword *bool
)

func importCookies(a *application, path string) (*session.CookieJar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	jar, err := session.ParseCookies(f)
	if err != nil {
		return nil, err
	}
	return jar, a.store.SaveCookies(jar)
}

// importToken stamps tokens without a creation time as created now, browser
// exports usually leave it out.
func importToken(a *application, path string) (session.Token, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return session.Token{}, err
	}
	var token session.Token
	err = json.Unmarshal(contents, &token)
	if err != nil {
		return session.Token{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if token.AccessToken == "" {
		return session.Token{}, fmt.Errorf("%s has no access_token", path)
	}
	if _, ok := token.Created(); !ok {
		token.Stamp(a.time.Now())
	}
	return token, a.store.SaveToken(token)
}

var loginCmd = &cobra.Command{
	Use:   "login --cookies <cookies.txt> | --tokens <tokens.json> | --password",
	Short: "Stores the credentials scrapes authenticate with.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		switch {
		case *loginCookies != "":
			jar, err := importCookies(app, *loginCookies)
			if err != nil {
				return err
			}
			if !jar.AuthenticatedAt(app.time.Now()) {
				fmt.Fprintln(out, "warning: the imported cookies do not contain an active auth cookie")
			}
			fmt.Fprintf(out, "saved %d cookies to %s\n", jar.Len(), app.store.CookiesPath())
		case *loginTokens != "":
			_, err := importToken(app, *loginTokens)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "saved token to %s, %s\n", app.store.TokensPath(), tokenState(app))
		case *loginPassword:
			if !app.config.HasCredentials() {
				return errors.New("set email and password in the config or CARFAX_EMAIL and CARFAX_PASSWORD")
			}
			token, err := app.refresher().PasswordLogin(cmd.Context(), app.config.Email, app.config.Password)
			if err != nil {
				return err
			}
			err = app.store.SaveToken(token)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "signed in as %s, %s\n", app.config.Email, tokenState(app))
		default:
			return errors.New("one of --cookies, --tokens or --password is required")
		}
		return nil
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchanges the stored refresh token for a new access token.",
	RunE: func(cmd *cobra.Command, args []string) error {
		holder := app.holder()
		if _, ok := holder.Token(); !ok {
			return errors.New("no token stored, run `vhrscraper login` first")
		}
		token, err := holder.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(
			cmd.OutOrStdout(),
			"refreshed token, valid for %s\n",
			session.FormatRemaining(token.TimeRemaining(app.time.Now())),
		)
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes the stored cookies and tokens.",
	RunE: func(cmd *cobra.Command, args []string) error {
		err := app.store.Clear()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cleared stored credentials")
		return nil
	},
}
