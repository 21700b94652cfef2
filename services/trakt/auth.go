package trakt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"

	"traktsync/config"
)

// SettingsStore is the slice of the settings manager the token lifecycle
// needs: read the latest settings, write them back after a token mutation.
type SettingsStore interface {
	Load() (*config.Settings, error)
	Save(*config.Settings) error
}

// Prompter blocks until the operator confirms they completed a step. The
// device flow is paced by these confirmations rather than a timer: this tool
// runs interactively exactly once during setup.
type Prompter interface {
	Confirm(message string) error
}

// StdinPrompter prints the message and waits for ENTER.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

// Confirm writes the prompt and blocks until a line (or EOF) is read.
func (p *StdinPrompter) Confirm(message string) error {
	fmt.Fprint(p.Out, message)
	if _, err := bufio.NewReader(p.In).ReadString('\n'); err != nil && err != io.EOF {
		return fmt.Errorf("read confirmation: %w", err)
	}
	return nil
}

// Authenticator owns the OAuth token lifecycle: the device-authorization
// grant, the refresh exchange, and persisting tokens through the store.
// Tokens are always written as a pair and flushed before it returns.
type Authenticator struct {
	client *Client
	store  SettingsStore
	prompt Prompter
	out    io.Writer
	logger zerolog.Logger
}

// NewAuthenticator creates an authenticator over the given client and store.
func NewAuthenticator(client *Client, store SettingsStore, prompt Prompter, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		client: client,
		store:  store,
		prompt: prompt,
		out:    os.Stdout,
		logger: logger,
	}
}

// SetOutput overrides where operator-facing messages are written.
func (a *Authenticator) SetOutput(out io.Writer) {
	a.out = out
}

// Authenticate runs the device-authorization grant: request a device code,
// show the verification URL and user code, then poll for the token once the
// operator confirms. A pending poll prompts again and retries; the loop is
// unbounded on purpose, paced entirely by the operator. On success both
// tokens are persisted in a single save.
func (a *Authenticator) Authenticate() error {
	code, err := a.client.GetDeviceCode()
	if err != nil {
		return err
	}
	a.logger.Debug().Str("user_code", code.UserCode).Msg("device code issued")

	fmt.Fprintf(a.out, "Please go to %s and insert the following code: %q\n", code.VerificationURL, code.UserCode)
	if err := a.prompt.Confirm("I have authorized the application! Press ENTER to continue: "); err != nil {
		return err
	}

	var token *TokenResponse
	for {
		token, err = a.client.PollForToken(code.DeviceCode)
		if err == nil {
			break
		}
		if errors.Is(err, ErrAuthorizationPending) {
			if err := a.prompt.Confirm("The device hasn't been authorized yet, please do so. Press ENTER to continue: "); err != nil {
				return err
			}
			continue
		}
		return err
	}

	settings, err := a.store.Load()
	if err != nil {
		return err
	}
	settings.Trakt.SetTokens(token.AccessToken, token.RefreshToken)
	if err := a.store.Save(settings); err != nil {
		return err
	}

	a.logger.Info().Msg("device authorization complete")
	fmt.Fprintln(a.out, "Successfully configured your Trakt.tv sync!")
	return nil
}

// Refresh exchanges the stored refresh token for a new token pair and
// persists both. Nothing is written when the exchange fails.
func (a *Authenticator) Refresh() error {
	settings, err := a.store.Load()
	if err != nil {
		return err
	}
	refreshToken, err := settings.Trakt.RequireRefreshToken()
	if err != nil {
		return err
	}

	token, err := a.client.RefreshAccessToken(refreshToken)
	if err != nil {
		return err
	}

	settings.Trakt.SetTokens(token.AccessToken, token.RefreshToken)
	if err := a.store.Save(settings); err != nil {
		return err
	}

	a.logger.Info().Msg("access token refreshed")
	fmt.Fprintln(a.out, "Refreshed access token successfully!")
	return nil
}

// AccessToken returns the currently persisted access token. No network calls.
func (a *Authenticator) AccessToken() (string, error) {
	settings, err := a.store.Load()
	if err != nil {
		return "", err
	}
	return settings.Trakt.RequireAccessToken()
}
