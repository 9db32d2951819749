package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"parley/internal/api"
	"parley/internal/session"

	"golang.org/x/term"
)

// Login authenticates against the server and persists the resulting
// session. The password is read from the terminal, never from argv.
func Login(ctx context.Context, email string, apiClient *api.Client, sessions *session.Store) error {
	fmt.Printf("Password for %s: ", email)
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	resp, err := apiClient.Login(ctx, email, string(password))
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	sess := session.Session{
		Token: resp.Token,
		User:  resp.User,
	}
	if resp.TokenExpiry > 0 {
		sess.ExpiresAt = time.Unix(resp.TokenExpiry, 0)
	}
	if err := sessions.Save(sess); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	fmt.Printf("\nLogged in as %s <%s>\n", resp.User.DisplayName(), resp.User.Email)
	return nil
}
