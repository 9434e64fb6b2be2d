// Command jwt-mint prints an access token signed with the server's HS256
// secret, for local testing without calling tokenCreate.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"storefront-graphql/internal/auth"
)

const secretEnv = "STOREFRONT_SERVER_AUTH_JWT_SECRET"

type options struct {
	secretFile string
	issuer     string
	audience   string
	userID     int64
	email      string
	staff      bool
	ttl        time.Duration
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Getenv); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, getenv func(string) string) error {
	var opts options
	fs := pflag.NewFlagSet("jwt-mint", pflag.ContinueOnError)
	fs.StringVar(&opts.secretFile, "secret-file", "", "File holding the signing secret (default: $"+secretEnv+")")
	fs.StringVar(&opts.issuer, "issuer", "storefront-graphql", "Issuer claim")
	fs.StringVar(&opts.audience, "audience", "", "Audience claim (optional)")
	fs.Int64Var(&opts.userID, "user-id", 1, "Subject user ID")
	fs.StringVar(&opts.email, "email", "staff@example.com", "Email claim")
	fs.BoolVar(&opts.staff, "staff", true, "Staff claim")
	fs.DurationVar(&opts.ttl, "ttl", time.Hour, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	secret, err := loadSecret(opts.secretFile, getenv)
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret:   []byte(secret),
		Issuer:   opts.issuer,
		Audience: opts.audience,
		TTL:      opts.ttl,
	})
	if err != nil {
		return err
	}
	token, err := issuer.Issue(&auth.User{ID: opts.userID, Email: opts.email, IsStaff: opts.staff})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

func loadSecret(path string, getenv func(string) string) (string, error) {
	if path == "" {
		if secret := getenv(secretEnv); secret != "" {
			return secret, nil
		}
		return "", fmt.Errorf("no secret: pass --secret-file or set %s", secretEnv)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
