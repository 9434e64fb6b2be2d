package serverapp

import (
	"bytes"
	"database/sql"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/auth"
	"storefront-graphql/internal/catalog"
	"storefront-graphql/internal/config"
	"storefront-graphql/internal/dbexec"
	"storefront-graphql/internal/observability"
	"storefront-graphql/internal/schema"
)

func newIssuer(cfg *config.Config) (*auth.Issuer, error) {
	a := cfg.Server.Auth
	return auth.NewIssuer(auth.IssuerConfig{
		Secret:   []byte(a.JWTSecret),
		Issuer:   a.Issuer,
		Audience: a.Audience,
		TTL:      a.TokenTTL,
		Leeway:   a.Leeway,
	})
}

func buildSchema(cfg *config.Config, db *sql.DB, issuer *auth.Issuer, metrics *observability.Metrics) (graphql.Schema, error) {
	exec := dbexec.NewStandardExecutor(db)
	schemaCfg := schema.Config{
		Catalog:       catalog.NewTypes(catalog.NewStore(exec)),
		Authenticator: auth.NewCredentialStore(exec),
		Issuer:        issuer,
		RequireStaff:  cfg.Server.Auth.RequireStaff,
	}
	if metrics != nil {
		schemaCfg.AuthMetrics = metrics.Auth
		if metrics.Mutations != nil {
			schemaCfg.MutationMetrics = metrics.Mutations
		}
	}
	return schema.Build(schemaCfg)
}

// PrintSchema renders the server's schema as SDL without touching a database.
func PrintSchema(requireStaff bool) (string, error) {
	// Placeholder key; nothing is signed while printing.
	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		Secret: bytes.Repeat([]byte{'x'}, auth.MinSecretLength),
		TTL:    1,
	})
	if err != nil {
		return "", err
	}
	s, err := schema.Build(schema.Config{
		Catalog:       catalog.NewTypes(catalog.NewStore(nil)),
		Authenticator: auth.NewCredentialStore(nil),
		Issuer:        issuer,
		RequireStaff:  requireStaff,
	})
	if err != nil {
		return "", err
	}
	return schema.PrintSDL(s)
}
