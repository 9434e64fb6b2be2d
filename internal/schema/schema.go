// Package schema assembles the executable GraphQL schema from the catalog and
// auth packages.
package schema

import (
	"errors"
	"fmt"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/auth"
	"storefront-graphql/internal/catalog"
	"storefront-graphql/internal/mutation"
	"storefront-graphql/internal/observability"
)

// Config wires the schema's collaborators.
type Config struct {
	Catalog       *catalog.Types
	Authenticator auth.Authenticator
	Issuer        *auth.Issuer
	AuthMetrics   *observability.AuthMetrics
	// MutationMetrics may be nil.
	MutationMetrics mutation.MetricsRecorder
	// RequireStaff restricts catalog mutations to staff viewers.
	RequireStaff bool
}

// Build returns the schema. Mutation configuration errors surface here, at
// startup, as *mutation.ConfigurationError.
func Build(cfg Config) (graphql.Schema, error) {
	if cfg.Catalog == nil {
		return graphql.Schema{}, errors.New("schema: catalog types are required")
	}
	if cfg.Authenticator == nil || cfg.Issuer == nil {
		return graphql.Schema{}, errors.New("schema: authenticator and issuer are required")
	}

	queryFields := cfg.Catalog.QueryFields()
	if _, exists := queryFields["me"]; exists {
		return graphql.Schema{}, errors.New("schema: query field me is defined twice")
	}
	queryFields["me"] = auth.MeField()

	var opts []mutation.Option
	if cfg.MutationMetrics != nil {
		opts = append(opts, mutation.WithMetrics(cfg.MutationMetrics))
	}

	catalogOpts := catalog.MutationOptions{Metrics: cfg.MutationMetrics}
	if cfg.RequireStaff {
		catalogOpts.Authorize = auth.RequireStaff(cfg.AuthMetrics)
	}
	mutations, err := cfg.Catalog.Mutations(catalogOpts)
	if err != nil {
		return graphql.Schema{}, err
	}
	tokenCreate, err := auth.TokenCreateMutation(cfg.Authenticator, cfg.Issuer, cfg.AuthMetrics, opts...)
	if err != nil {
		return graphql.Schema{}, err
	}
	mutations = append(mutations, tokenCreate)

	mutationFields := graphql.Fields{}
	for _, m := range mutations {
		name := m.Meta().Name
		if _, exists := mutationFields[name]; exists {
			return graphql.Schema{}, fmt.Errorf("schema: mutation %s is defined twice", name)
		}
		mutationFields[name] = m.Field()
	}

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		}),
	})
}
