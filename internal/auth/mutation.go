package auth

import (
	"context"
	"errors"

	"github.com/graphql-go/graphql"

	"storefront-graphql/internal/forms"
	"storefront-graphql/internal/logging"
	"storefront-graphql/internal/mutation"
	"storefront-graphql/internal/observability"
)

const invalidCredentialsMessage = "Please, enter valid credentials"

// NewTokenCreateForm returns the login form. Its record is the signed token.
func NewTokenCreateForm(authenticator Authenticator, issuer *Issuer, metrics *observability.AuthMetrics) *forms.ModelForm {
	return forms.MustNew(forms.Spec{
		Name:  "TokenCreateForm",
		Model: "Token",
		Fields: []forms.Field{
			{Name: "email", Type: forms.TypeString, Required: true, Email: true, Help: "Email of the user."},
			{Name: "password", Type: forms.TypeString, Required: true, NoStrip: true, Help: "Password of the user."},
		},
		Save: func(ctx context.Context, _ forms.Record, cleaned map[string]any) (forms.Record, error) {
			email, _ := cleaned["email"].(string)
			password, _ := cleaned["password"].(string)

			user, err := authenticator.Authenticate(ctx, email, password)
			if errors.Is(err, ErrInvalidCredentials) {
				metrics.RecordCredentialFailure(ctx, "invalid_credentials")
				return nil, forms.NonFieldValidationError(invalidCredentialsMessage)
			}
			if err != nil {
				return nil, err
			}

			token, err := issuer.Issue(user)
			if err != nil {
				return nil, err
			}
			metrics.RecordTokenIssued(ctx)
			logging.FromContext(ctx).Info("access token issued", "user_id", user.ID)
			return token, nil
		},
	})
}

// TokenCreateMutation builds tokenCreate(email, password) -> {token, errors}.
func TokenCreateMutation(authenticator Authenticator, issuer *Issuer, metrics *observability.AuthMetrics, opts ...mutation.Option) (*mutation.Mutation, error) {
	return mutation.New(mutation.Config{
		Name:            "tokenCreate",
		Description:     "Creates an access token for a user.",
		Form:            NewTokenCreateForm(authenticator, issuer, metrics),
		ReturnFieldName: "token",
		RecordType:      graphql.String,
	}, opts...)
}

// MeField resolves the viewer of the request, or null when anonymous.
func MeField() *graphql.Field {
	viewerType := graphql.NewObject(graphql.ObjectConfig{
		Name:        "Viewer",
		Description: "The authenticated user.",
		Fields: graphql.Fields{
			"email": &graphql.Field{
				Type: graphql.NewNonNull(graphql.String),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, _ := p.Source.(Viewer)
					return v.Email, nil
				},
			},
			"isStaff": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					v, _ := p.Source.(Viewer)
					return v.IsStaff, nil
				},
			},
		},
	})
	return &graphql.Field{
		Type:        viewerType,
		Description: "The currently authenticated user.",
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			if v, ok := ViewerFromContext(p.Context); ok {
				return v, nil
			}
			return nil, nil
		},
	}
}
