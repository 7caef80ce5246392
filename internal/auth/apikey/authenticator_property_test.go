package apikey

import (
	"context"
	"strings"
	"testing"

	"apikeyauth/internal/auth"
	"apikeyauth/internal/observability/logging"
	"apikeyauth/internal/observability/metrics"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var genCredential = gen.AlphaString().SuchThat(func(s string) bool { return s != "" })

// echoValidator authenticates every credential as a subject of the same name.
func echoValidator() Validator {
	return ValidatorFunc(func(_ context.Context, req *ValidationRequest) (Verdict, error) {
		return Success(&auth.Identity{Subject: req.Credential}), nil
	})
}

func propertyAuthenticator(scheme string) *Authenticator {
	a, err := New(Options{Scheme: scheme, Validator: echoValidator()}, logging.Discard(), metrics.NewCollector())
	if err != nil {
		panic(err)
	}
	return a
}

func TestAuthenticator_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	withScheme := propertyAuthenticator("Key")
	withoutScheme := propertyAuthenticator("")

	properties.Property("values lacking the scheme prefix are not attempted", prop.ForAll(
		func(value string) bool {
			outcome, err := withScheme.Authenticate(requestWithHeader(DefaultHeader, value))
			return err == nil && outcome.None()
		},
		gen.AlphaString(),
	))

	properties.Property("prefixed credentials reach the validator trimmed", prop.ForAll(
		func(credential string, pad int) bool {
			spaces := strings.Repeat(" ", pad)
			value := "KEY " + spaces + credential + spaces
			outcome, err := withScheme.Authenticate(requestWithHeader(DefaultHeader, value))
			return err == nil && outcome.Succeeded() && outcome.Identity().Subject == credential
		},
		genCredential,
		gen.IntRange(0, 8),
	))

	properties.Property("an empty credential after the prefix fails", prop.ForAll(
		func(pad int) bool {
			value := "Key" + strings.Repeat(" ", pad+1)
			outcome, err := withScheme.Authenticate(requestWithHeader(DefaultHeader, value))
			return err == nil && outcome.IsFailed()
		},
		gen.IntRange(0, 8),
	))

	properties.Property("authenticating twice yields the same outcome kind", prop.ForAll(
		func(value string) bool {
			r := requestWithHeader(DefaultHeader, value)
			first, err1 := withoutScheme.Authenticate(r)
			second, err2 := withoutScheme.Authenticate(r)
			return err1 == nil && err2 == nil && first.Kind() == second.Kind()
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
