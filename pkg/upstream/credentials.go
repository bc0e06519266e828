package upstream

import (
	"context"

	"meridian-hq/saturn/pkg/quota"
)

// CredentialProvider supplies the current upstream credential for a
// subject. The OAuth exchange and encryption-at-rest behind it are
// external collaborators; the executor only needs a token to hand to
// the call being wrapped.
type CredentialProvider interface {
	// Credential returns the current access token for the subject.
	// Implementations should return a CredentialError-compatible error
	// when the subject has no valid token.
	Credential(ctx context.Context, subject quota.Subject) (string, error)
}

// StaticCredentials is a CredentialProvider backed by a fixed map,
// keyed by Subject.Key(). Useful for tests and single-tenant tooling.
type StaticCredentials map[string]string

// Credential implements CredentialProvider.
func (s StaticCredentials) Credential(_ context.Context, subject quota.Subject) (string, error) {
	token, ok := s[subject.Key()]
	if !ok {
		return "", &CredentialError{
			Subject: subject.Key(),
			Message: "no credential configured",
		}
	}
	return token, nil
}
