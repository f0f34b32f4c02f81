// Package credentials defines the collaborator interfaces the engine
// consumes for identity and analytics: it is handed an installation
// identifier and an auth token by its host application, and it optionally
// reports rollout/personalization assignments to an analytics
// collaborator. The engine never constructs a concrete implementation of
// either interface.
package credentials

import (
	"context"

	"golang.org/x/oauth2"
)

// InstallationProvider supplies the installation id and auth token the
// fetch handler and realtime stream attach to outbound requests.
//
// oauth2.TokenSource is reused here as the idiomatic Go shape for "give me
// a possibly-cached, possibly-refreshed bearer token" rather than
// inventing a bespoke interface.
type InstallationProvider interface {
	// InstallationID returns the host application's stable installation
	// identifier.
	InstallationID(ctx context.Context) (string, error)
	// Token returns a valid auth token, refreshing if necessary.
	Token(ctx context.Context) (*oauth2.Token, error)
}

// TokenSource adapts an InstallationProvider to oauth2.TokenSource, for
// callers that want to plug it directly into an oauth2-aware HTTP client.
func TokenSource(ctx context.Context, p InstallationProvider) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, tokenSourceFunc(func() (*oauth2.Token, error) {
		return p.Token(ctx)
	}))
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }

// AssignmentKind distinguishes the two events AnalyticsLogger receives.
type AssignmentKind int

const (
	// AssignmentRollout is logged when a rollout's assignment is first
	// published to a subscriber.
	AssignmentRollout AssignmentKind = iota
	// AssignmentPersonalization is logged the first time a given
	// (parameter key, choice id) pair is observed.
	AssignmentPersonalization
)

// Assignment is one rollout or personalization event. A personalization
// assignment carries the choice id, the resolved arm value, the
// personalization id, the arm index, and the group.
type Assignment struct {
	Kind              AssignmentKind
	ParameterKey      string
	RolloutID         string
	PersonalizationID string
	ChoiceID          string
	ArmValue          string
	ArmIndex          int
	Group             string
}

// AnalyticsLogger is the optional external analytics collaborator: a sink
// for rollout and personalization assignment events, and the source of the
// user-property map attached to fetch requests. A nil AnalyticsLogger is
// valid: assignment logging is disabled and fetches carry an empty
// property map.
type AnalyticsLogger interface {
	LogAssignment(ctx context.Context, a Assignment)
	// UserProperties returns the current analytics user-property map.
	UserProperties(ctx context.Context) map[string]string
}
