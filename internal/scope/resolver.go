package scope

import (
	"context"
	"fmt"

	"studio-chat/internal/identity"
)

// EntityStore is what resolvers need from persistence. Kept small so tests
// can inject a fake.
type EntityStore interface {
	ListActiveClients(ctx context.Context) ([]Client, error)
	GetClient(ctx context.Context, id string) (Client, error)
	FetchEntities(ctx context.Context, clientID string) (Scope, error)
	Suggestions(ctx context.Context, ident identity.Identity, kind SuggestionKind, query string) ([]SuggestionItem, error)
}

// Resolver computes the channel scope for one identity. Two variants exist:
// studio resolvers honor the requested client, client resolvers ignore it
// and always resolve to the identity's own client.
type Resolver interface {
	// Resolve computes the scope for the requested client ID ("" means the
	// general channel). Errors leave the caller's previous scope untouched.
	Resolve(ctx context.Context, requestedClientID string) (Scope, error)
	AvailableClients(ctx context.Context) ([]Client, error)
	CanSelectClient() bool
	Suggestions(ctx context.Context, kind SuggestionKind, query string) ([]SuggestionItem, error)
}

// NewResolver picks the variant for the identity's role.
func NewResolver(ident identity.Identity, store EntityStore) Resolver {
	if ident.IsStudioMember {
		return &StudioResolver{ident: ident, store: store}
	}
	return &ClientResolver{ident: ident, store: store}
}

// StudioResolver serves agency-side identities: any active client may be
// selected, or none for the general channel.
type StudioResolver struct {
	ident identity.Identity
	store EntityStore
}

func (r *StudioResolver) Resolve(ctx context.Context, requestedClientID string) (Scope, error) {
	return resolveForClient(ctx, r.store, requestedClientID)
}

func (r *StudioResolver) AvailableClients(ctx context.Context) ([]Client, error) {
	return r.store.ListActiveClients(ctx)
}

func (r *StudioResolver) CanSelectClient() bool { return true }

func (r *StudioResolver) Suggestions(ctx context.Context, kind SuggestionKind, query string) ([]SuggestionItem, error) {
	return r.store.Suggestions(ctx, r.ident, kind, query)
}

// ClientResolver serves client-side identities and guests. The requested
// client ID is ignored outright: a client identity can never reach another
// client's channel, whatever the caller passes.
type ClientResolver struct {
	ident identity.Identity
	store EntityStore
}

func (r *ClientResolver) Resolve(ctx context.Context, _ string) (Scope, error) {
	return resolveForClient(ctx, r.store, r.ident.ClientID)
}

func (r *ClientResolver) AvailableClients(ctx context.Context) ([]Client, error) {
	if r.ident.ClientID == "" {
		return nil, nil
	}
	c, err := r.store.GetClient(ctx, r.ident.ClientID)
	if err != nil {
		return nil, err
	}
	return []Client{c}, nil
}

func (r *ClientResolver) CanSelectClient() bool { return false }

func (r *ClientResolver) Suggestions(ctx context.Context, kind SuggestionKind, query string) ([]SuggestionItem, error) {
	return r.store.Suggestions(ctx, r.ident, kind, query)
}

func resolveForClient(ctx context.Context, store EntityStore, clientID string) (Scope, error) {
	if clientID == "" {
		// General channel: no client-scoped entities to mention.
		return Scope{ChannelID: GeneralChannelID}, nil
	}

	client, err := store.GetClient(ctx, clientID)
	if err != nil {
		return Scope{}, fmt.Errorf("resolve scope: %w", err)
	}

	s, err := store.FetchEntities(ctx, clientID)
	if err != nil {
		return Scope{}, fmt.Errorf("resolve scope: %w", err)
	}

	s.ChannelID = ChannelID(clientID)
	s.ClientID = clientID
	s.ClientName = client.Name
	return s, nil
}
