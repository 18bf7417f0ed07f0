package registry

import (
	"context"

	"github.com/bft-labs/envpool/internal/domain"
	"github.com/bft-labs/envpool/internal/ports"
)

// MemberResult records the outcome of one member invocation during an
// aggregate fan-out. Err is nil when the member operation succeeded.
type MemberResult struct {
	ID  domain.Identity
	Err error
}

// Member pairs a resolved environment with its identity.
type Member struct {
	ID  domain.Identity
	Env ports.Environment
}

// Group aggregates an ordered list of member environments behind the
// Environment contract. Every operation fans out to all members in declared
// order; a failure in one member never prevents attempting the rest, and the
// Environment methods themselves never return an error. Callers that need
// per-member outcomes use StartMembers, StopMembers, or ReloadMembers.
type Group struct {
	id      domain.Identity
	members []Member
	starter *Starter
}

// Compile-time safety: *Group implements ports.Environment.
var _ ports.Environment = (*Group)(nil)

// NewGroup creates a group over the given members. When starter is non-nil,
// member starts route through it so that a member shared by several groups
// starts at most once.
func NewGroup(id domain.Identity, members []Member, starter *Starter) *Group {
	return &Group{
		id:      id,
		members: append([]Member(nil), members...),
		starter: starter,
	}
}

// ID returns the group's composite identity.
func (g *Group) ID() domain.Identity { return g.id }

// MemberIDs returns the member identities in declared order.
func (g *Group) MemberIDs() []domain.Identity {
	ids := make([]domain.Identity, len(g.members))
	for i, m := range g.members {
		ids[i] = m.ID
	}
	return ids
}

// StartMembers starts every member in declared order and returns one result
// per member.
func (g *Group) StartMembers(ctx context.Context) []MemberResult {
	results := make([]MemberResult, 0, len(g.members))
	for _, m := range g.members {
		results = append(results, MemberResult{ID: m.ID, Err: g.startMember(ctx, m)})
	}
	return results
}

// startMember starts one member, through the start table when available so
// the at-most-once guarantee holds across groups.
func (g *Group) startMember(ctx context.Context, m Member) error {
	if g.starter == nil {
		return m.Env.Start(ctx)
	}
	outcome, err := g.starter.EnsureStarted(ctx, m.ID, m.Env)
	if err != nil {
		return err
	}
	if outcome == domain.OutcomeFailed {
		return g.starter.StartErr(m.ID)
	}
	return nil
}

// StopMembers stops every member in declared order and returns one result
// per member.
func (g *Group) StopMembers(ctx context.Context) []MemberResult {
	results := make([]MemberResult, 0, len(g.members))
	for _, m := range g.members {
		results = append(results, MemberResult{ID: m.ID, Err: m.Env.Stop(ctx)})
	}
	return results
}

// ReloadMembers reloads every member in declared order and returns one
// result per member.
func (g *Group) ReloadMembers(ctx context.Context) []MemberResult {
	results := make([]MemberResult, 0, len(g.members))
	for _, m := range g.members {
		results = append(results, MemberResult{ID: m.ID, Err: m.Env.Reload(ctx)})
	}
	return results
}

// Start fans out to all members and always succeeds once every member has
// been attempted.
func (g *Group) Start(ctx context.Context) error {
	g.StartMembers(ctx)
	return nil
}

// Stop fans out to all members and always succeeds once every member has
// been attempted.
func (g *Group) Stop(ctx context.Context) error {
	g.StopMembers(ctx)
	return nil
}

// Reload fans out to all members and always succeeds once every member has
// been attempted.
func (g *Group) Reload(ctx context.Context) error {
	g.ReloadMembers(ctx)
	return nil
}
