// Package refresh implements the refresh orchestrator: a startup
// background refresh plus a periodic ticker-driven loop, both funneled
// through a public synchronous Refresh(ctx, scope) that drives
// lock -> paginated fetch -> Save.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chatcache/chatcache/internal/cachedb"
	"github.com/chatcache/chatcache/internal/chatapi"
	"github.com/chatcache/chatcache/internal/lockmgr"
)

// Scope names the entity (or entities) a Refresh call targets.
type Scope string

const (
	ScopeUsers    Scope = "users"
	ScopeChannels Scope = "channels"
	ScopeMembers  Scope = "members"
	ScopeAll      Scope = "all"
)

// TTLs holds the staleness thresholds per entity.
type TTLs struct {
	UsersHours    float64
	ChannelsHours float64
	MembersHours  float64
}

// Orchestrator drives refreshes of the cache from the remote API.
type Orchestrator struct {
	store  *cachedb.Store
	api    *chatapi.Client
	locks  *lockmgr.Manager
	ttl    TTLs
	log    *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds an Orchestrator. It does not start the background loop;
// call Start for that.
func New(store *cachedb.Store, api *chatapi.Client, locks *lockmgr.Manager, ttl TTLs, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		api:    api,
		locks:  locks,
		ttl:    ttl,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start launches the background startup-refresh-then-periodic-ticker
// loop. It does not block the caller.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.run(ctx)
}

// Stop signals the background loop to exit and waits for it to finish.
func (o *Orchestrator) Stop() {
	close(o.stopCh)
	<-o.doneCh
}

func (o *Orchestrator) run(ctx context.Context) {
	defer close(o.doneCh)

	o.refreshStaleEntities(ctx)

	ticker := time.NewTicker(o.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.refreshStaleEntities(ctx)
		case <-o.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tickInterval re-evaluates staleness every ttl/4, floored at 15 minutes.
func (o *Orchestrator) tickInterval() time.Duration {
	minTTL := o.ttl.UsersHours
	if o.ttl.ChannelsHours < minTTL {
		minTTL = o.ttl.ChannelsHours
	}
	if o.ttl.MembersHours > 0 && o.ttl.MembersHours < minTTL {
		minTTL = o.ttl.MembersHours
	}

	d := time.Duration(minTTL/4*float64(time.Hour))
	if d < 15*time.Minute {
		d = 15 * time.Minute
	}
	return d
}

func (o *Orchestrator) refreshStaleEntities(ctx context.Context) {
	usersEmpty, _ := o.store.Users.IsEmpty()
	usersStale, _ := o.store.Users.IsStale(o.store.Meta, o.ttl.UsersHours)
	if usersEmpty || usersStale {
		if err := o.Refresh(ctx, ScopeUsers); err != nil {
			o.log.Error("user refresh failed, will retry next interval", "error", err)
		}
	}

	chEmpty, _ := o.store.Channels.IsEmpty()
	chStale, _ := o.store.Channels.IsStale(o.store.Meta, o.ttl.ChannelsHours)
	if chEmpty || chStale {
		if err := o.Refresh(ctx, ScopeChannels); err != nil {
			o.log.Error("channel refresh failed, will retry next interval", "error", err)
		}
	}

	channels, _ := o.store.Channels.ListAll()
	for _, ch := range channels {
		if stale, _ := o.store.Members.IsStale(o.store.Meta, ch.ID, o.ttl.MembersHours); stale {
			if err := o.Refresh(ctx, ScopeMembers); err != nil {
				o.log.Error("member refresh failed, will retry next interval", "error", err)
			}
			break
		}
	}
}

// Refresh synchronously refreshes scope, acquiring the matching named
// lock for the duration. Errors from the HTTP client abort the refresh
// without mutating the cache; the lock always releases (lockmgr.WithLock
// guarantees this via defer).
func (o *Orchestrator) Refresh(ctx context.Context, scope Scope) error {
	switch scope {
	case ScopeUsers:
		return o.locks.WithLock(ctx, "refresh_users", o.refreshUsers)
	case ScopeChannels:
		return o.locks.WithLock(ctx, "refresh_channels", o.refreshChannels)
	case ScopeMembers:
		return o.locks.WithLock(ctx, "refresh_members", o.refreshAllMembers)
	case ScopeAll:
		if err := o.Refresh(ctx, ScopeUsers); err != nil {
			return err
		}
		if err := o.Refresh(ctx, ScopeChannels); err != nil {
			return err
		}
		return o.Refresh(ctx, ScopeMembers)
	default:
		return fmt.Errorf("refresh: unknown scope %q", scope)
	}
}

func (o *Orchestrator) refreshUsers(ctx context.Context) error {
	start := time.Now()
	var all []cachedb.User

	for page, err := range chatapi.ListPages(ctx, o.api, "/users.list", url.Values{"limit": {"200"}}, decodeUserPage) {
		if err != nil {
			return err
		}
		all = append(all, page...)
	}

	for i := range all {
		all[i].UpdatedAt = start.Unix()
	}

	if err := o.store.Users.Save(all); err != nil {
		return err
	}
	o.log.Info("user refresh complete", "count", len(all), "duration", time.Since(start).String())
	return nil
}

func (o *Orchestrator) refreshChannels(ctx context.Context) error {
	start := time.Now()
	var all []cachedb.Channel

	for page, err := range chatapi.ListPages(ctx, o.api, "/conversations.list", url.Values{"limit": {"200"}}, decodeChannelPage) {
		if err != nil {
			return err
		}
		all = append(all, page...)
	}

	for i := range all {
		all[i].UpdatedAt = start.Unix()
	}

	if err := o.store.Channels.Save(all); err != nil {
		return err
	}
	o.log.Info("channel refresh complete", "count", len(all), "duration", time.Since(start).String())
	return nil
}

// refreshAllMembers refreshes membership for every cached channel in
// turn. Member refresh is per-channel (cachedb.MemberRepo.SaveChannel),
// so ScopeMembers loops over the channel set rather than swapping one
// workspace-wide table.
func (o *Orchestrator) refreshAllMembers(ctx context.Context) error {
	channels, err := o.store.Channels.ListAll()
	if err != nil {
		return err
	}

	for _, ch := range channels {
		start := time.Now()
		var members []cachedb.Member

		for page, err := range chatapi.ListPages(ctx, o.api, "/conversations.members", url.Values{"channel": {ch.ID}, "limit": {"200"}}, decodeMemberPage) {
			if err != nil {
				return err
			}
			for _, userID := range page {
				members = append(members, cachedb.Member{ChannelID: ch.ID, UserID: userID, JoinedAt: start.Unix()})
			}
		}

		if err := o.store.Members.SaveChannel(ch.ID, members); err != nil {
			return err
		}
	}
	return nil
}
