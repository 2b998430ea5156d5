// Copyright 2024-2026 Aiku AI

package slackrtm

import (
	"context"

	"github.com/rs/zerolog"
	"go.mau.fi/util/exsync"
	"golang.org/x/sync/singleflight"

	"github.com/aiku/irc-slack-relay/pkg/chat"
)

// bulkKey is the singleflight key for the directory-wide fetch. It cannot
// collide with a Slack ID.
const bulkKey = "\x00bulk"

// directory is a write-through ID to name cache backed by a bulk listing and
// a single-entry lookup. Entries never expire.
type directory struct {
	kind    string
	log     zerolog.Logger
	entries *exsync.Map[string, chat.Identity]
	group   singleflight.Group
	list    func(ctx context.Context) ([]chat.Identity, error)
	get     func(ctx context.Context, id string) (chat.Identity, error)
}

func (d *directory) resolve(ctx context.Context, id string) (chat.Identity, error) {
	if ident, ok := d.entries.Get(id); ok {
		return ident, nil
	}
	if d.entries.Len() == 0 {
		_, err, _ := d.group.Do(bulkKey, func() (any, error) {
			if d.entries.Len() > 0 {
				return nil, nil
			}
			all, err := d.list(ctx)
			if err != nil {
				return nil, err
			}
			for _, ident := range all {
				d.entries.Set(ident.ID, ident)
			}
			d.log.Debug().Str("kind", d.kind).Int("count", len(all)).Msg("Loaded directory")
			return nil, nil
		})
		if err != nil {
			return chat.Identity{}, err
		}
		if ident, ok := d.entries.Get(id); ok {
			return ident, nil
		}
	}
	v, err, _ := d.group.Do(id, func() (any, error) {
		if ident, ok := d.entries.Get(id); ok {
			return ident, nil
		}
		ident, err := d.get(ctx, id)
		if err != nil {
			return nil, err
		}
		if ident.ID == "" {
			ident.ID = id
		}
		d.entries.Set(id, ident)
		d.log.Trace().Str("kind", d.kind).Str("id", id).Str("name", ident.Name).Msg("Cached directory entry")
		return ident, nil
	})
	if err != nil {
		return chat.Identity{}, err
	}
	return v.(chat.Identity), nil
}

// ResolveUser returns the identity for a user ID. The first lookup on an
// empty cache fetches the whole user list; later misses fetch one user.
func (c *Client) ResolveUser(ctx context.Context, id string) (chat.Identity, error) {
	return c.users.resolve(ctx, id)
}

// ResolveRoom returns the identity for a channel ID, with the same caching
// rules as ResolveUser.
func (c *Client) ResolveRoom(ctx context.Context, id string) (chat.Identity, error) {
	return c.rooms.resolve(ctx, id)
}

// CacheSize reports how many users and rooms are currently cached.
func (c *Client) CacheSize() (users, rooms int) {
	return c.users.entries.Len(), c.rooms.entries.Len()
}
