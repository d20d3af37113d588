// Package channels manages the destination channels an operator can pick from.
package channels

import (
	"context"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/Sumitpatel080/Forward/internal/post"
	"github.com/Sumitpatel080/Forward/internal/storage"
	logx "github.com/Sumitpatel080/Forward/pkg/logx"
)

type Store interface {
	PutChannel(ctx context.Context, ch post.Channel) error
	ListChannels(ctx context.Context) ([]post.Channel, error)
	DeleteChannel(ctx context.Context, id int64) (bool, error)
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Registry struct {
	store Store
	log   logx.Logger
}

func New(store Store, log logx.Logger) *Registry {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{store: store, log: log}
}

func validate(ch post.Channel) error {
	return validation.ValidateStruct(&ch,
		validation.Field(&ch.ID, validation.Required),
		validation.Field(&ch.Name, validation.Required, validation.Length(1, 128)),
	)
}

// Add registers or renames a channel.
func (r *Registry) Add(ctx context.Context, actor, id int64, name string) (post.Channel, error) {
	ch := post.Channel{ID: id, Name: strings.TrimSpace(name)}
	if err := validate(ch); err != nil {
		return post.Channel{}, post.Validation("channels.add", err)
	}
	if err := r.store.PutChannel(ctx, ch); err != nil {
		return post.Channel{}, post.Persistence("channels.add", err)
	}
	r.log.Info("channel added", logx.Int64("channel_id", id), logx.String("name", ch.Name))
	r.audit(ctx, storage.AuditEntry{ActorID: actor, Action: "channel_add", MetaJSON: strconv.FormatInt(id, 10)})
	return ch, nil
}

func (r *Registry) List(ctx context.Context) ([]post.Channel, error) {
	chs, err := r.store.ListChannels(ctx)
	if err != nil {
		return nil, post.Persistence("channels.list", err)
	}
	return chs, nil
}

// ListChannels lets the registry stand in where only listing is needed.
func (r *Registry) ListChannels(ctx context.Context) ([]post.Channel, error) { return r.List(ctx) }

func (r *Registry) Remove(ctx context.Context, actor, id int64) (bool, error) {
	ok, err := r.store.DeleteChannel(ctx, id)
	if err != nil {
		return false, post.Persistence("channels.remove", err)
	}
	if ok {
		r.log.Info("channel removed", logx.Int64("channel_id", id))
		r.audit(ctx, storage.AuditEntry{ActorID: actor, Action: "channel_remove", MetaJSON: strconv.FormatInt(id, 10)})
	}
	return ok, nil
}

// Names maps ids to display names; unknown ids render as the raw id.
func (r *Registry) Names(ctx context.Context, ids []int64) []string {
	byID := map[int64]string{}
	if chs, err := r.store.ListChannels(ctx); err == nil {
		for _, c := range chs {
			byID[c.ID] = c.Name
		}
	} else {
		r.log.Debug("channel names lookup failed", logx.Err(err))
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			out = append(out, n)
			continue
		}
		out = append(out, strconv.FormatInt(id, 10))
	}
	return out
}

func (r *Registry) audit(ctx context.Context, e storage.AuditEntry) {
	if err := r.store.AppendAudit(ctx, e); err != nil {
		r.log.Debug("audit append failed", logx.Err(err))
	}
}
