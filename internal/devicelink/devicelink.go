// Package devicelink binds a companion-app device to a tag and manages its
// push opt-in.
package devicelink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/onesignal"
	"github.com/foresafe/foresafe/internal/tag"
)

type TagWriter interface {
	Get(ctx context.Context, tagID string) (*model.Tag, error)
	LinkDevice(ctx context.Context, tagID, pushToken string) (bool, error)
	SetPushEnabled(ctx context.Context, tagID string, enabled bool) (bool, error)
}

// Identity is the push collaborator's device identity surface.
type Identity interface {
	Login(ctx context.Context, subscriptionID, externalID string) error
	SetSubscriptionEnabled(ctx context.Context, subscriptionID string, enabled bool) error
	Logout(ctx context.Context, externalID string) error
}

// State is what the companion app shows for a tag after a call.
type State struct {
	TagID       string `json:"tagId"`
	Linked      bool   `json:"linked"`
	PushEnabled bool   `json:"pushEnabled"`
	Synced      bool   `json:"synced"`
}

type Linker struct {
	tags     TagWriter
	identity Identity
	prefix   string
	logger   *slog.Logger
}

func NewLinker(tags TagWriter, identity Identity, prefix string, logger *slog.Logger) *Linker {
	return &Linker{
		tags:     tags,
		identity: identity,
		prefix:   prefix,
		logger:   logger.With("component", "devicelink"),
	}
}

func (l *Linker) checkID(raw string) (string, error) {
	id := tag.NormalizeID(raw)
	if id == "" || !tag.HasPrefix(id, l.prefix) {
		return "", apperr.InvalidFormat(fmt.Sprintf("Invalid Tag ID. It must start with %s", tag.NormalizeID(l.prefix)))
	}
	return id, nil
}

// Link logs the device in under the tag id, then syncs the store. The store
// sync is best-effort: a failure is logged and reported as Synced=false but
// the device stays linked. An empty subscriptionID means the app already
// logged in through the native SDK and only the store sync is needed.
func (l *Linker) Link(ctx context.Context, tagID, subscriptionID string) (*State, error) {
	id, err := l.checkID(tagID)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(subscriptionID)
	if token != "" {
		if err := l.identity.Login(ctx, token, id); err != nil {
			return nil, apperr.Delivery("Failed to link device", onesignal.Details(err), err)
		}
	} else {
		token = model.LinkedViaPush
	}

	state := &State{TagID: id, Linked: true, PushEnabled: true}

	ok, err := l.tags.LinkDevice(ctx, id, token)
	switch {
	case err != nil:
		l.logger.Warn("store sync failed after link", "tag_id", id, "error", err)
	case !ok:
		l.logger.Warn("store sync skipped, tag not registered", "tag_id", id)
	default:
		state.Synced = true
	}

	l.logger.Info("device linked", "tag_id", id, "synced", state.Synced)
	return state, nil
}

// SetPushEnabled applies the requested opt-in optimistically, then confirms
// it with the collaborator and the store. On any failure the returned state
// is reverted alongside the error.
func (l *Linker) SetPushEnabled(ctx context.Context, tagID, subscriptionID string, enabled bool) (*State, error) {
	id, err := l.checkID(tagID)
	if err != nil {
		return nil, err
	}

	state := &State{TagID: id, Linked: true, PushEnabled: enabled}
	revert := func() { state.PushEnabled = !enabled }

	if subscriptionID != "" {
		if err := l.identity.SetSubscriptionEnabled(ctx, subscriptionID, enabled); err != nil {
			revert()
			return state, apperr.Delivery("Failed to update notification settings", onesignal.Details(err), err)
		}
	}

	ok, err := l.tags.SetPushEnabled(ctx, id, enabled)
	if err != nil {
		revert()
		l.logger.Error("store update failed, reverting push toggle", "tag_id", id, "error", err)
		return state, apperr.Store("Failed to save notification settings", err)
	}
	if !ok {
		revert()
		existing, err := l.tags.Get(ctx, id)
		if err != nil {
			return state, apperr.Store("Failed to save notification settings", err)
		}
		if existing == nil {
			return state, apperr.NotFound(fmt.Sprintf("Tag %s not found.", id))
		}
		return state, apperr.NotRegistered(fmt.Sprintf("Tag %s exists but has not been activated by the owner.", id))
	}

	state.Synced = true
	l.logger.Info("push toggled", "tag_id", id, "enabled", enabled)
	return state, nil
}

// Unlink removes the tag alias from the collaborator. The store row is kept
// as is; there is no unregistration.
func (l *Linker) Unlink(ctx context.Context, tagID string) (*State, error) {
	id, err := l.checkID(tagID)
	if err != nil {
		return nil, err
	}
	if err := l.identity.Logout(ctx, id); err != nil {
		return nil, apperr.Delivery("Failed to unlink device", onesignal.Details(err), err)
	}
	l.logger.Info("device unlinked", "tag_id", id)
	return &State{TagID: id}, nil
}
