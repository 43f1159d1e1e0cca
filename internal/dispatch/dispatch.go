// Package dispatch sends a scanner's alert to a tag owner's linked device.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/onesignal"
	"github.com/foresafe/foresafe/internal/tag"
)

type TagReader interface {
	Get(ctx context.Context, tagID string) (*model.Tag, error)
}

// Sender delivers one push to every device logged in under externalID.
type Sender interface {
	Send(ctx context.Context, externalID string, n onesignal.Notification) (string, error)
}

// Result describes a delivered alert. RelayLink is set only for GENERAL
// alerts on tags with a relay channel; the caller opens it for the scanner.
type Result struct {
	TagID          string         `json:"tagId"`
	Category       model.Category `json:"category"`
	NotificationID string         `json:"oneSignalId"`
	RelayLink      string         `json:"relayLink,omitempty"`
}

type Dispatcher struct {
	tags   TagReader
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(tags TagReader, sender Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		tags:   tags,
		sender: sender,
		logger: logger.With("component", "dispatch"),
	}
}

// Template returns the push heading and body for a category.
func Template(c model.Category, tagID string) onesignal.Notification {
	switch c {
	case model.CategoryParking:
		return onesignal.Notification{
			Heading: "FORESAFE Parking Alert",
			Body:    fmt.Sprintf("Your vehicle %s is blocking the way or wrongly parked. Please move it as soon as possible.", tagID),
		}
	case model.CategoryEmergency:
		return onesignal.Notification{
			Heading: "FORESAFE EMERGENCY",
			Body:    fmt.Sprintf("Urgent: An emergency has been reported at your vehicle %s. Please respond immediately.", tagID),
		}
	default:
		return onesignal.Notification{
			Heading: "FORESAFE Security Alert",
			Body:    fmt.Sprintf("Someone at your vehicle %s is trying to reach you.", tagID),
		}
	}
}

// Dispatch re-reads the tag and issues at most one push for it.
func (d *Dispatcher) Dispatch(ctx context.Context, tagID string, c model.Category) (*Result, error) {
	id := tag.NormalizeID(tagID)
	if id == "" {
		return nil, apperr.InvalidFormat("Missing tagId or type")
	}

	t, err := d.tags.Get(ctx, id)
	if err != nil {
		return nil, apperr.Store("Failed to load tag", err)
	}
	if t == nil {
		return nil, apperr.NotFound(fmt.Sprintf("Tag %s not found. Please ensure it is registered.", id))
	}
	if !t.IsRegistered {
		return nil, apperr.NotRegistered(fmt.Sprintf("Tag %s exists but has not been activated by the owner.", id))
	}
	if !t.PushEnabled {
		return nil, apperr.PushDisabled("Owner has temporarily disabled push notifications (Privacy Mode)")
	}

	notifID, err := d.sender.Send(ctx, id, Template(c, id))
	if err != nil {
		d.logger.Error("push delivery failed", "tag_id", id, "category", c, "error", err)
		return nil, apperr.Delivery("Failed to send notification via OneSignal", onesignal.Details(err), err)
	}

	res := &Result{TagID: id, Category: c, NotificationID: notifID}
	if c == model.CategoryGeneral {
		if number := t.RelayNumber(); number != "" {
			res.RelayLink = tag.RelayLink(number, tag.RelayMessage(id))
		}
	}

	d.logger.Info("alert sent", "tag_id", id, "category", c, "notification_id", notifID)
	return res, nil
}
