// Package registration binds an unclaimed tag to its owner's relay channel.
package registration

import (
	"context"
	"log/slog"
	"strings"

	"github.com/foresafe/foresafe/internal/apperr"
	"github.com/foresafe/foresafe/internal/model"
	"github.com/foresafe/foresafe/internal/tag"
)

// TagRepository is the slice of the tag store registration needs.
type TagRepository interface {
	Get(ctx context.Context, tagID string) (*model.Tag, error)
	Register(ctx context.Context, tagID, whatsapp string, pushToken *string) (bool, error)
}

// Request is one owner's claim on a tag. CountryCode falls back to the
// service default when empty; PushToken is optional.
type Request struct {
	TagID       string
	Channel     string
	CountryCode string
	PushToken   string
}

type Service struct {
	tags               TagRepository
	defaultCountryCode string
	logger             *slog.Logger
}

func NewService(tags TagRepository, defaultCountryCode string, logger *slog.Logger) *Service {
	return &Service{
		tags:               tags,
		defaultCountryCode: defaultCountryCode,
		logger:             logger.With("component", "registration"),
	}
}

// Register claims req.TagID for the owner. The write is conditional on the
// row still being unregistered, so at most one concurrent claim succeeds.
func (s *Service) Register(ctx context.Context, req Request) (*model.Tag, error) {
	id := tag.NormalizeID(req.TagID)
	if id == "" {
		return nil, apperr.InvalidFormat("Please enter a Tag ID")
	}
	if !tag.ValidID(id) {
		return nil, apperr.InvalidFormat("Invalid Tag ID. Please check the ID printed on your tag.")
	}

	code := req.CountryCode
	if strings.TrimSpace(code) == "" {
		code = s.defaultCountryCode
	}
	number, err := tag.NormalizeChannel(req.Channel, code)
	if err != nil {
		return nil, err
	}

	var token *string
	if t := strings.TrimSpace(req.PushToken); t != "" {
		token = &t
	}

	ok, err := s.tags.Register(ctx, id, number, token)
	if err != nil {
		return nil, apperr.Store("Something went wrong while registering. Please try again.", err)
	}

	if !ok {
		existing, err := s.tags.Get(ctx, id)
		if err != nil {
			return nil, apperr.Store("Something went wrong while registering. Please try again.", err)
		}
		if existing == nil {
			return nil, apperr.NotFound("Invalid Tag ID. Please check the ID printed on your tag.")
		}
		return nil, apperr.AlreadyRegistered("This Tag ID is already registered.")
	}

	s.logger.Info("tag registered", "tag_id", id)

	registered, err := s.tags.Get(ctx, id)
	if err != nil || registered == nil {
		// The claim is committed; report what was written.
		return &model.Tag{TagID: id, IsRegistered: true, WhatsAppNumber: &number, PushEnabled: true, PushToken: token}, nil
	}
	return registered, nil
}
