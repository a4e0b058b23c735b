package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/sophiahq/sophia-gateway/internal/ledger"
)

// Syncer pulls changed upstream objects into the record store, advancing
// the watermark only after the whole batch lands. A failed batch leaves
// the watermark where it was and the next run re-pulls from there.
type Syncer struct {
	store   *ledger.Store
	hubspot *HubSpotClient
	gong    *GongClient
	logger  *slog.Logger
}

// NewSyncer creates a syncer. Nil clients disable their source.
func NewSyncer(store *ledger.Store, hubspot *HubSpotClient, gong *GongClient, logger *slog.Logger) *Syncer {
	return &Syncer{
		store:   store,
		hubspot: hubspot,
		gong:    gong,
		logger:  logger,
	}
}

// SyncHubSpot pulls contacts and deals modified since their watermarks
func (s *Syncer) SyncHubSpot(ctx context.Context) (int, error) {
	if s.hubspot == nil {
		return 0, nil
	}

	contacts, err := s.syncHubSpotContacts(ctx)
	if err != nil {
		return 0, err
	}
	deals, err := s.syncHubSpotDeals(ctx)
	if err != nil {
		return contacts, err
	}
	return contacts + deals, nil
}

func (s *Syncer) syncHubSpotContacts(ctx context.Context) (int, error) {
	since, err := s.watermarkTime("hubspot", "contacts")
	if err != nil {
		return 0, err
	}

	contacts, err := s.hubspot.ContactsSince(ctx, since, 100)
	if err != nil {
		return 0, err
	}
	if len(contacts) == 0 {
		return 0, nil
	}

	var newest time.Time
	for _, contact := range contacts {
		content, err := json.Marshal(contact)
		if err != nil {
			return 0, fmt.Errorf("marshal contact: %w", err)
		}
		rec := &ledger.Record{
			Source:     "hubspot",
			ExternalID: contact.ID,
			Kind:       "contact",
			Content:    string(content),
		}
		if err := s.store.UpsertRecord(rec); err != nil {
			return 0, err
		}
		if contact.UpdatedAt.After(newest) {
			newest = contact.UpdatedAt
		}
	}

	if !newest.IsZero() {
		if err := s.store.Advance("hubspot", "contacts", ledger.FormatPosition(newest)); err != nil {
			return 0, err
		}
	}

	s.logger.Info("hubspot contact sync complete", "contacts", len(contacts), "watermark", newest)
	return len(contacts), nil
}

func (s *Syncer) syncHubSpotDeals(ctx context.Context) (int, error) {
	since, err := s.watermarkTime("hubspot", "deals")
	if err != nil {
		return 0, err
	}

	deals, err := s.hubspot.DealsSince(ctx, since, 100)
	if err != nil {
		return 0, err
	}
	if len(deals) == 0 {
		return 0, nil
	}

	var newest time.Time
	for _, deal := range deals {
		content, err := json.Marshal(deal)
		if err != nil {
			return 0, fmt.Errorf("marshal deal: %w", err)
		}
		rec := &ledger.Record{
			Source:     "hubspot",
			ExternalID: "deal:" + deal.ID,
			Kind:       "deal",
			Content:    string(content),
		}
		if err := s.store.UpsertRecord(rec); err != nil {
			return 0, err
		}
		if deal.UpdatedAt.After(newest) {
			newest = deal.UpdatedAt
		}
	}

	if !newest.IsZero() {
		if err := s.store.Advance("hubspot", "deals", ledger.FormatPosition(newest)); err != nil {
			return 0, err
		}
	}

	s.logger.Info("hubspot deal sync complete", "deals", len(deals), "watermark", newest)
	return len(deals), nil
}

// SyncGong pulls calls started since the gong/calls watermark
func (s *Syncer) SyncGong(ctx context.Context) (int, error) {
	if s.gong == nil {
		return 0, nil
	}

	since, err := s.watermarkTime("gong", "calls")
	if err != nil {
		return 0, err
	}

	calls, err := s.gong.CallsSince(ctx, since)
	if err != nil {
		return 0, err
	}
	if len(calls) == 0 {
		return 0, nil
	}

	var newest time.Time
	for _, call := range calls {
		content, err := json.Marshal(call)
		if err != nil {
			return 0, fmt.Errorf("marshal call: %w", err)
		}
		rec := &ledger.Record{
			Source:     "gong",
			ExternalID: call.ID,
			Kind:       "call",
			Content:    string(content),
		}
		if err := s.store.UpsertRecord(rec); err != nil {
			return 0, err
		}
		if call.Started.After(newest) {
			newest = call.Started
		}
	}

	if !newest.IsZero() {
		if err := s.store.Advance("gong", "calls", ledger.FormatPosition(newest)); err != nil {
			return 0, err
		}
	}

	s.logger.Info("gong sync complete", "calls", len(calls), "watermark", newest)
	return len(calls), nil
}

func (s *Syncer) watermarkTime(source, stream string) (time.Time, error) {
	pos, ok, err := s.store.Get(source, stream)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, pos)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse watermark %s/%s: %w", source, stream, err)
	}
	return t, nil
}
