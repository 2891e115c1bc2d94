package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"famplan/internal/model"
)

type subscriptionRow struct {
	Endpoint    string `db:"endpoint"`
	P256dh      string `db:"p256dh"`
	Auth        string `db:"auth"`
	Owner       string `db:"owner"`
	ReceiveAll  bool   `db:"receive_all"`
	Watch       string `db:"watch"`
	LeadMinutes int    `db:"lead_minutes"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (r subscriptionRow) toModel() model.Subscription {
	return model.Subscription{
		Endpoint:    r.Endpoint,
		P256dh:      r.P256dh,
		Auth:        r.Auth,
		Owner:       strings.ToLower(strings.TrimSpace(r.Owner)),
		ReceiveAll:  r.ReceiveAll,
		Watch:       model.SplitWatch(r.Watch),
		LeadMinutes: r.LeadMinutes,
		CreatedAt:   decodeTime(r.CreatedAt),
		UpdatedAt:   decodeTime(r.UpdatedAt),
	}
}

// UpsertSubscription registers or refreshes a push endpoint. The endpoint
// is the identity; repeated registrations update preferences in place.
func (s *Store) UpsertSubscription(ctx context.Context, sub model.Subscription) error {
	if strings.TrimSpace(sub.Endpoint) == "" {
		return errors.New("subscription endpoint is required")
	}
	if strings.TrimSpace(sub.P256dh) == "" || strings.TrimSpace(sub.Auth) == "" {
		return errors.New("subscription encryption keys are required")
	}
	now := encodeTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (endpoint, p256dh, auth, owner, receive_all, watch, lead_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			p256dh = excluded.p256dh,
			auth = excluded.auth,
			owner = excluded.owner,
			receive_all = excluded.receive_all,
			watch = excluded.watch,
			lead_minutes = excluded.lead_minutes,
			updated_at = excluded.updated_at`,
		sub.Endpoint, sub.P256dh, sub.Auth,
		strings.ToLower(strings.TrimSpace(sub.Owner)), sub.ReceiveAll,
		model.JoinWatch(sub.Watch), sub.LeadMinutes, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting subscription: %w", err)
	}
	return nil
}

// ListSubscriptions bulk-loads every registered endpoint.
func (s *Store) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	var rows []subscriptionRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT endpoint, p256dh, auth, owner, receive_all, watch, lead_minutes, created_at, updated_at FROM subscriptions ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	out := make([]model.Subscription, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out, nil
}

// DeleteSubscription drops an endpoint, either on explicit unsubscribe or
// when the transport reports it permanently gone. Deleting an unknown
// endpoint is a no-op.
func (s *Store) DeleteSubscription(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE endpoint = ?", endpoint)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	return nil
}
