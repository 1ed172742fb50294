package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"crew-onboarding/internal/models"
	"crew-onboarding/internal/store"
)

// Directory resolves who hears about an event beyond the applicant.
type Directory struct {
	store       store.Store
	adminEmails []string
}

func NewDirectory(st store.Store, adminEmails []string) *Directory {
	return &Directory{store: st, adminEmails: append([]string(nil), adminEmails...)}
}

// Manager returns the user row for managerID, or nil when there is none.
func (d *Directory) Manager(ctx context.Context, managerID string) (*models.User, error) {
	if managerID == "" || d.store == nil {
		return nil, nil
	}
	rec, err := d.store.Get(ctx, models.TableUsers, managerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup manager %s: %w", managerID, err)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("decode manager %s: %w", managerID, err)
	}
	return &u, nil
}

func (d *Directory) Admins() []string {
	return append([]string(nil), d.adminEmails...)
}

// Webhooks lists the active webhook rows.
func (d *Directory) Webhooks(ctx context.Context) ([]models.Webhook, error) {
	if d.store == nil {
		return nil, nil
	}
	rows, err := d.store.Query(ctx, models.TableWebhooks,
		[]store.Filter{store.Eq("active", true)},
		store.Ordering{Field: "id"},
	)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", err)
	}
	hooks := make([]models.Webhook, 0, len(rows))
	for _, r := range rows {
		raw, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		var w models.Webhook
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, fmt.Errorf("decode webhook %s: %w", r.String("id"), err)
		}
		hooks = append(hooks, w)
	}
	return hooks, nil
}
