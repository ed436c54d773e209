// Package contacts keeps the email address, phone number and role of every
// account seen on an authenticated request, so notifications can reach account
// holders and other modules can tell admins apart from ordinary accounts.
package contacts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"marketplace_backend/internal/docstore"
	"marketplace_backend/platform/apperr"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// Collection holds one contact per account id.
const Collection = "contacts"

// Contact is how an account can be reached outside the app.
type Contact struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Directory resolves and records contacts in the document store.
type Directory struct {
	store docstore.Store
	log   *logger.Logger
	known sync.Map       // account id -> contact key last written
}

// NewDirectory creates a contact directory.
func NewDirectory(store docstore.Store, log *logger.Logger) *Directory {
	return &Directory{store: store, log: log}
}

// Lookup returns the contact for accountID, or nil when none is known.
func (d *Directory) Lookup(ctx context.Context, accountID string) (*Contact, error) {
	var c Contact
	if err := d.store.Get(ctx, Collection, accountID, &c); err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, apperr.Unavailable("contacts.lookup", err)
	}
	return &c, nil
}

// RoleOf returns the role accountID last authenticated with, or an empty role
// when the account was never seen.
func (d *Directory) RoleOf(ctx context.Context, accountID string) (httpkit.Role, error) {
	c, err := d.Lookup(ctx, accountID)
	if err != nil || c == nil {
		return "", err
	}
	return httpkit.Role(c.Role), nil
}

// Remember records the email, phone and role of an account. Empty values keep
// what is stored; unchanged contacts are not rewritten.
func (d *Directory) Remember(ctx context.Context, accountID, email, phoneNumber string, role httpkit.Role) error {
	email = strings.ToLower(strings.TrimSpace(email))
	phoneNumber = strings.TrimSpace(phoneNumber)
	if accountID == "" || (email == "" && phoneNumber == "" && role == "") {
		return nil
	}
	key := email + "|" + phoneNumber + "|" + string(role)
	if prev, ok := d.known.Load(accountID); ok && prev.(string) == key {
		return nil
	}

	now := time.Now().UTC()
	patch := docstore.Patch{"updatedAt": now}
	if email != "" {
		patch["email"] = email
	}
	if phoneNumber != "" {
		patch["phone"] = phoneNumber
	}
	if role != "" {
		patch["role"] = string(role)
	}
	existed, err := d.store.Update(ctx, Collection, accountID, patch)
	if err != nil {
		return apperr.Unavailable("contacts.remember", err)
	}
	if !existed {
		err = d.store.Create(ctx, Collection, accountID, Contact{ID: accountID, Email: email, Phone: phoneNumber, Role: string(role), UpdatedAt: now})
		if err != nil && !errors.Is(err, docstore.ErrDuplicate) {
			return apperr.Unavailable("contacts.remember", err)
		}
	}
	d.known.Store(accountID, key)
	return nil
}

// Track records the verified contact claims of every authenticated request.
func (d *Directory) Track() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := httpkit.GetActor(c)
		if !actor.IsAnonymous() {
			if err := d.Remember(c.Request.Context(), actor.ID, actor.Email, actor.Phone, actor.Role); err != nil {
				d.log.Warn("contact tracking failed", "actor_id", actor.ID, "error", err)
			}
		}
		c.Next()
	}
}
