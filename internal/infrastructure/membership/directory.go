package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/infrastructure/persistence/gormdb/model"
	"pdfrealm/internal/ports"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Directory answers membership questions from the context_members table and
// memoizes the answers in a short-lived cache.
type Directory struct {
	db    *gorm.DB
	cache ports.Cache
	ttl   time.Duration
}

var _ ports.MembershipDirectory = (*Directory)(nil)

func NewDirectory(db *gorm.DB, cache ports.Cache, ttl time.Duration) *Directory {
	return &Directory{db: db, cache: cache, ttl: ttl}
}

func (d *Directory) IsMember(ctx context.Context, kind notes.Kind, contextID string, userID string) (bool, error) {
	role, err := d.role(ctx, kind, contextID, userID)
	if err != nil {
		return false, err
	}
	return role != "", nil
}

func (d *Directory) IsOwner(ctx context.Context, kind notes.Kind, contextID string, userID string) (bool, error) {
	role, err := d.role(ctx, kind, contextID, userID)
	if err != nil {
		return false, err
	}
	return role == RoleOwner, nil
}

// AddMember registers or re-activates a user in a context.
func (d *Directory) AddMember(ctx context.Context, kind notes.Kind, contextID string, userID string, role string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != RoleOwner && role != RoleMember {
		return fmt.Errorf("unsupported role %q", role)
	}
	contextID = strings.TrimSpace(contextID)
	userID = strings.TrimSpace(userID)
	if contextID == "" || userID == "" {
		return errors.New("context id and user id are required")
	}

	row := model.ContextMember{
		Kind:      string(kind),
		ContextID: contextID,
		UserID:    userID,
		Role:      role,
	}
	if err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "kind"}, {Name: "context_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"role":       role,
			"removed_at": nil,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert context member")
	}

	d.forget(ctx, kind, contextID, userID)
	return nil
}

// RemoveMember soft-deletes a membership row.
func (d *Directory) RemoveMember(ctx context.Context, kind notes.Kind, contextID string, userID string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	if err := d.db.WithContext(ctx).Model(&model.ContextMember{}).
		Where("kind = ? AND context_id = ? AND user_id = ? AND removed_at IS NULL", string(kind), contextID, userID).
		Update("removed_at", time.Now().UTC()).Error; err != nil {
		return errs.Wrap(err, "remove context member")
	}

	d.forget(ctx, kind, contextID, userID)
	return nil
}

func (d *Directory) role(ctx context.Context, kind notes.Kind, contextID string, userID string) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}

	contextID = strings.TrimSpace(contextID)
	userID = strings.TrimSpace(userID)
	if contextID == "" || userID == "" {
		return "", nil
	}

	key := cacheKey(kind, contextID, userID)
	if d.cache != nil {
		if cached, found, err := d.cache.Get(ctx, key); err == nil && found {
			return cached, nil
		} else if err != nil {
			logging.Warn(ctx, "membership cache read failed", slog.String("component", "membership.directory"), slog.Any("err", errs.Loggable(err)))
		}
	}

	var rows []model.ContextMember
	if err := d.db.WithContext(ctx).
		Where("kind = ? AND context_id = ? AND user_id = ? AND removed_at IS NULL", string(kind), contextID, userID).
		Limit(1).
		Find(&rows).Error; err != nil {
		return "", errs.Wrap(err, "query context member")
	}

	role := ""
	if len(rows) > 0 {
		role = rows[0].Role
	}

	if d.cache != nil && d.ttl > 0 {
		if err := d.cache.Set(ctx, key, role, d.ttl); err != nil {
			logging.Warn(ctx, "membership cache write failed", slog.String("component", "membership.directory"), slog.Any("err", errs.Loggable(err)))
		}
	}
	return role, nil
}

func (d *Directory) forget(ctx context.Context, kind notes.Kind, contextID string, userID string) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, cacheKey(kind, contextID, userID)); err != nil {
		logging.Warn(ctx, "membership cache invalidation failed", slog.String("component", "membership.directory"), slog.Any("err", errs.Loggable(err)))
	}
}

func cacheKey(kind notes.Kind, contextID string, userID string) string {
	return "member:" + string(kind) + ":" + contextID + ":" + userID
}
