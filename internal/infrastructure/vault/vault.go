package vault

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/bootstrap/logging"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

// Router writes to the remote backend when one is configured and routes
// reads and deletes by key shape: "local/..." keys always go to disk.
type Router struct {
	local  *Local
	remote ports.Vault
}

var _ ports.Vault = (*Router)(nil)

func New(ctx context.Context, cfg config.StorageConfig) (*Router, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "infrastructure.vault"))
	r := &Router{local: NewLocal(cfg.LocalRoot, cfg.KeyPrefix)}
	if !cfg.S3.Enabled() {
		logging.Info(logCtx, "vault backend selected", slog.String("backend", "local"), slog.String("root", cfg.LocalRoot))
		return r, nil
	}

	remote, err := NewS3(ctx, cfg.S3, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}
	r.remote = remote
	logging.Info(logCtx, "vault backend selected", slog.String("backend", "s3"), slog.String("bucket", cfg.S3.Bucket))
	return r, nil
}

func NewRouter(local *Local, remote ports.Vault) *Router {
	return &Router{local: local, remote: remote}
}

func (r *Router) Put(ctx context.Context, input ports.VaultPutInput) (ports.VaultObject, error) {
	if r.remote != nil {
		return r.remote.Put(ctx, input)
	}
	return r.local.Put(ctx, input)
}

func (r *Router) PutFile(ctx context.Context, input ports.VaultPutFileInput) (ports.VaultObject, error) {
	if r.remote != nil {
		return r.remote.PutFile(ctx, input)
	}
	return r.local.PutFile(ctx, input)
}

func (r *Router) Open(ctx context.Context, key string) (io.ReadCloser, ports.VaultObject, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ports.VaultObject{}, ErrObjectNotFound
	}
	if strings.HasPrefix(key, localKeyPrefix) {
		return r.local.Open(ctx, key)
	}
	if r.remote == nil {
		return nil, ports.VaultObject{}, ErrObjectNotFound
	}
	return r.remote.Open(ctx, key)
}

// Delete tolerates empty keys and unconfigured remotes so cleanup paths can
// call it unconditionally.
func (r *Router) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if strings.HasPrefix(key, localKeyPrefix) {
		return r.local.Delete(ctx, key)
	}
	if r.remote == nil {
		return nil
	}
	return r.remote.Delete(ctx, key)
}

// Backend names the backend that new objects are written to.
func (r *Router) Backend() string {
	if r.remote != nil {
		return "s3"
	}
	return "local"
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound) || errs.KindOf(err) == errs.KindNotFound
}
