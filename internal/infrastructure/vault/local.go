package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

var (
	ErrObjectNotFound = errs.New(errs.KindNotFound, "vault object not found")
	ErrInvalidKey     = errs.New(errs.KindInvalid, "invalid vault key")
)

// Local keeps objects under root/<owner>/<relative path> and hands out keys
// of the form "local/<owner>/<relative path>". The key prefix is not used.
type Local struct {
	root string
	keys keyBuilder
}

func NewLocal(root string, keyPrefix string) *Local {
	return &Local{root: root, keys: newKeyBuilder(keyPrefix)}
}

func (l *Local) Put(ctx context.Context, input ports.VaultPutInput) (ports.VaultObject, error) {
	return l.write(ctx, input.OwnerID, input.FolderPath, input.FileName, input.MimeType, bytes.NewReader(input.Data))
}

func (l *Local) PutFile(ctx context.Context, input ports.VaultPutFileInput) (ports.VaultObject, error) {
	f, err := os.Open(input.Path)
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "open source file")
	}
	defer f.Close()

	return l.write(ctx, input.OwnerID, input.FolderPath, input.FileName, input.MimeType, f)
}

func (l *Local) write(ctx context.Context, ownerID, folder, name, mime string, src io.Reader) (ports.VaultObject, error) {
	if ctx == nil {
		return ports.VaultObject{}, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "check context")
	}

	rel, err := l.keys.relative(folder, name)
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "build vault key")
	}
	key := localKeyPrefix + safeOwner(ownerID) + "/" + rel

	abs, err := l.resolve(key)
	if err != nil {
		return ports.VaultObject{}, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "create vault directory")
	}

	dst, err := os.OpenFile(abs, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return ports.VaultObject{}, errs.Wrap(err, "create vault object")
	}
	n, copyErr := io.Copy(dst, src)
	closeErr := dst.Close()
	if copyErr != nil {
		_ = os.Remove(abs)
		return ports.VaultObject{}, errs.Wrap(copyErr, "write vault object")
	}
	if closeErr != nil {
		return ports.VaultObject{}, errs.Wrap(closeErr, "close vault object")
	}

	return ports.VaultObject{Key: key, SizeBytes: n, MimeType: mimeOrDefault(mime)}, nil
}

func (l *Local) Open(ctx context.Context, key string) (io.ReadCloser, ports.VaultObject, error) {
	if ctx == nil {
		return nil, ports.VaultObject{}, errors.New("context is required")
	}

	abs, err := l.resolve(key)
	if err != nil {
		return nil, ports.VaultObject{}, err
	}
	f, err := os.Open(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ports.VaultObject{}, ErrObjectNotFound
		}
		return nil, ports.VaultObject{}, errs.Wrap(err, "open vault object")
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ports.VaultObject{}, errs.Wrap(err, "stat vault object")
	}

	return f, ports.VaultObject{Key: key, SizeBytes: info.Size()}, nil
}

// Delete is idempotent: a missing file is not an error.
func (l *Local) Delete(ctx context.Context, key string) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	abs, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(err, "delete vault object")
	}
	return nil
}

// resolve maps "local/<owner>/<rest>" to an absolute path and rejects keys
// that would escape the owner directory.
func (l *Local) resolve(key string) (string, error) {
	if !strings.HasPrefix(key, localKeyPrefix) {
		return "", ErrInvalidKey
	}
	owner, rest, ok := strings.Cut(strings.TrimPrefix(key, localKeyPrefix), "/")
	if !ok || owner == "" || rest == "" || owner == "." || owner == ".." {
		return "", ErrInvalidKey
	}

	ownerDir := filepath.Join(l.root, owner)
	abs := filepath.Join(ownerDir, filepath.FromSlash(rest))
	rel, err := filepath.Rel(ownerDir, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
		return "", ErrInvalidKey
	}
	return abs, nil
}
