package ports

import (
	"context"
	"io"
)

type VaultPutInput struct {
	OwnerID    string
	FolderPath string
	FileName   string
	MimeType   string
	Data       []byte
}

type VaultPutFileInput struct {
	OwnerID    string
	FolderPath string
	FileName   string
	MimeType   string
	Path       string
}

type VaultObject struct {
	Key       string
	SizeBytes int64
	MimeType  string
}

// Vault stores per-user artifacts. Keys self-describe their backend so Open
// and Delete dispatch without a lookup.
type Vault interface {
	Put(ctx context.Context, input VaultPutInput) (VaultObject, error)
	PutFile(ctx context.Context, input VaultPutFileInput) (VaultObject, error)
	Open(ctx context.Context, key string) (io.ReadCloser, VaultObject, error)
	Delete(ctx context.Context, key string) error
}
