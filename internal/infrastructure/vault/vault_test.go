package vault

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pdfrealm/internal/ports"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestKeyBuilderShape(t *testing.T) {
	b := newKeyBuilder("/tenant-a/")
	b.now = func() time.Time { return time.UnixMilli(1700000000123) }
	b.random = func(p []byte) (int, error) {
		for i := range p {
			p[i] = 0xab
		}
		return len(p), nil
	}

	key, err := b.build("user 42", "/Secure AI Notes//2024/", "my report?.pdf")
	require.NoError(t, err)
	assert.Equal(t, "tenant-a/user_42/Secure_AI_Notes/2024/1700000000123_abababababababab_my_report_.pdf", key)

	key, err = b.build("", "", "")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^tenant-a/unknown/Secure_AI_Notes/\d+_[0-9a-f]{16}_file$`), key)
}

func TestLocalPutOpenDelete(t *testing.T) {
	root := t.TempDir()
	local := NewLocal(root, "")
	ctx := context.Background()

	obj, err := local.Put(ctx, ports.VaultPutInput{
		OwnerID:    "u1",
		FolderPath: "Secure AI Notes",
		FileName:   "s1_transcript.json",
		MimeType:   "application/json",
		Data:       []byte(`{"segments":[]}`),
	})
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^local/u1/Secure_AI_Notes/\d+_[0-9a-f]{16}_s1_transcript\.json$`), obj.Key)
	_, statErr := os.Stat(filepath.Join(root, "u1", "Secure_AI_Notes"))
	assert.NoError(t, statErr, "object must live directly under the owner directory")
	assert.Equal(t, int64(15), obj.SizeBytes)
	assert.Equal(t, "application/json", obj.MimeType)

	rc, info, err := local.Open(ctx, obj.Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, `{"segments":[]}`, string(body))
	assert.Equal(t, int64(15), info.SizeBytes)

	require.NoError(t, local.Delete(ctx, obj.Key))
	require.NoError(t, local.Delete(ctx, obj.Key), "second delete must be a no-op")

	_, _, err = local.Open(ctx, obj.Key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestLocalPutFile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(t.TempDir(), "combined.webm")
	require.NoError(t, os.WriteFile(src, []byte("webm-bytes"), 0o600))

	obj, err := NewLocal(root, "").PutFile(context.Background(), ports.VaultPutFileInput{
		OwnerID:  "u1",
		FileName: "s1_audio.webm",
		MimeType: "audio/webm",
		Path:     src,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), obj.SizeBytes)
	assert.Contains(t, obj.Key, "_s1_audio.webm")
}

func TestLocalRejectsEscapingKeys(t *testing.T) {
	local := NewLocal(t.TempDir(), "")
	ctx := context.Background()

	for _, key := range []string{
		"local/u1/../../etc/passwd",
		"local/../x",
		"local/u1",
		"s3-key/without-prefix",
	} {
		_, _, err := local.Open(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestS3PutUsesServerSideEncryption(t *testing.T) {
	client := &mockS3{}
	store := newS3WithClient(client, "vault-bucket", "")
	ctx := context.Background()

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "vault-bucket" &&
			in.ServerSideEncryption == types.ServerSideEncryptionAes256 &&
			aws.ToString(in.ContentType) == "application/pdf" &&
			aws.ToInt64(in.ContentLength) == 3 &&
			strings.HasPrefix(aws.ToString(in.Key), "u1/Secure_AI_Notes/")
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	obj, err := store.Put(ctx, ports.VaultPutInput{
		OwnerID:    "u1",
		FolderPath: "Secure AI Notes",
		FileName:   "s1_report.pdf",
		MimeType:   "application/pdf",
		Data:       []byte("pdf"),
	})
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(obj.Key, localKeyPrefix))
	client.AssertExpectations(t)
}

func TestS3OpenMapsMissingKey(t *testing.T) {
	client := &mockS3{}
	store := newS3WithClient(client, "vault-bucket", "")

	client.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

	_, _, err := store.Open(context.Background(), "u1/x.pdf")
	assert.ErrorIs(t, err, ErrObjectNotFound)
	assert.True(t, IsNotFound(err))
}

func TestRouterDispatchesByKey(t *testing.T) {
	client := &mockS3{}
	remote := newS3WithClient(client, "vault-bucket", "")
	router := NewRouter(NewLocal(t.TempDir(), ""), remote)
	ctx := context.Background()

	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "u1/remote.pdf"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader([]byte("remote"))),
		ContentType:   aws.String("application/pdf"),
		ContentLength: aws.Int64(6),
	}, nil).Once()
	client.On("DeleteObject", mock.Anything, mock.Anything).Return(&s3.DeleteObjectOutput{}, nil).Once()

	rc, obj, err := router.Open(ctx, "u1/remote.pdf")
	require.NoError(t, err)
	defer rc.Close()
	assert.Equal(t, int64(6), obj.SizeBytes)
	assert.Equal(t, "application/pdf", obj.MimeType)

	require.NoError(t, router.Delete(ctx, "u1/remote.pdf"))
	require.NoError(t, router.Delete(ctx, ""))
	require.NoError(t, router.Delete(ctx, "local/u1/Secure_AI_Notes/missing.pdf"))
	assert.Equal(t, "s3", router.Backend())

	client.AssertExpectations(t)
}

func TestRouterWithoutRemote(t *testing.T) {
	router := NewRouter(NewLocal(t.TempDir(), ""), nil)
	ctx := context.Background()

	_, _, err := router.Open(ctx, "u1/remote.pdf")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.NoError(t, router.Delete(ctx, "u1/remote.pdf"))
	assert.Equal(t, "local", router.Backend())
}
