package vault

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	localKeyPrefix = "local/"
	defaultFolder  = "Secure AI Notes"
	defaultMime    = "application/octet-stream"
)

var (
	unsafeOwner   = regexp.MustCompile(`[^a-zA-Z0-9_\-]`)
	unsafeFolder  = regexp.MustCompile(`[^a-zA-Z0-9_\-./]`)
	unsafeName    = regexp.MustCompile(`[^a-zA-Z0-9_.\-]`)
	repeatedSlash = regexp.MustCompile(`/+`)
)

// keyBuilder produces object keys of the form
// <prefix><owner>/<folder>/<unixms>_<16 hex>_<name>.
type keyBuilder struct {
	prefix string
	now    func() time.Time
	random func([]byte) (int, error)
}

func newKeyBuilder(prefix string) keyBuilder {
	return keyBuilder{prefix: normalizePrefix(prefix), now: time.Now, random: rand.Read}
}

func (b keyBuilder) build(ownerID string, folderPath string, fileName string) (string, error) {
	rel, err := b.relative(folderPath, fileName)
	if err != nil {
		return "", err
	}
	return b.prefix + safeOwner(ownerID) + "/" + rel, nil
}

// relative is the owner-free tail: <folder>/<unixms>_<16 hex>_<name>.
func (b keyBuilder) relative(folderPath string, fileName string) (string, error) {
	folder := safeFolder(folderPath)
	if folder == "" {
		folder = safeFolder(defaultFolder)
	}
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = "file"
	}

	uniq := make([]byte, 8)
	if _, err := b.random(uniq); err != nil {
		return "", err
	}

	return folder + "/" +
		strconv.FormatInt(b.now().UnixMilli(), 10) + "_" + hex.EncodeToString(uniq) + "_" +
		unsafeName.ReplaceAllString(name, "_"), nil
}

func normalizePrefix(raw string) string {
	p := strings.Trim(strings.TrimSpace(raw), "/")
	if p == "" {
		return ""
	}
	return p + "/"
}

func safeOwner(ownerID string) string {
	owner := strings.TrimSpace(ownerID)
	if owner == "" {
		owner = "unknown"
	}
	return unsafeOwner.ReplaceAllString(owner, "_")
}

func safeFolder(folderPath string) string {
	s := unsafeFolder.ReplaceAllString(folderPath, "_")
	s = repeatedSlash.ReplaceAllString(s, "/")
	return strings.Trim(s, "/")
}

func mimeOrDefault(mime string) string {
	if m := strings.TrimSpace(mime); m != "" {
		return m
	}
	return defaultMime
}
