package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"pdfrealm/internal/bootstrap/config"
	"pdfrealm/internal/domain/notes"
	"pdfrealm/internal/errs"
	"pdfrealm/internal/ports"
)

var (
	ErrGuestTokenInvalid = errs.New(errs.KindUnauthenticated, "invalid guest token")
	ErrGuestNotSupported = errs.New(errs.KindUnauthenticated, "guest access is not configured")
)

// GuestClaims is the invite token payload. Video and voice invites carry a
// room id, chat invites carry a thread id.
type GuestClaims struct {
	RoomID    string `json:"room_id,omitempty"`
	ThreadID  string `json:"thread_id,omitempty"`
	GuestID   string `json:"guest_id"`
	GuestName string `json:"guest_name,omitempty"`
	jwt.RegisteredClaims
}

// GuestTokens signs and verifies HS256 invite tokens with a secret per
// context kind.
type GuestTokens struct {
	secrets map[notes.Kind][]byte
	now     func() time.Time
}

var _ ports.GuestVerifier = (*GuestTokens)(nil)

func NewGuestTokens(cfg config.GuestConfig) *GuestTokens {
	pick := func(specific string) []byte {
		if s := strings.TrimSpace(specific); s != "" {
			return []byte(s)
		}
		if s := strings.TrimSpace(cfg.Secret); s != "" {
			return []byte(s)
		}
		return nil
	}

	return &GuestTokens{
		secrets: map[notes.Kind][]byte{
			notes.KindVideo: pick(cfg.VideoSecret),
			notes.KindVoice: pick(cfg.VoiceSecret),
			notes.KindChat:  pick(cfg.ChatSecret),
		},
		now: time.Now,
	}
}

func (g *GuestTokens) VerifyGuest(ctx context.Context, kind notes.Kind, token string) (notes.Actor, error) {
	if ctx == nil {
		return notes.Actor{}, errors.New("context is required")
	}

	secret := g.secrets[kind]
	if len(secret) == 0 {
		return notes.Actor{}, ErrGuestNotSupported
	}

	raw := strings.TrimSpace(token)
	if raw == "" {
		return notes.Actor{}, ErrGuestTokenInvalid
	}

	claims := &GuestClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}}
	parsed, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || !parsed.Valid {
		return notes.Actor{}, errs.Wrap(ErrGuestTokenInvalid, errorText(err))
	}

	contextID := claims.RoomID
	if kind == notes.KindChat {
		contextID = claims.ThreadID
	}
	if strings.TrimSpace(contextID) == "" || strings.TrimSpace(claims.GuestID) == "" {
		return notes.Actor{}, ErrGuestTokenInvalid
	}

	return notes.GuestActor(claims.GuestID, claims.GuestName, kind, contextID), nil
}

// Issue signs an invite token. Used by the members CLI and tests.
func (g *GuestTokens) Issue(kind notes.Kind, contextID string, guestID string, guestName string, ttl time.Duration) (string, error) {
	secret := g.secrets[kind]
	if len(secret) == 0 {
		return "", ErrGuestNotSupported
	}

	now := g.now().UTC()
	claims := GuestClaims{
		GuestID:   guestID,
		GuestName: guestName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	if kind == notes.KindChat {
		claims.ThreadID = contextID
	} else {
		claims.RoomID = contextID
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errs.Wrap(err, "sign guest token")
	}
	return signed, nil
}

func errorText(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}
