package httpapi

import (
	"context"
	"net/http"
	"strings"

	domain "pdfrealm/internal/domain/notes"
)

const (
	headerUserID     = "X-User-ID"
	headerUserName   = "X-User-Name"
	headerGuestToken = "X-Guest-Token"
)

type guestCookie struct {
	kind   domain.Kind
	cookie string
}

// guestCookies maps each context kind to the cookie its invite flow sets.
var guestCookies = []guestCookie{
	{domain.KindVideo, "pdfrealm_video_guest"},
	{domain.KindVoice, "pdfrealm_voice_guest"},
	{domain.KindChat, "pdfrealm_chat_guest"},
}

// actorFromRequest resolves the caller. Registered users arrive with gateway
// headers; guests present an invite token in a cookie or header. A request
// with neither yields the zero Actor and the use case rejects it.
func (a *API) actorFromRequest(ctx context.Context, r *http.Request, preferred domain.Kind) domain.Actor {
	if userID := strings.TrimSpace(r.Header.Get(headerUserID)); userID != "" {
		return domain.UserActor(userID, r.Header.Get(headerUserName))
	}
	if a.guests == nil {
		return domain.Actor{}
	}

	headerToken := strings.TrimSpace(r.Header.Get(headerGuestToken))
	for _, candidate := range orderedGuestCookies(preferred) {
		token := headerToken
		if token == "" {
			cookie, err := r.Cookie(candidate.cookie)
			if err != nil {
				continue
			}
			token = cookie.Value
		}
		actor, err := a.guests.VerifyGuest(ctx, candidate.kind, token)
		if err == nil {
			return actor
		}
	}
	return domain.Actor{}
}

// orderedGuestCookies tries the kind named by the request first.
func orderedGuestCookies(preferred domain.Kind) []guestCookie {
	if preferred == "" {
		return guestCookies
	}
	out := make([]guestCookie, 0, len(guestCookies))
	for _, c := range guestCookies {
		if c.kind == preferred {
			out = append(out, c)
		}
	}
	for _, c := range guestCookies {
		if c.kind != preferred {
			out = append(out, c)
		}
	}
	return out
}
