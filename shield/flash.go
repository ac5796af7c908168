package shield

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const flashCookie = "flash"

// FlashMessage is a one-shot notice carried across a redirect.
type FlashMessage struct {
	Type    string // "success" or "error"
	Message string
}

// GetFlash returns the flash read by Flash for this request, or nil.
func GetFlash(ctx context.Context) *FlashMessage {
	v, _ := ctx.Value(FlashKey).(*FlashMessage)
	return v
}

// Flash consumes the flash cookie: the message goes into the context and the
// cookie is expired on the response.
func Flash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(flashCookie)
		if err != nil || cookie.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})

		raw, _ := url.QueryUnescape(cookie.Value)
		typ, msg, ok := strings.Cut(raw, ":")
		if !ok || (typ != "success" && typ != "error") {
			typ, msg = "error", raw
		}
		ctx := context.WithValue(r.Context(), FlashKey, &FlashMessage{Type: typ, Message: msg})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetFlash queues a flash for the next request. The cookie lives 10 seconds.
func SetFlash(w http.ResponseWriter, flashType, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    url.QueryEscape(flashType + ":" + message),
		Path:     "/",
		MaxAge:   10,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
