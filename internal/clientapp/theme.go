package clientapp

import (
	"net/http"
	"time"
)

const cookiePrefix = "attendhash_"

// cookieStore keeps chrome flags in long-lived cookies. Reads see values set
// earlier in the same request.
type cookieStore struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]string
}

func newCookieStore(w http.ResponseWriter, r *http.Request) *cookieStore {
	return &cookieStore{w: w, r: r, written: map[string]string{}}
}

func (c *cookieStore) Get(key string) (string, bool, error) {
	if value, ok := c.written[key]; ok {
		return value, true, nil
	}
	cookie, err := c.r.Cookie(cookiePrefix + key)
	if err != nil {
		return "", false, nil
	}
	return cookie.Value, true, nil
}

func (c *cookieStore) Set(key, value string) error {
	c.written[key] = value
	http.SetCookie(c.w, &http.Cookie{
		Name:     cookiePrefix + key,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().AddDate(1, 0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
