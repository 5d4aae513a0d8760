// Package i18n localizes the short messages the API returns to clients.
package i18n

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys. The English text doubles as the key so an unregistered
// locale still prints something readable.
const (
	InvalidInput       = "Please check the highlighted fields."
	InvalidCredentials = "Wrong username or password."
	AccountLocked      = "Too many failed attempts. Try again after %s."
	Unauthenticated    = "Please sign in."
	Forbidden          = "You do not have permission to do that."
	NotFound           = "Not found."
	Conflict           = "That name is already taken."
	Internal           = "Something went wrong. Please try again later."
	RateLimited        = "Too many requests. Please slow down."
	CSRFFailed         = "Your session form token is missing or stale. Reload and retry."
	CaptchaFailed      = "Captcha verification failed."
	BadJSON            = "Request body must be valid JSON."
)

var supported = []language.Tag{language.English, language.German}

var matcher = language.NewMatcher(supported)

func init() {
	de := map[string]string{
		InvalidInput:       "Bitte prüfen Sie die markierten Felder.",
		InvalidCredentials: "Falscher Benutzername oder falsches Passwort.",
		AccountLocked:      "Zu viele Fehlversuche. Versuchen Sie es nach %s erneut.",
		Unauthenticated:    "Bitte melden Sie sich an.",
		Forbidden:          "Dafür fehlt Ihnen die Berechtigung.",
		NotFound:           "Nicht gefunden.",
		Conflict:           "Dieser Name ist bereits vergeben.",
		Internal:           "Etwas ist schiefgelaufen. Bitte versuchen Sie es später erneut.",
		RateLimited:        "Zu viele Anfragen. Bitte etwas langsamer.",
		CSRFFailed:         "Das Formular-Token fehlt oder ist veraltet. Bitte neu laden.",
		CaptchaFailed:      "Captcha-Prüfung fehlgeschlagen.",
		BadJSON:            "Der Anfragetext muss gültiges JSON sein.",
	}
	for key, msg := range de {
		_ = message.SetString(language.German, key, msg)
	}
	for _, key := range []string{
		InvalidInput, InvalidCredentials, AccountLocked, Unauthenticated, Forbidden,
		NotFound, Conflict, Internal, RateLimited, CSRFFailed, CaptchaFailed, BadJSON,
	} {
		_ = message.SetString(language.English, key, key)
	}
}

// Localizer picks a printer per request from Accept-Language.
type Localizer struct {
	fallback language.Tag
}

func New(defaultLocale string) *Localizer {
	tag, err := language.Parse(strings.TrimSpace(defaultLocale))
	if err != nil {
		tag = language.English
	}
	_, idx, _ := matcher.Match(tag)
	return &Localizer{fallback: supported[idx]}
}

// ResolveTag returns the best supported language for r.
func (l *Localizer) ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return l.fallback
	}
	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return l.fallback
	}
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return l.fallback
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return l.fallback
	}
	return supported[idx]
}

func (l *Localizer) Printer(r *http.Request) *message.Printer {
	return message.NewPrinter(l.ResolveTag(r))
}

// Sprintf localizes key for r.
func (l *Localizer) Sprintf(r *http.Request, key string, args ...any) string {
	return l.Printer(r).Sprintf(key, args...)
}
