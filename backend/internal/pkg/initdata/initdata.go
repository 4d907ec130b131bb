// Package initdata validates the signed launch payload Telegram hands to a
// Mini App (window.Telegram.WebApp.initData).
//
// See https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"vkrMiniApp/backend/internal/domain/models"
)

const (
	// DefaultMaxAge is how old auth_date may be before the payload is rejected.
	DefaultMaxAge = 24 * time.Hour

	secretKeyLabel = "WebAppData"
	hashField      = "hash"
)

var (
	ErrAuthInvalid = errors.New("init data is invalid")

	ErrMalformed        = fmt.Errorf("%w: malformed query string", ErrAuthInvalid)
	ErrMissingHash      = fmt.Errorf("%w: hash is missing", ErrAuthInvalid)
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", ErrAuthInvalid)
	ErrInvalidAuthDate  = fmt.Errorf("%w: auth_date is not a unix timestamp", ErrAuthInvalid)
	ErrExpired          = fmt.Errorf("%w: auth_date is too old", ErrAuthInvalid)
	ErrMissingUser      = fmt.Errorf("%w: user is missing or malformed", ErrAuthInvalid)
)

// Chat is the optional chat object Telegram signs for launches from an
// attachment menu or a group.
type Chat struct {
	ID       int64  `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title,omitempty"`
	Username string `json:"username,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
}

// Context holds the optional launch fields. A nil pointer means the field was
// not sent at all; a pointer to "" means it was sent blank.
type Context struct {
	ChatInstance *string `json:"chat_instance"`
	ChatType     *string `json:"chat_type"`
	StartParam   *string `json:"start_param"`
	Chat         *Chat   `json:"chat"`
}

// Payload is the verified launch data. RawUser keeps the signed user JSON
// as sent, including fields User does not model.
type Payload struct {
	User     models.TelegramUser `json:"user"`
	RawUser  json.RawMessage     `json:"-"`
	AuthDate *time.Time          `json:"auth_date,omitempty"`
	Context  Context             `json:"context"`
}

type Verifier struct {
	botToken string
	maxAge   time.Duration
	now      func() time.Time
}

func New(botToken string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	return &Verifier{
		botToken: botToken,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

func (v *Verifier) Verify(raw string) (*Payload, error) {
	return verify(raw, v.botToken, v.now(), v.maxAge)
}

// Verify checks raw against botToken as of now using DefaultMaxAge.
func Verify(raw, botToken string, now time.Time) (*Payload, error) {
	return verify(raw, botToken, now, DefaultMaxAge)
}

func verify(raw, botToken string, now time.Time, maxAge time.Duration) (*Payload, error) {
	values, err := parse(raw)
	if err != nil {
		return nil, err
	}

	received, ok := values[hashField]
	if !ok {
		return nil, ErrMissingHash
	}
	delete(values, hashField)

	expected := sign(values, botToken)
	if !hmac.Equal([]byte(expected), []byte(received)) {
		return nil, ErrInvalidSignature
	}

	payload := &Payload{}

	if rawDate, ok := values["auth_date"]; ok {
		ts, err := strconv.ParseInt(rawDate, 10, 64)
		if err != nil {
			return nil, ErrInvalidAuthDate
		}

		if now.Unix()-ts > int64(maxAge/time.Second) {
			return nil, ErrExpired
		}

		authDate := time.Unix(ts, 0).UTC()
		payload.AuthDate = &authDate
	}

	rawUser, ok := values["user"]
	if !ok {
		return nil, ErrMissingUser
	}
	if err := json.Unmarshal([]byte(rawUser), &payload.User); err != nil || payload.User.ID == 0 {
		return nil, ErrMissingUser
	}
	payload.RawUser = json.RawMessage(rawUser)

	payload.Context.ChatInstance = optional(values, "chat_instance")
	payload.Context.ChatType = optional(values, "chat_type")
	payload.Context.StartParam = optional(values, "start_param")

	if rawChat, ok := values["chat"]; ok {
		var chat Chat
		// malformed chat is treated as absent
		if err := json.Unmarshal([]byte(rawChat), &chat); err == nil && chat.ID != 0 {
			payload.Context.Chat = &chat
		}
	}

	return payload, nil
}

// Sign returns the hash Telegram would attach to values for botToken. Any
// hash key in values is ignored.
func Sign(values url.Values, botToken string) string {
	flat := make(map[string]string, len(values))
	for k, vs := range values {
		if k == hashField || len(vs) == 0 {
			continue
		}
		flat[k] = vs[len(vs)-1]
	}

	return sign(flat, botToken)
}

// Encode signs values and renders them as an init_data query string.
func Encode(values url.Values, botToken string) string {
	signed := url.Values{}
	for k, vs := range values {
		if k == hashField {
			continue
		}
		signed[k] = vs
	}
	signed.Set(hashField, Sign(values, botToken))

	return signed.Encode()
}

func sign(values map[string]string, botToken string) string {
	secret := hmac.New(sha256.New, []byte(secretKeyLabel))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString(values)))

	return hex.EncodeToString(mac.Sum(nil))
}

func dataCheckString(values map[string]string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+values[k])
	}

	return strings.Join(lines, "\n")
}

// parse flattens the query string keeping blank values. Repeated keys keep the
// last occurrence.
func parse(raw string) (map[string]string, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, ErrMalformed
	}

	flat := make(map[string]string, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		flat[k] = vs[len(vs)-1]
	}

	return flat, nil
}

func optional(values map[string]string, key string) *string {
	v, ok := values[key]
	if !ok {
		return nil
	}

	return &v
}
