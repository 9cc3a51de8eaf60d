package telegram

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
)

// ErrInvalidInitData is returned when Mini App init data fails validation.
var ErrInvalidInitData = errors.New("invalid init data")

// WebAppUser is the user object carried in Mini App init data.
type WebAppUser struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name,omitempty"`
	Username     string `json:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty"`
}

// InitData is validated Mini App launch data.
type InitData struct {
	QueryID    string
	User       *WebAppUser
	StartParam string
	AuthDate   time.Time
}

// ValidateInitData checks the signature of the init data a Mini App
// receives at launch and decodes it. If maxAge is positive, data signed
// longer than maxAge before now is rejected.
//
// See https://core.telegram.org/bots/webapps#validating-data-received-via-the-mini-app.
func ValidateInitData(raw, botToken string, maxAge time.Duration, now time.Time) (*InitData, error) {
	if botToken == "" {
		return nil, fmt.Errorf("%w: bot token not configured", ErrInvalidInitData)
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInitData, err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, fmt.Errorf("%w: no hash present", ErrInvalidInitData)
	}
	values.Del("hash")

	if !hmac.Equal([]byte(signInitData(dataCheckString(values), botToken)), []byte(hash)) {
		return nil, fmt.Errorf("%w: hash mismatch", ErrInvalidInitData)
	}

	data := &InitData{
		QueryID:    values.Get("query_id"),
		StartParam: values.Get("start_param"),
	}

	if ad := values.Get("auth_date"); ad != "" {
		sec, err := strconv.ParseInt(ad, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: auth_date: %v", ErrInvalidInitData, err)
		}
		data.AuthDate = time.Unix(sec, 0)
	}
	if maxAge > 0 && (data.AuthDate.IsZero() || now.Sub(data.AuthDate) > maxAge) {
		return nil, fmt.Errorf("%w: expired", ErrInvalidInitData)
	}

	if u := values.Get("user"); u != "" {
		var user WebAppUser
		if err := json.Unmarshal([]byte(u), &user); err != nil {
			return nil, fmt.Errorf("%w: user: %v", ErrInvalidInitData, err)
		}
		data.User = &user
	}

	return data, nil
}

// dataCheckString joins all fields as key=value lines sorted by key.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}

// signInitData computes the hex signature of a data check string. The
// secret key is HMAC-SHA256 of the token keyed with "WebAppData".
func signInitData(checkString, botToken string) string {
	secret := hmac.New(sha256.New, []byte("WebAppData"))
	secret.Write([]byte(botToken))

	h := hmac.New(sha256.New, secret.Sum(nil))
	h.Write([]byte(checkString))
	return hex.EncodeToString(h.Sum(nil))
}
