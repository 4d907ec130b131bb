package initdata

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBotToken = "123456:TEST-token"

var authDate = time.Unix(1700000000, 0)

func signedQuery(t *testing.T, values url.Values) string {
	t.Helper()
	return Encode(values, testBotToken)
}

func TestVerify_Example(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)
	hash := Sign(values, testBotToken)

	raw := "auth_date=1700000000&user=%7B%22id%22%3A42%7D&hash=" + hash

	payload, err := Verify(raw, testBotToken, authDate.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(42), payload.User.ID)
	require.NotNil(t, payload.AuthDate)
	assert.Equal(t, int64(1700000000), payload.AuthDate.Unix())

	tampered := []byte(hash)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	_, err = Verify("auth_date=1700000000&user=%7B%22id%22%3A42%7D&hash="+string(tampered), testBotToken, authDate)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.ErrorIs(t, err, ErrAuthInvalid)
}

func TestVerify_AnySingleHashCharacterFlipFails(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("query_id", "AAHdF6IQAAAAAN0XohDhrOrc")
	values.Set("user", `{"id":279058397,"first_name":"Vladislav","username":"vdkfrost","language_code":"ru"}`)
	hash := Sign(values, testBotToken)

	for i := range hash {
		flipped := []byte(hash)
		if flipped[i] == '0' {
			flipped[i] = '1'
		} else {
			flipped[i] = '0'
		}

		v := url.Values{}
		for k, vs := range values {
			v[k] = vs
		}
		v.Set("hash", string(flipped))

		_, err := Verify(v.Encode(), testBotToken, authDate)
		require.ErrorIs(t, err, ErrInvalidSignature, "position %d", i)
	}
}

func TestVerify_WrongBotToken(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)

	_, err := Verify(signedQuery(t, values), "other:token", authDate)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_MissingHash(t *testing.T) {
	_, err := Verify("auth_date=1700000000&user=%7B%22id%22%3A42%7D", testBotToken, authDate)
	assert.ErrorIs(t, err, ErrMissingHash)

	_, err = Verify("", testBotToken, authDate)
	assert.ErrorIs(t, err, ErrMissingHash)
}

func TestVerify_Malformed(t *testing.T) {
	_, err := Verify("user=%zz&hash=abc", testBotToken, authDate)
	assert.ErrorIs(t, err, ErrMalformed)
	assert.ErrorIs(t, err, ErrAuthInvalid)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)
	raw := signedQuery(t, values)

	_, err := Verify(raw, testBotToken, authDate.Add(86400*time.Second))
	assert.NoError(t, err, "exactly at the boundary must be accepted")

	_, err = Verify(raw, testBotToken, authDate.Add(86401*time.Second))
	assert.ErrorIs(t, err, ErrExpired)
}

func TestVerify_WithoutAuthDate(t *testing.T) {
	values := url.Values{}
	values.Set("user", `{"id":42}`)

	payload, err := Verify(signedQuery(t, values), testBotToken, authDate.Add(1000*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, payload.AuthDate)
}

func TestVerify_InvalidAuthDate(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "yesterday")
	values.Set("user", `{"id":42}`)

	_, err := Verify(signedQuery(t, values), testBotToken, authDate)
	assert.ErrorIs(t, err, ErrInvalidAuthDate)
}

func TestVerify_MissingOrMalformedUser(t *testing.T) {
	cases := map[string]url.Values{
		"absent":    {"auth_date": {"1700000000"}},
		"malformed": {"auth_date": {"1700000000"}, "user": {"{not json"}},
		"no id":     {"auth_date": {"1700000000"}, "user": {`{"first_name":"A"}`}},
	}

	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Verify(signedQuery(t, values), testBotToken, authDate)
			assert.ErrorIs(t, err, ErrMissingUser)
		})
	}
}

func TestVerify_UnsignedFieldsAreRejected(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)
	raw := signedQuery(t, values)

	_, err := Verify(raw+"&chat_instance=-100", testBotToken, authDate)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerify_Context(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42,"first_name":"Ann","username":"ann","photo_url":"https://t.me/i/userpic/1.jpg"}`)
	values.Set("chat_instance", "-8311538911286862934")
	values.Set("chat_type", "supergroup")
	values.Set("start_param", "")
	values.Set("chat", `{"id":-1001234567890,"type":"supergroup","title":"Team"}`)

	payload, err := Verify(signedQuery(t, values), testBotToken, authDate)
	require.NoError(t, err)

	assert.Equal(t, "Ann", payload.User.FirstName)
	assert.Equal(t, "ann", payload.User.Username)
	require.NotNil(t, payload.Context.ChatInstance)
	assert.Equal(t, "-8311538911286862934", *payload.Context.ChatInstance)
	require.NotNil(t, payload.Context.ChatType)
	assert.Equal(t, "supergroup", *payload.Context.ChatType)
	require.NotNil(t, payload.Context.StartParam, "blank start_param is present, not absent")
	assert.Equal(t, "", *payload.Context.StartParam)
	require.NotNil(t, payload.Context.Chat)
	assert.Equal(t, int64(-1001234567890), payload.Context.Chat.ID)
	assert.Equal(t, "Team", payload.Context.Chat.Title)
}

func TestVerify_MalformedChatIsAbsent(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)
	values.Set("chat", `{"id":`)

	payload, err := Verify(signedQuery(t, values), testBotToken, authDate)
	require.NoError(t, err)
	assert.Nil(t, payload.Context.Chat)
	assert.Nil(t, payload.Context.ChatInstance)
}

func TestDataCheckString(t *testing.T) {
	got := dataCheckString(map[string]string{
		"user":      `{"id":1}`,
		"auth_date": "1",
		"blank":     "",
	})

	assert.Equal(t, strings.Join([]string{"auth_date=1", "blank=", `user={"id":1}`}, "\n"), got)
}

func TestVerifier_UsesMaxAge(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42}`)
	raw := signedQuery(t, values)

	v := New(testBotToken, time.Hour)
	v.now = func() time.Time { return authDate.Add(2 * time.Hour) }

	_, err := v.Verify(raw)
	assert.ErrorIs(t, err, ErrExpired)

	v.now = func() time.Time { return authDate.Add(30 * time.Minute) }
	_, err = v.Verify(raw)
	assert.NoError(t, err)
}

func TestVerify_KeepsRawUser(t *testing.T) {
	values := url.Values{}
	values.Set("auth_date", "1700000000")
	values.Set("user", `{"id":42,"added_to_attachment_menu":true}`)

	payload, err := Verify(signedQuery(t, values), testBotToken, authDate)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":42,"added_to_attachment_menu":true}`, string(payload.RawUser))
}
