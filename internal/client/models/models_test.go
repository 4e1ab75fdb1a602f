package models

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, sub, name string) string {
	t.Helper()
	claims := TokenClaims{
		Name:             name,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-secret"))
	require.NoError(t, err)
	return s
}

func TestParseVisibility(t *testing.T) {
	v, err := ParseVisibility("public")
	require.NoError(t, err)
	assert.Equal(t, VisibilityPublic, v)

	v, err = ParseVisibility("")
	require.NoError(t, err)
	assert.Equal(t, VisibilityPrivate, v)

	_, err = ParseVisibility("friends")
	require.Error(t, err)
}

func TestAccount_Key(t *testing.T) {
	assert.Equal(t, LocalAccountKey, Account{Kind: AccountLocal}.Key())

	tok := signedToken(t, "1", "steven")
	a := Account{Kind: AccountRemote, Host: "https://Memos.Example.com/", AccessToken: tok}
	assert.Equal(t, "https://memos.example.com|1", a.Key())

	refreshed := Account{Kind: AccountRemote, Host: "https://memos.example.com", AccessToken: signedToken(t, "1", "steven")}
	assert.Equal(t, a.Key(), refreshed.Key(), "same user on same host keeps its key")

	opaque := Account{Kind: AccountRemote, Host: "https://memos.example.com", AccessToken: "not-a-jwt"}
	assert.NotEqual(t, a.Key(), opaque.Key())
	assert.Equal(t, opaque.Key(), opaque.Key())
}

func TestAccount_Claims(t *testing.T) {
	a := Account{Kind: AccountRemote, AccessToken: signedToken(t, "42", "Ann")}
	c, ok := a.Claims()
	require.True(t, ok)
	assert.Equal(t, "42", c.Subject)
	assert.Equal(t, "Ann", c.Name)

	_, ok = Account{Kind: AccountRemote}.Claims()
	assert.False(t, ok)
}

func TestMemo_MarkDirty(t *testing.T) {
	m := &Memo{}
	now := time.Date(2024, 3, 1, 10, 0, 0, 123456789, time.FixedZone("X", 3600))
	m.MarkDirty(now)

	assert.True(t, m.NeedsSync)
	assert.Equal(t, time.UTC, m.LastModified.Location())
	assert.Equal(t, 123000000, m.LastModified.Nanosecond())
	assert.False(t, m.Synced())
}

func TestResource_IdentityKey(t *testing.T) {
	id := "m1"
	r := &Resource{Identifier: "r1", MemoID: &id}
	assert.Equal(t, "local:r1", r.IdentityKey())
	assert.True(t, r.AttachedTo("m1"))
	assert.False(t, r.AttachedTo("m2"))

	r.RemoteID = "resources/7"
	assert.Equal(t, "resources/7", r.IdentityKey())
}

func TestUser_DisplayName(t *testing.T) {
	assert.Equal(t, "steven", (&User{Username: "steven"}).DisplayName())
	assert.Equal(t, "Steven", (&User{Username: "steven", Nickname: "Steven"}).DisplayName())
}
