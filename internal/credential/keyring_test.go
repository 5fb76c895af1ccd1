package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := New(keyring.NewArrayKeyring(nil))

	_, err := s.Get(KeyIMAPPassword)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(KeyIMAPPassword, "hunter2"))
	v, err := s.Get(KeyIMAPPassword)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	require.NoError(t, s.Delete(KeyIMAPPassword))
	_, err = s.Get(KeyIMAPPassword)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EnvOverridesKeyring(t *testing.T) {
	s := New(keyring.NewArrayKeyring([]keyring.Item{
		{Key: KeyAnthropicAPIKey, Data: []byte("from-ring")},
	}))
	t.Setenv("STUDYFLOW_ANTHROPIC_API_KEY", "from-env")

	v, err := s.Get(KeyAnthropicAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestGmailTokenKey(t *testing.T) {
	assert.Equal(t, "gmail-token-u1", GmailTokenKey("u1"))
	assert.Equal(t, "STUDYFLOW_GMAIL_TOKEN_U1", EnvName(GmailTokenKey("u1")))
}
