package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitialStateNoPasswordSet(t *testing.T) {
	u := NewUsers()
	st := Initial(u)
	require.True(t, st.Authenticated)
	require.Equal(t, "default", st.Username)
}

func TestInitialStateRequiresPasswordOnceSet(t *testing.T) {
	u := NewUsers()
	require.NoError(t, u.SetPassword("default", "secret"))
	st := Initial(u)
	require.False(t, st.Authenticated)
}

func TestCheckPassword(t *testing.T) {
	u := NewUsers()
	require.NoError(t, u.SetPassword("default", "secret"))
	require.True(t, u.Check("default", "secret"))
	require.False(t, u.Check("default", "wrong"))
	require.False(t, u.Check("nobody", "anything"))
}

func TestDescribe(t *testing.T) {
	u := NewUsers()
	hasPassword, ok := u.Describe("default")
	require.True(t, ok)
	require.False(t, hasPassword)

	require.NoError(t, u.SetPassword("default", "secret"))
	hasPassword, ok = u.Describe("default")
	require.True(t, ok)
	require.True(t, hasPassword)

	_, ok = u.Describe("nosuchuser")
	require.False(t, ok)
}
