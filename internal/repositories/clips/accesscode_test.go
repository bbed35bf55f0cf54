package clips

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccessCode_RoundTrip(t *testing.T) {
	hash, err := HashAccessCode("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	require.True(t, CheckAccessCode(hash, "s3cret"))
	require.False(t, CheckAccessCode(hash, "wrong"))
}

func TestCheckAccessCode_BadHash(t *testing.T) {
	require.False(t, CheckAccessCode("not-a-bcrypt-hash", "anything"))
}
