package validate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmail(t *testing.T) {
	require.NoError(t, Email("casey@example.com"))
	require.Error(t, Email(""))
	require.Error(t, Email("casey"))
	require.Error(t, Email("casey@nodot"))
	require.Error(t, Email("two words@example.com"))
}

func TestPassword(t *testing.T) {
	require.NoError(t, Password("hunter22"))
	require.Error(t, Password("tiny"))
	require.Error(t, Password(""))
}

func TestDate(t *testing.T) {
	require.NoError(t, Date("2026-03-15"))
	require.Error(t, Date("2026-3-15"))
	require.Error(t, Date("15-03-2026"))
	require.Error(t, Date("2026/03/15"))
	require.Error(t, Date(""))
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register("casey", "casey@example.com", "hunter22"))
	require.Error(t, Register("", "casey@example.com", "hunter22"))
	require.Error(t, Register("casey", "bad-email", "hunter22"))
	require.Error(t, Register("casey", "casey@example.com", "tiny"))
}

func TestCreateHabit(t *testing.T) {
	require.NoError(t, CreateHabit("Morning run", 20))
	require.NoError(t, CreateHabit("Morning run", 0))
	require.Error(t, CreateHabit("", 20))
	require.Error(t, CreateHabit("Morning run", -1))
}
