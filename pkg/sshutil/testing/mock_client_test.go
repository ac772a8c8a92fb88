package testing

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockClient_Responses(t *testing.T) {
	m := NewMockClient("ec01")
	m.SetCommandResponse(`^pytest .*test_copy`, CommandResponse{Stdout: []byte("1 failed"), ExitCode: 1})
	m.SetCommandResponse("uname", CommandResponse{Stdout: []byte("OS/390\n")})

	out, _, code, err := m.Exec("uname")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "OS/390\n", string(out))

	var stdout bytes.Buffer
	code, err = m.ExecContext(context.Background(), "pytest tests/test_copy.py::a", &stdout, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Equal(t, "1 failed", stdout.String())

	_, _, code, err = m.Exec("anything else")
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	assert.Len(t, m.Commands(), 3)
	assert.Equal(t, "ec01:22", m.GetAddress())
}

func TestMockClient_LaterResponseWins(t *testing.T) {
	m := NewMockClient("ec01")
	m.SetCommandResponse("pytest", CommandResponse{ExitCode: 1})
	m.SetCommandResponse("pytest", CommandResponse{ExitCode: 0})

	_, _, code, err := m.Exec("pytest")
	require.NoError(t, err)
	assert.Equal(t, 0, code)
}

func TestMockClient_ContextTimeout(t *testing.T) {
	m := NewMockClient("ec01")
	m.SetCommandResponse("sleep", CommandResponse{Delay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	code, err := m.ExecContext(ctx, "sleep", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, -1, code)
	assert.Equal(t, 1, m.Killed())
}

func TestMockClient_ErrorsAndClose(t *testing.T) {
	m := NewMockClient("ec01")
	boom := errors.New("session refused")
	m.SetCommandResponse("pytest", CommandResponse{Error: boom})

	_, err := m.ExecContext(context.Background(), "pytest", nil, nil)
	assert.ErrorIs(t, err, boom)

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())

	_, _, code, err := m.Exec("uname")
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}
