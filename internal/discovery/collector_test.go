//go:build unix

package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCollected(t *testing.T) {
	out := `tests/functional/modules/test_zos_copy.py::test_copy[a]
tests/functional/modules/test_zos_copy.py::test_copy[b]

2 tests collected in 0.12s
`
	assert.Equal(t, []string{
		"tests/functional/modules/test_zos_copy.py::test_copy[a]",
		"tests/functional/modules/test_zos_copy.py::test_copy[b]",
	}, ParseCollected(out))
	assert.Nil(t, ParseCollected("no tests ran"))
}

func TestPytestCollector(t *testing.T) {
	c := PytestCollector{Command: `sh -c 'printf "tests/a.py::t1\ncollected\ntests/a.py::t2\n"'`}

	ids, err := c.Collect(context.Background(), CollectRequest{Paths: []string{"a.py"}, Ignore: []string{"b.py"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"tests/a.py::t1", "tests/a.py::t2"}, ids)
}

func TestPytestCollector_NoTestsIsNotAnError(t *testing.T) {
	c := PytestCollector{Command: `sh -c 'echo "no tests ran"; exit 5'`}

	ids, err := c.Collect(context.Background(), CollectRequest{})
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestPytestCollector_Failure(t *testing.T) {
	c := PytestCollector{Command: `sh -c 'echo "ERROR: file not found" >&2; exit 4'`}

	_, err := c.Collect(context.Background(), CollectRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestCommandLister(t *testing.T) {
	l := CommandLister{Command: `echo "ec01.example.com ec02.example.com"`}

	hosts, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ec01.example.com", "ec02.example.com"}, hosts)

	_, err = CommandLister{Command: "false"}.List(context.Background())
	assert.Error(t, err)

	_, err = CommandLister{Command: ""}.List(context.Background())
	assert.Error(t, err)
}
