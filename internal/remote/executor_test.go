package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "", EnvPrefix(nil))
	assert.Equal(t,
		"export PYTHONPATH='/zoau/lib'; export ZOAU_HOME='/zoau'; ",
		EnvPrefix(map[string]string{"ZOAU_HOME": "/zoau", "PYTHONPATH": "/zoau/lib"}))
	assert.Equal(t, `export MSG='it'\''s'; `, EnvPrefix(map[string]string{"MSG": "it's"}))
}

func TestJoinScript(t *testing.T) {
	tests := []struct {
		name  string
		extra string
		cmd   Command
		want  string
	}{
		{"no extra", "", Command{Script: "pytest a"}, "pytest a"},
		{"extra", "cd /repo", Command{Script: "pytest a"}, "cd /repo; pytest a"},
		{"extra with trailing semicolon", " source venv/bin/activate; ", Command{Script: "pytest a"}, "source venv/bin/activate; pytest a"},
		{"env", "", Command{Script: "pytest a", Env: map[string]string{"A": "1"}}, "export A='1'; pytest a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinScript(tt.extra, tt.cmd))
		})
	}
}

func TestParseExitCode(t *testing.T) {
	code, err := parseExitCode([]byte("noise\n4\n"))
	assert.NoError(t, err)
	assert.Equal(t, 4, code)

	_, err = parseExitCode([]byte(""))
	assert.Error(t, err)

	_, err = parseExitCode([]byte("abc\n"))
	assert.Error(t, err)
}
