package output

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zosci/ce/internal/ui"
)

func TestMain(m *testing.M) {
	ui.DisableColors()
	os.Exit(m.Run())
}

const failedRun = `============================= test session starts ==============================
platform zos -- Python 3.11.4, pytest-7.4.0, pluggy-1.2.0
collected 3 items

tests/functional/modules/test_zos_copy_func.py::test_copy_file[ec01] PASSED [ 33%]
tests/functional/modules/test_zos_copy_func.py::test_copy_pds[ec01] FAILED [ 66%]
tests/functional/modules/test_zos_copy_func.py::test_copy_vsam[ec01] SKIPPED [100%]

=================================== FAILURES ===================================
__________________________ test_copy_pds[ec01] __________________________

    def test_copy_pds(ansible_zos_module):
>       assert result.get("changed") is True
E       AssertionError: assert False is True
E        +  where False = <built-in method get>

tests/functional/modules/test_zos_copy_func.py:412: AssertionError
=========================== short test summary info ============================
FAILED tests/functional/modules/test_zos_copy_func.py::test_copy_pds[ec01]
============== 1 failed, 1 passed, 1 skipped in 12.31s ===============
`

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		out     string
		want    Outcome
		summary string
		first   string
	}{
		{
			name: "failed run",
			out:  failedRun,
			want: Outcome{
				Passed: 1, Failed: 1, Skipped: 1,
				Failures: []Failure{{
					TestName: "test_copy_pds[ec01]",
					File:     "tests/functional/modules/test_zos_copy_func.py",
					Line:     412,
					Message:  "AssertionError: assert False is True\n+  where False = <built-in method get>",
				}},
				SummaryLine: "1 failed, 1 passed, 1 skipped in 12.31s",
			},
			summary: "1 failed, 1 passed, 1 skipped in 12.31s",
			first:   "test_copy_pds[ec01] (tests/functional/modules/test_zos_copy_func.py:412): AssertionError: assert False is True",
		},
		{
			name:    "passing run",
			out:     "tests/a.py::test_ok PASSED\n======== 1 passed in 0.50s ========\n",
			want:    Outcome{Passed: 1, SummaryLine: "1 passed in 0.50s"},
			summary: "1 passed in 0.50s",
		},
		{
			name:    "result lines without a summary",
			out:     "tests/a.py::test_a PASSED [ 50%]\ntests/a.py::test_b ERROR [100%]\n",
			want:    Outcome{Passed: 1, Errors: 1},
			summary: "1 passed, 1 error",
		},
		{
			name: "not pytest",
			out:  "ssh: connect to host ec01 port 22: Connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.out)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.summary, got.String())
			assert.Equal(t, tt.first, got.FirstFailure())
			assert.Equal(t, tt.summary == "", got.Empty())
		})
	}
}

func TestParse_ErrorsSection(t *testing.T) {
	out := `==================================== ERRORS ====================================
____________________ ERROR collecting tests/test_broken.py _____________________
E   ModuleNotFoundError: No module named 'ibm_zos_core'
=========================== short test summary info ============================
ERROR tests/test_broken.py
=============================== 1 error in 0.12s ===============================`

	got := Parse(out)
	assert.Equal(t, 1, got.Errors)
	require.Len(t, got.Failures, 0, "collection headers carry more than one word")
	assert.Equal(t, "1 error in 0.12s", got.String())
}

func TestHighlight(t *testing.T) {
	for _, line := range []string{
		"tests/a.py::test_ok PASSED",
		"E       assert 1 == 2",
		"plain output",
		"Error: something",
	} {
		assert.Equal(t, line, Highlight(line), "colors are disabled")
	}
	assert.True(t, isErrorLine("E       assert 1 == 2"))
	assert.True(t, isErrorLine("FAILED tests/a.py::test_x"))
	assert.True(t, isErrorLine("Traceback (most recent call last):"))
	assert.False(t, isErrorLine("collected 3 items"))
}
