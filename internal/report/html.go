package report

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/zosci/ce/internal/job"
	"github.com/zosci/ce/internal/stats"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<table border="1" style="white-space:nowrap;width:100%;border-collapse: collapse">
<thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead>
<tbody>
{{range .Rows}}<tr>{{range .}}<td style="text-align:left"><pre>{{.}}</pre></td>{{end}}</tr>
{{end}}</tbody>
</table>
</body>
</html>
`))

type page struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// HTMLPath is where the tests or logs page of a state is written for a play.
func HTMLPath(dir string, state job.State, kind string, play int) string {
	return filepath.Join(dir, fmt.Sprintf("%s-job-%s-replay-%d.html", state.Label(), kind, play))
}

// WriteHTML writes the tests and logs pages of every state that has
// entries, and returns the paths written.
func WriteHTML(dir string, play int, st stats.Statistics) ([]string, error) {
	sections := []struct {
		state job.State
		tests []string
		logs  []job.LogEntry
	}{
		{job.Failure, st.FailedTests, st.FailedLog},
		{job.Exceeded, st.ExceededTests, st.ExceededLog},
		{job.Success, st.SuccessTests, st.SuccessLog},
	}

	var written []string
	for _, sec := range sections {
		if len(sec.tests) > 0 {
			path := HTMLPath(dir, sec.state, "tests", play)
			if err := writePage(path, testsPage(sec.state, sec.tests)); err != nil {
				return written, err
			}
			written = append(written, path)
		}
		if len(sec.logs) > 0 {
			path := HTMLPath(dir, sec.state, "logs", play)
			if err := writePage(path, logsPage(sec.state, sec.logs)); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func testsPage(state job.State, tests []string) page {
	p := page{Title: state.Label() + " test cases", Headers: []string{"Count", "Test Case"}}
	for i, tc := range tests {
		p.Rows = append(p.Rows, []string{fmt.Sprint(i), tc})
	}
	return p
}

func logsPage(state job.State, logs []job.LogEntry) page {
	p := page{
		Title:   state.Label() + " job logs",
		Headers: []string{"Count", "Job ID", "Managed Node", "Pytest Command", "Message", "Result", "Standard Out & Error", "Date and Time"},
	}
	for i, e := range sortedByJob(logs) {
		p.Rows = append(p.Rows, []string{
			fmt.Sprint(i), fmt.Sprint(e.JobID), e.Hostname, e.Command, e.Message, resultOf(e), e.Output, e.DateTime,
		})
	}
	return p
}

func writePage(path string, p page) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pageTemplate.Execute(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
