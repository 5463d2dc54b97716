package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Finish fills the summary and overall status and stamps the end time.
func (idx *Index) Finish() {
	now := time.Now()
	idx.EndTime = &now
	idx.Summary = computeSummary(idx.Flows)
	idx.Status = computeRunStatus(idx.Flows)
}

// Passed reports whether every flow passed.
func (idx *Index) Passed() bool {
	return idx.Status == StatusPassed
}

// computeSummary calculates summary from flow statuses.
func computeSummary(flows []Flow) Summary {
	var s Summary
	for _, f := range flows {
		s.Total++
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// computeRunStatus determines overall run status from flows.
func computeRunStatus(flows []Flow) Status {
	hasFailure := false
	for _, f := range flows {
		if !f.Status.IsTerminal() {
			return StatusRunning
		}
		if f.Status == StatusFailed {
			hasFailure = true
		}
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

// Write stores idx as report.json and junit.xml under dir.
func Write(dir string, idx *Index) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := atomicWriteJSON(filepath.Join(dir, "report.json"), idx); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeJUnit(filepath.Join(dir, "junit.xml"), idx); err != nil {
		return fmt.Errorf("write junit: %w", err)
	}
	return nil
}

// Read loads report.json from dir.
func Read(dir string) (*Index, error) {
	data, err := os.ReadFile(filepath.Join(dir, "report.json")) //#nosec G304 -- report dir is user-provided
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &idx, nil
}

// atomicWriteJSON writes v through a temp file so readers never see a
// partial document.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type junitSuites struct {
	XMLName  xml.Name     `xml:"testsuites"`
	Tests    int          `xml:"tests,attr"`
	Failures int          `xml:"failures,attr"`
	Skipped  int          `xml:"skipped,attr"`
	Suites   []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name     string      `xml:"name,attr"`
	Tests    int         `xml:"tests,attr"`
	Failures int         `xml:"failures,attr"`
	Time     string      `xml:"time,attr"`
	Cases    []junitCase `xml:"testcase"`
}

type junitCase struct {
	Name      string        `xml:"name,attr"`
	ClassName string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *struct{}     `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr,omitempty"`
}

// writeJUnit writes one suite per flow with one case per command.
func writeJUnit(path string, idx *Index) error {
	out := junitSuites{}
	for _, f := range idx.Flows {
		suite := junitSuite{Name: f.Name, Time: seconds(f.Duration)}
		for _, cmd := range f.Commands {
			c := junitCase{
				Name:      fmt.Sprintf("%d: %s", cmd.Index+1, cmd.Description),
				ClassName: f.SourceFile,
				Time:      seconds(cmd.Duration),
			}
			switch cmd.Status {
			case StatusFailed:
				c.Failure = &junitFailure{Message: errorMessage(cmd.Error)}
				if cmd.Error != nil {
					c.Failure.Type = cmd.Error.Category
				}
				suite.Failures++
				out.Failures++
			case StatusSkipped, StatusPending:
				c.Skipped = &struct{}{}
				out.Skipped++
			}
			suite.Cases = append(suite.Cases, c)
			suite.Tests++
			out.Tests++
		}
		out.Suites = append(out.Suites, suite)
	}

	data, err := xml.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, append([]byte(xml.Header), data...))
}

func errorMessage(e *Error) string {
	if e == nil {
		return "failed"
	}
	return e.Message
}

func seconds(ms int64) string {
	return fmt.Sprintf("%.3f", float64(ms)/1000)
}
