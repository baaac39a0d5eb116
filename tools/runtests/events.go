package runtests

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxFailures limits the failure summaries in the result.
const MaxFailures = 20

// Result represents the tool output.
type Result struct {
	Passed   int      `json:"passed" yaml:"passed"`
	Failed   int      `json:"failed" yaml:"failed"`
	Skipped  int      `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Failures []string `json:"failures" yaml:"failures"`
	Elapsed  string   `json:"elapsed,omitempty" yaml:"elapsed,omitempty"`
}

// Summary returns one line, e.g. "5 passed, 1 failed".
func (r *Result) Summary() string {
	s := fmt.Sprintf("%d passed, %d failed", r.Passed, r.Failed)
	if r.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", r.Skipped)
	}
	return s
}

// event is a go test -json record.
type event struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
	Output  string `json:"Output"`
}

// ParseEvents reads go test -json events. Only top level tests are counted;
// a package that fails without a failed test is reported as a build failure.
// Lines that are not JSON events are ignored.
func ParseEvents(r io.Reader) *Result {
	res := &Result{
		Failures: []string{},
	}

	// first relevant output line per test, keyed by package and test
	reasons := map[string]string{}
	pkgOutput := map[string]string{}
	pkgFailedTests := map[string]int{}
	var order []string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] != '{' {
			continue
		}
		var ev event
		if json.Unmarshal(line, &ev) != nil {
			continue
		}

		if ev.Test == "" {
			switch ev.Action {
			case "output":
				if pkgOutput[ev.Package] == "" {
					if l := strings.TrimSpace(ev.Output); isReason(l) {
						pkgOutput[ev.Package] = l
					}
				}
			case "fail":
				if pkgFailedTests[ev.Package] == 0 {
					res.Failed++
					reason := pkgOutput[ev.Package]
					if reason == "" {
						reason = "build failed"
					}
					res.addFailure(ev.Package + ": " + reason)
				}
			}
			continue
		}

		topLevel := !strings.Contains(ev.Test, "/")
		key := ev.Package + " " + ev.Test
		switch ev.Action {
		case "output":
			if _, ok := reasons[key]; !ok {
				if l := strings.TrimSpace(ev.Output); isReason(l) {
					reasons[key] = l
				}
			}
		case "pass":
			if topLevel {
				res.Passed++
			}
		case "skip":
			if topLevel {
				res.Skipped++
			}
		case "fail":
			if !topLevel {
				// subtest reason bubbles up to the parent
				parent := ev.Package + " " + ev.Test[:strings.Index(ev.Test, "/")]
				if _, ok := reasons[parent]; !ok {
					if r, ok := reasons[key]; ok {
						reasons[parent] = r
					}
				}
				continue
			}
			res.Failed++
			pkgFailedTests[ev.Package]++
			order = append(order, key)
		}
	}

	for _, key := range order {
		s := key
		if r := reasons[key]; r != "" {
			s += ": " + r
		}
		res.addFailure(s)
	}
	return res
}

func (r *Result) addFailure(s string) {
	if len(r.Failures) < MaxFailures {
		r.Failures = append(r.Failures, s)
	}
}

// isReason returns true for output lines that explain a failure,
// e.g. "calc_test.go:12: expected 4, got 5" or a compiler error.
func isReason(l string) bool {
	if l == "" || strings.HasPrefix(l, "=== ") || strings.HasPrefix(l, "--- ") {
		return false
	}
	return strings.Contains(l, ".go:") || strings.HasPrefix(l, "panic:")
}
