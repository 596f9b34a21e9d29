// Package datasets loads evaluation sets for the optimizer.
package datasets

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"

	"github.com/theraloop/theraloop-go/pkg/errors"
	"github.com/theraloop/theraloop-go/pkg/gepa"
)

// LoadExamples reads a JSONL file with one evaluation example per line. Blank
// lines are skipped; a malformed line fails the whole load with its line
// number attached.
func LoadExamples(path string) ([]gepa.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "datasets: cannot open eval set")
	}
	defer f.Close()

	var examples []gepa.Example
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ex gepa.Example
		if err := json.Unmarshal(line, &ex); err != nil {
			return nil, errors.WithFields(
				errors.Wrap(err, errors.InvalidInput, "datasets: malformed example"),
				errors.Fields{"line": lineNo},
			)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, errors.InvalidInput, "datasets: read failed")
	}
	return examples, nil
}
