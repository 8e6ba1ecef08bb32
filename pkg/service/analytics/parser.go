package analytics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ParseRows extracts the JSON blob embedded between <pre> markers of the
// gateway's HTML wrapper and normalizes it to a list of row maps. The blob
// is either an object with a "rows" array-of-arrays (header row first) or a
// bare array-of-arrays.
func ParseRows(body string) ([]map[string]any, error) {
	start := strings.Index(body, "<pre>")
	if start < 0 {
		return nil, goerr.New("response has no <pre> marker")
	}
	start += len("<pre>")
	end := strings.Index(body[start:], "</pre>")
	if end < 0 {
		return nil, goerr.New("response has no closing </pre> marker")
	}
	blob := strings.TrimSpace(body[start : start+end])

	var wrapper struct {
		Rows [][]any `json:"rows"`
	}
	if err := json.Unmarshal([]byte(blob), &wrapper); err == nil && wrapper.Rows != nil {
		return rowsToMaps(wrapper.Rows)
	}

	var bare [][]any
	if err := json.Unmarshal([]byte(blob), &bare); err != nil {
		return nil, goerr.Wrap(err, "embedded blob is neither a rows object nor an array of arrays")
	}
	return rowsToMaps(bare)
}

// rowsToMaps treats the first row as headers and zips the rest against it
func rowsToMaps(rows [][]any) ([]map[string]any, error) {
	if len(rows) == 0 {
		return []map[string]any{}, nil
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		s, ok := h.(string)
		if !ok {
			s = fmt.Sprint(h)
		}
		headers[i] = s
	}

	result := make([]map[string]any, 0, len(rows)-1)
	for _, row := range rows[1:] {
		m := make(map[string]any, len(headers))
		for i, h := range headers {
			if i < len(row) {
				m[h] = row[i]
			}
		}
		result = append(result, m)
	}
	return result, nil
}
