package llm

import (
	"encoding/json"
	"fmt"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// FirstJSONObject returns the first balanced top-level JSON object in s.
// Models wrap payloads in prose or code fences often enough that decoding the
// raw content directly is a losing game.
func FirstJSONObject(s string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if start >= 0 {
				inString = true
			}
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// rawBatchResponse mirrors the JSON shape the model is told to produce.
type rawBatchResponse struct {
	BatchNumber     string            `json:"batch_number"`
	ManufactureDate string            `json:"manufacture_date"`
	Manufacturer    string            `json:"manufacturer"`
	TestResults     map[string]string `json:"test_results"`
}

// ParseResponse turns raw model output into a BatchRecord. Every schema
// parameter absent from the response is backfilled with TBD — missing is not
// an error. A response with no decodable JSON object is.
func ParseResponse(content, filename string) (BatchRecord, error) {
	obj, ok := FirstJSONObject(content)
	if !ok {
		return BatchRecord{}, fmt.Errorf("no JSON object in model response")
	}

	if err := ValidateJSONAgainstSchema(BuildBatchJSONSchema(), []byte(obj)); err != nil {
		return BatchRecord{}, err
	}

	var raw rawBatchResponse
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return BatchRecord{}, fmt.Errorf("decode batch response: %w", err)
	}

	rec := BatchRecord{
		Filename:        filename,
		BatchNumber:     raw.BatchNumber,
		ManufactureDate: raw.ManufactureDate,
		Manufacturer:    raw.Manufacturer,
		TestResults:     make(map[string]string, len(constants.TestParameters)),
	}
	for _, p := range constants.TestParameters {
		if v, ok := raw.TestResults[p]; ok {
			rec.TestResults[p] = v
		} else {
			rec.TestResults[p] = constants.SentinelTBD
		}
	}
	return rec, nil
}
