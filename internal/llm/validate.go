package llm

import (
	"strings"
	"unicode"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// Validate normalizes an extracted record into canonical form:
//   - whitespace trimmed everywhere
//   - date separators mapped to "-"
//   - "not detected"/"none detected" variants -> ND
//   - "to be determined"/empty -> TBD
//   - "conforms"/"conform" -> full canonical phrase for identification
//     parameters, the short token for everything else
//   - appearance description capitalized unless it is a sentinel
//
// The pass is idempotent: Validate(Validate(r)) == Validate(r).
func Validate(rec BatchRecord) BatchRecord {
	rec.BatchNumber = strings.TrimSpace(rec.BatchNumber)
	rec.Manufacturer = strings.TrimSpace(rec.Manufacturer)
	rec.ManufactureDate = normalizeDate(rec.ManufactureDate)

	out := make(map[string]string, len(rec.TestResults))
	for param, value := range rec.TestResults {
		out[param] = normalizeResult(param, value)
	}
	rec.TestResults = out
	return rec
}

func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	return strings.ReplaceAll(s, ".", "-")
}

func normalizeResult(param, value string) string {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)

	switch lower {
	case "not detected", "none detected", "nd":
		return constants.SentinelND
	case "to be determined", "tbd", "":
		return constants.SentinelTBD
	case "conforms", "conform":
		if constants.IsIdentificationParameter(param) {
			return constants.ConformsFull
		}
		return constants.ConformsShort
	}
	if strings.Contains(lower, "conforms to reference") {
		return constants.ConformsFull
	}

	if param == constants.AppearanceParameter && v != constants.SentinelTBD && v != constants.SentinelND {
		v = capitalizeFirst(v)
	}
	return v
}

func capitalizeFirst(s string) string {
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
