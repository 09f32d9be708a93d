package llm

import (
	"strings"

	"github.com/qmlabs-dsdi/coa-processor/constants"
)

// MaxTextChars is the default character budget submitted to the model.
// Truncation always keeps the prefix so repeated runs submit identical input.
const MaxTextChars = 8000

// TruncateText deterministically bounds text to max characters.
func TruncateText(text string, max int) string {
	if max <= 0 {
		max = MaxTextChars
	}
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

// BuildSystemPrompt composes the extraction instructions: the full parameter
// schema, the standardization rules, and the required JSON shape.
func BuildSystemPrompt() string {
	var b strings.Builder

	b.WriteString("You are an expert at extracting analytical test results from Certificate of Analysis (COA) documents for pharmaceutical drug substances.\n\n")
	b.WriteString("Extract the following information from the COA document:\n\n")
	b.WriteString("REQUIRED BASIC INFORMATION:\n")
	b.WriteString("1. Batch Number - batch/lot identifiers such as \"CR-C200727003-FPF24001\"\n")
	b.WriteString("2. Manufacture Date - production date in YYYY-MM-DD or similar format\n")
	b.WriteString("3. Manufacturer - the producing company name\n\n")

	b.WriteString("REQUIRED TEST PARAMETERS (extract the actual RESULTS, not acceptance criteria):\n")
	for _, p := range constants.TestParameters {
		b.WriteString("- ")
		b.WriteString(p)
		b.WriteString("\n")
	}

	b.WriteString("\nIMPORTANT STANDARDIZATION RULES:\n")
	b.WriteString("- For IR, HPLC and Polymorphic Form -- XRPD identification tests: if the result shows \"Conforms\", standardize to \"" + constants.ConformsFull + "\"\n")
	b.WriteString("- For appearance results: extract the exact visual description (e.g. \"Yellow powder\")\n")
	b.WriteString("- For percentages: include the % symbol (e.g. \"99.7%\", \"0.11%\")\n")
	b.WriteString("- For ppm values: include the \"ppm\" unit (e.g. \"3 ppm\")\n")
	b.WriteString("- For \"not detected\" or \"none detected\": use \"" + constants.SentinelND + "\"\n")
	b.WriteString("- For missing or unclear results: use \"" + constants.SentinelTBD + "\"\n\n")

	b.WriteString("Return ONLY one JSON object of the form:\n")
	b.WriteString(`{"batch_number": "...", "manufacture_date": "YYYY-MM-DD", "manufacturer": "...", "test_results": {`)
	b.WriteString("\n")
	for i, p := range constants.TestParameters {
		b.WriteString("  \"" + p + "\": \"result\"")
		if i < len(constants.TestParameters)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}}\n\n")

	b.WriteString("CRITICAL INSTRUCTIONS:\n")
	b.WriteString("- Extract only the ACTUAL RESULTS from the results column, never the acceptance criteria\n")
	b.WriteString("- Use the test_results keys exactly as listed above\n")
	b.WriteString("- Be precise with units and formatting\n")

	return b.String()
}

// BuildUserPrompt packages the extracted document text for the model.
func BuildUserPrompt(text string) string {
	return "Extract all test results from this COA document:\n\n" + text
}
