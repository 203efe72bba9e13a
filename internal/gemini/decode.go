package gemini

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// DecodeRecord parses the model's raw text into a statement record and
// validates the tagged variant shape. Records matching neither the
// credit-card nor the bank shape are rejected here, before they can enter
// the store.
func DecodeRecord(raw string) (*ledger.StatementRecord, error) {
	clean := cleanModelJSON(raw)

	var rec ledger.StatementRecord
	if err := json.Unmarshal([]byte(clean), &rec); err != nil {
		return nil, fmt.Errorf("gemini: malformed model output: %w", err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("gemini: malformed model output: %w", err)
	}
	return &rec, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk when the model
// ignores the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	// Handle ```json ... ``` or ``` ... ``` wrappers.
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if there is still junk around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
