package gemini

import (
	"strings"

	"github.com/dvloznov/statement-ledger/internal/ledger"
)

// Instruction builds the extraction instruction set for one document. The
// fingerprint is embedded so the model echoes it back as bill_hash, which
// downstream merge logic uses as its join key.
func Instruction(fingerprint string) string {
	var b strings.Builder

	b.WriteString("You are a financial statement parser for scanned credit-card and bank statements.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Read the attached statement (text and/or page images) and extract ALL line items.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString("- Output a single JSON object.\n\n")

	b.WriteString("The object must have these fields:\n")
	b.WriteString("- \"kind\": \"credit_card\" or \"bank\"\n")
	b.WriteString("- \"institution_name\": string (issuing bank or card issuer)\n")
	b.WriteString("- \"statement_date\": string, ISO format \"YYYY-MM-DD\"\n")
	b.WriteString("- \"bill_hash\": string, copy the value \"" + fingerprint + "\" verbatim\n\n")

	b.WriteString("For kind \"credit_card\" additionally:\n")
	b.WriteString("- \"transactions\": array of line items (purchases and payments)\n")
	b.WriteString("- \"rewards\": array of line items (cashback, points credited as amounts)\n")
	b.WriteString("- \"total_amount\": number (amount due this period)\n\n")

	b.WriteString("For kind \"bank\" additionally:\n")
	b.WriteString("- \"withdrawals\": array of line items (money OUT, positive numbers)\n")
	b.WriteString("- \"deposits\": array of line items (money IN, positive numbers)\n")
	b.WriteString("- \"ending_balance\": number\n")
	b.WriteString("- \"account_number\": string\n\n")

	b.WriteString("Each line item must have:\n")
	b.WriteString("- \"date\": string, \"YYYY-MM-DD\" when determinable\n")
	b.WriteString("- \"description\": string\n")
	b.WriteString("- \"amount\": number, or null ONLY when a foreign amount cannot be converted\n")
	b.WriteString("- \"category\": string, one of the categories below\n")
	b.WriteString("- for foreign credit-card transactions: \"foreign_amount\": number and \"foreign_currency\": string\n\n")

	b.WriteString("Use ONLY the following categories:\n")
	for _, cat := range ledger.Categories {
		b.WriteString("  - " + cat + "\n")
	}
	b.WriteString("\nIf you are unsure, use category \"Other\".\n\n")

	b.WriteString("Return ONLY valid raw JSON.\n")
	b.WriteString("Do NOT wrap the response in code fences.\n")
	b.WriteString("Do NOT use ```json or any Markdown.\n")
	b.WriteString("Output must begin with \"{\" and end with \"}\".\n")

	return b.String()
}
