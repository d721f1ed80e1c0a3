package detectors

import "github.com/varalys/pubguard/internal/types"

var builtin = []Pattern{
	{
		ID:          "email",
		Expr:        `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`,
		Description: "Email address",
		Severity:    types.SevHigh,
	},
	{
		ID:          "phone-us",
		Expr:        `\b\d{3}[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		Description: "US phone number",
		Severity:    types.SevHigh,
	},
	{
		ID:          "phone-us-parentheses",
		Expr:        `\(\d{3}\)\s?\d{3}[-.\s]?\d{4}\b`,
		Description: "US phone number with parentheses",
		Severity:    types.SevHigh,
	},
	{
		ID:          "ssn",
		Expr:        `\b\d{3}-\d{2}-\d{4}\b`,
		Description: "Social Security Number",
		Severity:    types.SevCritical,
		Redact:      true,
	},
	{
		ID:          "credit-card",
		Expr:        `\b\d{4}[\s-]?\d{4}[\s-]?\d{4}[\s-]?\d{4}\b`,
		Description: "Credit card number pattern",
		Severity:    types.SevCritical,
		Redact:      true,
	},
	{
		ID:          "ip-private",
		Expr:        `\b(192\.168\.\d{1,3}\.\d{1,3}|10\.\d{1,3}\.\d{1,3}\.\d{1,3}|172\.(1[6-9]|2[0-9]|3[01])\.\d{1,3}\.\d{1,3}|127\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`,
		Description: "Private IP address",
		Severity:    types.SevMed,
	},
	{
		ID:          "database-url",
		Expr:        `(postgres|postgresql|mysql|mongodb|mongodb\+srv|redis|mariadb)://[^\s]+`,
		Description: "Database connection string",
		Severity:    types.SevHigh,
		Redact:      true,
	},
	{
		ID:          "localhost-url",
		Expr:        `https?://(localhost|127\.0\.0\.1|0\.0\.0\.0)(:\d+)?`,
		Description: "Localhost URL",
		Severity:    types.SevMed,
	},
	{
		ID:          "jwt-token",
		Expr:        `eyJ[A-Za-z0-9_-]+\.eyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+`,
		Description: "JWT token",
		Severity:    types.SevCritical,
		Redact:      true,
	},
	{
		ID:          "bearer-token",
		Expr:        `Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		Description: "Bearer token",
		Severity:    types.SevCritical,
		Redact:      true,
	},
}

// Builtin returns a copy of the shipped rule set in registration order.
func Builtin() []Pattern {
	out := make([]Pattern, len(builtin))
	copy(out, builtin)
	return out
}
