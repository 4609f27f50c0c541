package utils

// Truncate is a simple string truncate
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// RedactCaller masks a caller identifier down to its last four characters
// so phone numbers never land in logs in full.
func RedactCaller(caller string) string {
	if len(caller) <= 4 {
		return "****"
	}
	return "****" + caller[len(caller)-4:]
}
