package observability

import (
	"strings"

	"github.com/prefeitura-rio/app-credentialing/internal/logging"
)

// Logger returns the global safe logger instance
func Logger() *logging.SafeLogger {
	return logging.Logger
}

// MaskSSN keeps only the last four digits of a social security number
func MaskSSN(ssn string) string {
	digits := onlyDigits(ssn)
	if len(digits) != 9 {
		return "***-**-****"
	}
	return "***-**-" + digits[5:]
}

// MaskNPI keeps the first two and last two digits of an NPI
func MaskNPI(npi string) string {
	if len(npi) != 10 {
		return "**********"
	}
	return npi[:2] + "******" + npi[8:]
}

// MaskEmail keeps the first character of the local part and the domain
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return "****"
	}
	return email[:1] + "****" + email[at:]
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
