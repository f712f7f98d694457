package validators

import (
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode"

	pkgerrors "github.com/stclabs/engage-backend/pkg/errors"
	"github.com/stclabs/engage-backend/pkg/types"
)

const dateLayout = "2006-01-02"

// ParseDateRange reads the optional startDate/endDate query parameters
// (YYYY-MM-DD). endDate is inclusive on the wire and converted to an
// exclusive next-day bound.
func ParseDateRange(r *http.Request) (types.DateRange, error) {
	var dateRange types.DateRange

	if raw := strings.TrimSpace(r.URL.Query().Get("startDate")); raw != "" {
		start, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return dateRange, pkgerrors.New(pkgerrors.CodeValidation, "startDate must be YYYY-MM-DD")
		}
		dateRange.Start = start
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("endDate")); raw != "" {
		end, err := time.ParseInLocation(dateLayout, raw, time.UTC)
		if err != nil {
			return dateRange, pkgerrors.New(pkgerrors.CodeValidation, "endDate must be YYYY-MM-DD")
		}
		if dateRange.HasStart() && end.Before(dateRange.Start) {
			return dateRange, pkgerrors.New(pkgerrors.CodeValidation, "endDate must not precede startDate")
		}
		dateRange.End = end.AddDate(0, 0, 1)
	}

	return dateRange, nil
}

// NormalizePhone converts raw user input into E.164. Ten-digit national
// numbers get the +1 prefix; anything else must already carry a country
// code.
func NormalizePhone(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) || r == '+' {
			return r
		}
		if unicode.IsSpace(r) || r == '-' || r == '(' || r == ')' || r == '.' {
			return -1
		}
		return 'x'
	}, strings.TrimSpace(raw))

	if strings.ContainsRune(cleaned, 'x') {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone contains invalid characters")
	}
	if cleaned == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "phone is required")
	}

	if strings.HasPrefix(cleaned, "+") {
		digits := cleaned[1:]
		if len(digits) < 8 || len(digits) > 15 || strings.ContainsRune(digits, '+') {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "phone must be a valid E.164 number")
		}
		return cleaned, nil
	}

	switch {
	case len(cleaned) == 10:
		return "+1" + cleaned, nil
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "1"):
		return "+" + cleaned, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot normalize phone with %d digits", len(cleaned)))
	}
}
