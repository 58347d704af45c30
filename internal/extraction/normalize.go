package extraction

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var datePatterns = []struct {
	re     *regexp.Regexp
	layout string
}{
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}`), "2006-01-02"},
	{regexp.MustCompile(`\d{2}/\d{2}/\d{4}`), "01/02/2006"},
	{regexp.MustCompile(`\d{2}-\d{2}-\d{4}`), "01-02-2006"},
	{regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`), "02.01.2006"},
}

var textualDateRe = regexp.MustCompile(`(?i)(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\s+(\d{4})`)

var monthMap = map[string]string{
	"jan": "01", "feb": "02", "mar": "03", "apr": "04",
	"may": "05", "jun": "06", "jul": "07", "aug": "08",
	"sep": "09", "oct": "10", "nov": "11", "dec": "12",
}

var amountFieldKeywords = []string{"amount", "charge", "fee", "cost", "total", "price", "duty", "tax"}

// Normalize cleans an extracted value according to the field it belongs to:
// dates to YYYY-MM-DD, amounts to two decimals, weights stripped of units.
// Values that do not parse are returned trimmed but otherwise untouched.
func Normalize(fieldName, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	lower := strings.ToLower(fieldName)

	if strings.Contains(lower, "date") {
		if d := normalizeDate(value); d != "" {
			return d
		}
	}
	for _, kw := range amountFieldKeywords {
		if strings.Contains(lower, kw) {
			if a := normalizeAmount(value); a != "" {
				return a
			}
			break
		}
	}
	if strings.Contains(lower, "weight") {
		if w := normalizeWeight(value); w != "" {
			return w
		}
	}
	return value
}

func normalizeDate(value string) string {
	for _, p := range datePatterns {
		if m := p.re.FindString(value); m != "" {
			if t, err := time.Parse(p.layout, m); err == nil {
				return t.Format("2006-01-02")
			}
		}
	}
	if m := textualDateRe.FindStringSubmatch(value); m != nil {
		day := m[1]
		if len(day) == 1 {
			day = "0" + day
		}
		month, ok := monthMap[strings.ToLower(m[2])]
		if !ok {
			return ""
		}
		return fmt.Sprintf("%s-%s-%s", m[3], month, day)
	}
	return ""
}

var nonAmountRe = regexp.MustCompile(`[^\d.,\-]`)

func normalizeAmount(value string) string {
	cleaned := nonAmountRe.ReplaceAllString(value, "")
	if cleaned == "" {
		return ""
	}
	switch {
	case strings.Contains(cleaned, ",") && strings.Contains(cleaned, "."):
		// Both present: comma is the thousands separator.
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	case strings.Contains(cleaned, ","):
		parts := strings.Split(cleaned, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			cleaned = strings.ReplaceAll(cleaned, ",", ".")
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%.2f", f)
}

var (
	weightUnitRe  = regexp.MustCompile(`(?i)(kgs|lbs|kg|lb|grams|gram|g)\.?`)
	weightValueRe = regexp.MustCompile(`[\d.,]+`)
)

func normalizeWeight(value string) string {
	cleaned := strings.TrimSpace(weightUnitRe.ReplaceAllString(value, ""))
	if m := weightValueRe.FindString(cleaned); m != "" {
		return normalizeAmount(m)
	}
	return ""
}
