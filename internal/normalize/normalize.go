// Package normalize holds the pure field cleaners applied to upload cells
// before dimension resolution, matching, and diffing. Nothing here touches
// the database.
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// blankAliases are cell values treated as the canonical blank.
var blankAliases = map[string]struct{}{
	"":        {},
	"n/a":     {},
	"na":      {},
	"none":    {},
	"null":    {},
	"nan":     {},
	"unknown": {},
}

// Unknown is the display value stored for blank categorical fields.
const Unknown = "Unknown"

var (
	httpRe     = regexp.MustCompile(`(?i)^https?://`)
	wwwRe      = regexp.MustCompile(`(?i)^www[0-9]*\.`)
	leadIntRe  = regexp.MustCompile(`^(\d+)`)
	revenueRe  = regexp.MustCompile(`^(\d+(\.\d+)?)([MB])$`)
	titleCaser = cases.Title(language.English)
)

// Text trims a cell and collapses the usual blank spellings to "".
func Text(s string) string {
	t := strings.TrimSpace(s)
	if _, blank := blankAliases[strings.ToLower(t)]; blank {
		return ""
	}
	return t
}

// TextOrUnknown is Text with blanks coerced to the Unknown sentinel, the
// form stored in dimension tables.
func TextOrUnknown(s string) string {
	if t := Text(s); t != "" {
		return t
	}
	return Unknown
}

// TitleCase normalizes categorical text ("manager", "MANAGER") to a single
// title-cased form so case variants do not mint duplicate dimension rows.
func TitleCase(s string) string {
	t := Text(s)
	if t == "" {
		return Unknown
	}
	return titleCaser.String(strings.ToLower(t))
}

// URL canonicalizes a URL-ish cell: scheme and www-prefix stripped, trailing
// slashes removed, lower-cased.
func URL(s string) string {
	t := strings.TrimSpace(s)
	if t == "" {
		return ""
	}
	t = httpRe.ReplaceAllString(t, "")
	t = wwwRe.ReplaceAllString(t, "")
	t = strings.TrimRight(t, "/")
	return strings.ToLower(t)
}

// Domain is URL specialized for bare domains; the rules are identical.
func Domain(s string) string {
	return URL(s)
}

// ExtractLowerBound parses a free-form employee-size cell ("51-200",
// "10,000+", "5000") into the lower bound of the range. Blank is 0.
func ExtractLowerBound(s string) (int64, error) {
	t := Text(s)
	if t == "" {
		return 0, nil
	}
	t = strings.ToLower(strings.ReplaceAll(t, ",", ""))
	t = strings.ReplaceAll(t, "–", "-") // en-dash
	if m := leadIntRe.FindStringSubmatch(t); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, eris.Wrapf(err, "normalize: employee size %q", s)
		}
		return n, nil
	}
	return 0, eris.Errorf("normalize: unparseable employee size %q", s)
}

// ExtractRevenueLowerBound parses a free-form revenue cell into an integer
// dollar amount: "$1,000,000", "1M", "1.06B", "20 B", and ranges ("1M-5M",
// lower bound wins) are all accepted. Blank is 0.
func ExtractRevenueLowerBound(s string) (int64, error) {
	t := Text(s)
	if t == "" {
		return 0, nil
	}
	t = strings.ReplaceAll(t, ",", "")
	t = strings.ReplaceAll(t, "$", "")
	t = strings.ReplaceAll(t, " ", "")
	t = strings.ReplaceAll(t, "–", "-")
	t = strings.ToUpper(t)
	if i := strings.Index(t, "-"); i >= 0 {
		t = t[:i]
	}
	if m := revenueRe.FindStringSubmatch(t); m != nil {
		num, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, eris.Wrapf(err, "normalize: revenue %q", s)
		}
		mult := float64(1_000_000)
		if m[3] == "B" {
			mult = 1_000_000_000
		}
		return int64(num * mult), nil
	}
	if f, err := strconv.ParseFloat(t, 64); err == nil {
		return int64(f), nil
	}
	return 0, eris.Errorf("normalize: unparseable revenue %q", s)
}

// Value projects any scalar into the canonical form used for diffing:
// nil, blank, and NaN-ish spellings collapse to ""; an integral float
// collapses to its integer string so 500.0 equals "500"; everything else is
// the lower-cased trimmed string.
func Value(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(Text(x))
	case int:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float32:
		return Value(float64(x))
	case float64:
		if x == float64(int64(x)) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(x)))
	}
}

// Truncate cuts s to max runes. The second return reports whether anything
// was dropped, so callers can count truncations in the run log.
func Truncate(s string, max int) (string, bool) {
	r := []rune(s)
	if len(r) <= max {
		return s, false
	}
	return string(r[:max]), true
}

// MaxLengths declares the stored width of each upload column that has one.
// Cells beyond the limit are truncated (counted, non-fatal).
var MaxLengths = map[string]int{
	"comp_name":      255,
	"comp_domain":    255,
	"comp_industry":  255,
	"comp_linkedin":  255,
	"firstname":      255,
	"lastname":       255,
	"jobtitle":       255,
	"manlevel":       100,
	"empemail":       255,
	"emplinkedin":    255,
	"comp_phone":     100,
	"comp_street":    255,
	"comp_city":      100,
	"comp_state":     100,
	"comp_country":   100,
	"comp_zipcode":   20,
	"country_code":   20,
	"qa_disposition": 255,
}

// Email-status ids seeded by the migration.
const (
	EmailStatusQualified    int64 = 1
	EmailStatusNotQualified int64 = 4
)

// QualifiedStatusID maps the upload's qa_disposition cell to an
// email-status dimension id.
func QualifiedStatusID(disposition string) int64 {
	if strings.EqualFold(strings.TrimSpace(disposition), "qualified") {
		return EmailStatusQualified
	}
	return EmailStatusNotQualified
}
