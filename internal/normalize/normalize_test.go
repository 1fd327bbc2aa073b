package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/final-funnel/funnel-cli/internal/model"
)

func TestText_BlankAliases(t *testing.T) {
	for _, in := range []string{"", "  ", "N/A", "na", "None", "NULL", "NaN", "unknown"} {
		assert.Equal(t, "", Text(in), "input %q", in)
	}
	assert.Equal(t, "Acme", Text("  Acme "))
}

func TestTextOrUnknown(t *testing.T) {
	assert.Equal(t, "Unknown", TextOrUnknown("n/a"))
	assert.Equal(t, "Springfield", TextOrUnknown(" Springfield "))
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Manager", TitleCase("MANAGER"))
	assert.Equal(t, "Vice President", TitleCase("vice president"))
	assert.Equal(t, "Unknown", TitleCase(""))
}

func TestURL(t *testing.T) {
	cases := map[string]string{
		"https://www.Acme.com/":           "acme.com",
		"http://acme.com":                 "acme.com",
		"www2.acme.com/about/":            "acme.com/about",
		"HTTPS://WWW.LINKEDIN.COM/IN/JD/": "linkedin.com/in/jd",
		"":                                "",
	}
	for in, want := range cases {
		assert.Equal(t, want, URL(in), "input %q", in)
	}
}

func TestExtractLowerBound(t *testing.T) {
	cases := map[string]int64{
		"51-200":      51,
		"10,000+":     10000,
		"5000":        5000,
		"1–10":        1, // en-dash
		"201 to 500":  201,
		"":            0,
		"n/a":         0,
	}
	for in, want := range cases {
		got, err := ExtractLowerBound(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ExtractLowerBound("lots")
	assert.Error(t, err)
}

func TestExtractRevenueLowerBound(t *testing.T) {
	cases := map[string]int64{
		"$1,000,000": 1000000,
		"1M":         1000000,
		"1000000":    1000000,
		"1.06B":      1060000000,
		"20 B":       20000000000,
		"1M-5M":      1000000,
		"$2.5M":      2500000,
		"":           0,
	}
	for in, want := range cases {
		got, err := ExtractRevenueLowerBound(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}

	_, err := ExtractRevenueLowerBound("a lot")
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	assert.Equal(t, "", Value(nil))
	assert.Equal(t, "", Value("  "))
	assert.Equal(t, "", Value("NaN"))
	assert.Equal(t, "500", Value(500.0))
	assert.Equal(t, "500", Value(int64(500)))
	assert.Equal(t, "500.5", Value(500.5))
	assert.Equal(t, "acme corp", Value(" Acme Corp "))
	assert.Equal(t, Value("500"), Value(500.0))
}

func TestTruncate(t *testing.T) {
	got, dropped := Truncate("abcdef", 4)
	assert.Equal(t, "abcd", got)
	assert.True(t, dropped)

	got, dropped = Truncate("abc", 4)
	assert.Equal(t, "abc", got)
	assert.False(t, dropped)
}

func TestQualifiedStatusID(t *testing.T) {
	assert.Equal(t, EmailStatusQualified, QualifiedStatusID("Qualified"))
	assert.Equal(t, EmailStatusQualified, QualifiedStatusID(" qualified "))
	assert.Equal(t, EmailStatusNotQualified, QualifiedStatusID("Disqualified"))
	assert.Equal(t, EmailStatusNotQualified, QualifiedStatusID(""))
}

func TestRow(t *testing.T) {
	raw := model.RawRow{
		Index:         1,
		CompanyName:   " Acme Corp ",
		Domain:        "https://www.Acme.com/",
		AnnualRevenue: "$2.5M",
		Industry:      "software",
		CompanyLinked: "https://linkedin.com/company/acme/",
		FirstName:     "Jane",
		LastName:      "Doe",
		JobTitle:      "chief technology officer",
		ManLevel:      "C-LEVEL",
		Email:         "Jane@Acme.com",
		ContactLinked: "www.linkedin.com/in/janedoe",
		City:          "",
		State:         "Illinois",
		Country:       "United States",
		QADisposition: "Qualified",
		EmpSize:       "51-200",
	}

	var log model.RunLog
	n, err := Row(raw, &log)
	require.NoError(t, err)

	assert.Equal(t, "Acme Corp", n.CompanyName)
	assert.Equal(t, "acme.com", n.Domain)
	assert.Equal(t, int64(2500000), n.AnnualRevenue)
	assert.Equal(t, "Software", n.Industry)
	assert.Equal(t, "Jane Doe", n.FullName)
	assert.Equal(t, "jane@acme.com", n.Email)
	assert.Equal(t, "linkedin.com/in/janedoe", n.ContactLinked)
	assert.Equal(t, "Unknown", n.City)
	assert.Equal(t, "Illinois", n.State)
	assert.Equal(t, EmailStatusQualified, n.EmailStatusID)
	assert.Equal(t, int64(51), n.EmpSize)
	assert.Zero(t, log.TruncatedFields)
}

func TestRow_Truncation(t *testing.T) {
	raw := model.RawRow{Index: 4, CompanyName: strings.Repeat("x", 300), AnnualRevenue: "1M"}

	var log model.RunLog
	n, err := Row(raw, &log)
	require.NoError(t, err)

	assert.Len(t, n.CompanyName, 255)
	assert.Equal(t, 1, log.TruncatedFields)
	require.Len(t, log.Entries, 1)
	assert.Contains(t, log.Entries[0].Message, "comp_name")
}

func TestRow_BadRevenueFailsRow(t *testing.T) {
	_, err := Row(model.RawRow{Index: 9, AnnualRevenue: "plenty"}, nil)
	assert.Error(t, err)
}
