package normalize

import (
	"strings"

	"github.com/final-funnel/funnel-cli/internal/model"
)

// Row cleans one upload row into its normalized form. Unparseable revenue or
// employee-size cells fail the row; everything else is soft (truncations and
// blank coercions are counted in the log, not fatal).
func Row(raw model.RawRow, log *model.RunLog) (model.NormalizedRow, error) {
	raw = truncateRow(raw, log)

	rev, err := ExtractRevenueLowerBound(raw.AnnualRevenue)
	if err != nil {
		return model.NormalizedRow{}, err
	}
	size, err := ExtractLowerBound(raw.EmpSize)
	if err != nil {
		return model.NormalizedRow{}, err
	}

	first := Text(raw.FirstName)
	last := Text(raw.LastName)

	return model.NormalizedRow{
		Index:         raw.Index,
		CompanyName:   Text(raw.CompanyName),
		Domain:        Domain(raw.Domain),
		AnnualRevenue: rev,
		Industry:      TitleCase(raw.Industry),
		CompanyLinked: URL(raw.CompanyLinked),
		FullName:      strings.TrimSpace(first + " " + last),
		FirstName:     first,
		LastName:      last,
		JobTitle:      TitleCase(raw.JobTitle),
		ManLevel:      TitleCase(raw.ManLevel),
		Email:         strings.ToLower(Text(raw.Email)),
		ContactLinked: URL(raw.ContactLinked),
		CompanyPhone:  Text(raw.CompanyPhone),
		Street:        TextOrUnknown(raw.Street),
		City:          TextOrUnknown(raw.City),
		State:         Text(raw.State),
		Country:       TextOrUnknown(raw.Country),
		ZipCode:       TextOrUnknown(raw.ZipCode),
		EmailStatusID: QualifiedStatusID(raw.QADisposition),
		EmpSize:       size,
	}, nil
}

// truncateRow applies MaxLengths to every limited column, counting each cut.
func truncateRow(r model.RawRow, log *model.RunLog) model.RawRow {
	cut := func(col string, v *string) {
		t, dropped := Truncate(*v, MaxLengths[col])
		if dropped {
			*v = t
			if log != nil {
				log.TruncatedFields++
				log.Warnf("row %d: %s truncated to %d chars", r.Index, col, MaxLengths[col])
			}
		}
	}
	cut("comp_name", &r.CompanyName)
	cut("comp_domain", &r.Domain)
	cut("comp_industry", &r.Industry)
	cut("comp_linkedin", &r.CompanyLinked)
	cut("firstname", &r.FirstName)
	cut("lastname", &r.LastName)
	cut("jobtitle", &r.JobTitle)
	cut("manlevel", &r.ManLevel)
	cut("empemail", &r.Email)
	cut("emplinkedin", &r.ContactLinked)
	cut("comp_phone", &r.CompanyPhone)
	cut("comp_street", &r.Street)
	cut("comp_city", &r.City)
	cut("comp_state", &r.State)
	cut("comp_country", &r.Country)
	cut("comp_zipcode", &r.ZipCode)
	cut("country_code", &r.CountryCode)
	cut("qa_disposition", &r.QADisposition)
	return r
}
