// Package model defines the typed records that flow through the ingestion
// pipeline, one struct per stage. Upload cells arrive as free-form strings;
// every later stage narrows them into checked fields.
package model

// UploadColumns is the exact, ordered header the upload template carries.
// Any deviation in names or order is a schema failure.
var UploadColumns = []string{
	"comp_name",
	"comp_domain",
	"annrev",
	"comp_industry",
	"comp_linkedin",
	"firstname",
	"lastname",
	"jobtitle",
	"manlevel",
	"empemail",
	"emplinkedin",
	"country_code",
	"comp_phone",
	"comp_street",
	"comp_city",
	"comp_state",
	"comp_country",
	"comp_zipcode",
	"qa_disposition",
	"empsize",
}

// RawRow is one upload row as read from the file, fields in template order.
// Index is the 1-based position within the upload (header excluded).
type RawRow struct {
	Index         int
	CompanyName   string
	Domain        string
	AnnualRevenue string
	Industry      string
	CompanyLinked string
	FirstName     string
	LastName      string
	JobTitle      string
	ManLevel      string
	Email         string
	ContactLinked string
	CountryCode   string
	CompanyPhone  string
	Street        string
	City          string
	State         string
	Country       string
	ZipCode       string
	QADisposition string
	EmpSize       string
}

// FromCells builds a RawRow from a slice of cells in template order.
// Short rows are padded with blanks so a trailing-empty-cell file still loads.
func FromCells(index int, cells []string) RawRow {
	c := make([]string, len(UploadColumns))
	copy(c, cells)
	return RawRow{
		Index:         index,
		CompanyName:   c[0],
		Domain:        c[1],
		AnnualRevenue: c[2],
		Industry:      c[3],
		CompanyLinked: c[4],
		FirstName:     c[5],
		LastName:      c[6],
		JobTitle:      c[7],
		ManLevel:      c[8],
		Email:         c[9],
		ContactLinked: c[10],
		CountryCode:   c[11],
		CompanyPhone:  c[12],
		Street:        c[13],
		City:          c[14],
		State:         c[15],
		Country:       c[16],
		ZipCode:       c[17],
		QADisposition: c[18],
		EmpSize:       c[19],
	}
}

// NormalizedRow is a RawRow after field cleaning: URLs canonicalized,
// categorical blanks coerced to "Unknown", revenue and size parsed to
// lower-bound integers, disposition mapped to an email-status id.
type NormalizedRow struct {
	Index         int
	CompanyName   string
	Domain        string
	AnnualRevenue int64
	Industry      string
	CompanyLinked string
	FullName      string
	FirstName     string
	LastName      string
	JobTitle      string
	ManLevel      string
	Email         string
	ContactLinked string
	CompanyPhone  string
	Street        string
	City          string
	State         string
	Country       string
	ZipCode       string
	EmailStatusID int64
	EmpSize       int64
}

// HasContactIdentity reports whether the row still carries at least one
// stable contact identifier after cleaning. Identity is decided here rather
// than on the raw cells, so blank aliases like "N/A" do not count. Rows
// without identity are dropped before matching.
func (n NormalizedRow) HasContactIdentity() bool {
	return n.Email != "" || n.ContactLinked != ""
}

// ResolvedRow is a NormalizedRow with every dimension value replaced by its
// surrogate key. All ids are guaranteed to exist in their dimension tables.
type ResolvedRow struct {
	NormalizedRow

	AddressID    int64
	CityID       int64
	StateID      int64
	PostalCodeID int64
	CountryID    int64
	IndustryID   int64
	ManLevelID   int64
	JobTitleID   int64
}
