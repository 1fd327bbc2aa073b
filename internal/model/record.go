package model

// RowStatus labels what the upsert engine should do with a matched record.
type RowStatus string

const (
	StatusInsert   RowStatus = "Insert"
	StatusUpdate   RowStatus = "Update"
	StatusNoUpdate RowStatus = "NoUpdate"
)

// SentinelID is the reserved dimension key meaning "unknown / not applicable".
// It exists as a real row in every location dimension table.
const SentinelID int64 = 999999

// CompanyRecord is a fact-shaped company row ready for matching and upsert.
// ID is zero until the matcher or the insert assigns one.
type CompanyRecord struct {
	Index    int
	ID       int64
	Status   RowStatus
	Name     string
	Domain   string
	LinkedIn string
	Phone    string

	AnnualRevenue int64
	EmpSize       int64

	AddressID    int64
	CityID       int64
	StateID      int64
	PostalCodeID int64
	CountryID    int64
	IndustryID   int64
}

// ContactRecord is a fact-shaped contact row. Location ids are the sentinel;
// a contact's location lives on its company.
type ContactRecord struct {
	Index    int
	ID       int64
	Status   RowStatus
	FullName string
	First    string
	Last     string
	Email    string
	LinkedIn string

	CompanyID     int64
	JobTitleID    int64
	ManLevelID    int64
	EmailStatusID int64

	AddressID    int64
	CityID       int64
	StateID      int64
	PostalCodeID int64
	CountryID    int64
}

// NewContactRecord shapes a resolved row into a contact fact row, defaulting
// the location dimensions to the sentinel.
func NewContactRecord(r ResolvedRow, companyID int64) ContactRecord {
	return ContactRecord{
		Index:         r.Index,
		FullName:      r.FullName,
		First:         r.FirstName,
		Last:          r.LastName,
		Email:         r.Email,
		LinkedIn:      r.ContactLinked,
		CompanyID:     companyID,
		JobTitleID:    r.JobTitleID,
		ManLevelID:    r.ManLevelID,
		EmailStatusID: r.EmailStatusID,
		AddressID:     SentinelID,
		CityID:        SentinelID,
		StateID:       SentinelID,
		PostalCodeID:  SentinelID,
		CountryID:     SentinelID,
	}
}

// NewCompanyRecord shapes a resolved row into a company fact row.
func NewCompanyRecord(r ResolvedRow) CompanyRecord {
	return CompanyRecord{
		Index:         r.Index,
		Name:          r.CompanyName,
		Domain:        r.Domain,
		LinkedIn:      r.CompanyLinked,
		Phone:         r.CompanyPhone,
		AnnualRevenue: r.AnnualRevenue,
		EmpSize:       r.EmpSize,
		AddressID:     r.AddressID,
		CityID:        r.CityID,
		StateID:       r.StateID,
		PostalCodeID:  r.PostalCodeID,
		CountryID:     r.CountryID,
		IndustryID:    r.IndustryID,
	}
}
