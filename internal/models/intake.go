package models

// DateLayout is the calendar date format used on the wire for dates without time
const DateLayout = "2006-01-02"

// ProviderInput is the body used to create (manual or api intake) or edit a provider
type ProviderInput struct {
	Name         string            `json:"name" validate:"max=200"`
	FirstName    string            `json:"firstName" validate:"required,max=100" example:"John"`
	LastName     string            `json:"lastName" validate:"required,max=100" example:"Smith"`
	NPI          string            `json:"npi,omitempty" example:"1234567890"`
	TIN          string            `json:"tin,omitempty" example:"12-3456789"`
	IntakeSource IntakeSource      `json:"intakeSource,omitempty" validate:"omitempty,oneof=manual file-upload api" example:"manual"`
	Contact      ContactInfo       `json:"contact"`
	Demographics DemographicsInput `json:"demographics"`
	Credentials  CredentialsInput  `json:"credentials"`
}

// DemographicsInput mirrors Demographics with wire validation
type DemographicsInput struct {
	DateOfBirth string `json:"dateOfBirth,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Gender      string `json:"gender,omitempty" validate:"omitempty,oneof=male female other prefer-not-to-say"`
	SSN         string `json:"ssn,omitempty"`
}

// CredentialsInput mirrors Credentials with wire validation
type CredentialsInput struct {
	NPI           string         `json:"npi,omitempty"`
	TIN           string         `json:"tin,omitempty"`
	DEANumber     string         `json:"deaNumber,omitempty"`
	StateLicenses []LicenseInput `json:"stateLicenses" validate:"dive"`
	Specialties   []Specialty    `json:"specialties"`
}

// LicenseInput is a license as submitted; the expiration is a calendar date
type LicenseInput struct {
	State          string        `json:"state" validate:"required,len=2"`
	LicenseNumber  string        `json:"licenseNumber" validate:"required"`
	ExpirationDate string        `json:"expirationDate" validate:"required,datetime=2006-01-02"`
	Status         LicenseStatus `json:"status" validate:"required,oneof=active expired suspended pending"`
}

// IntakeRow is one parsed roster row before it becomes a provider
type IntakeRow struct {
	Line                 int    `csv:"-" validate:"-"`
	FirstName            string `csv:"firstName" validate:"required,max=100"`
	LastName             string `csv:"lastName" validate:"required,max=100"`
	NPI                  string `csv:"npi" validate:"omitempty,max=20"`
	TIN                  string `csv:"tin" validate:"omitempty,max=20"`
	Email                string `csv:"email" validate:"omitempty,max=254"`
	Phone                string `csv:"phone" validate:"omitempty,max=32"`
	Street               string `csv:"street" validate:"omitempty,max=200"`
	City                 string `csv:"city" validate:"omitempty,max=100"`
	State                string `csv:"state" validate:"omitempty,len=2"`
	ZipCode              string `csv:"zipCode" validate:"omitempty,max=10"`
	AddressValidated     string `csv:"addressValidated" validate:"omitempty,oneof=true false yes no 1 0"`
	DateOfBirth          string `csv:"dateOfBirth" validate:"omitempty,datetime=2006-01-02"`
	Gender               string `csv:"gender" validate:"omitempty,oneof=male female other prefer-not-to-say"`
	SSN                  string `csv:"ssn" validate:"omitempty,max=11"`
	DEANumber            string `csv:"deaNumber" validate:"omitempty,max=20"`
	LicenseState         string `csv:"licenseState" validate:"omitempty,len=2"`
	LicenseNumber        string `csv:"licenseNumber" validate:"omitempty,max=40"`
	LicenseExpiration    string `csv:"licenseExpiration" validate:"omitempty,datetime=2006-01-02"`
	LicenseStatus        string `csv:"licenseStatus" validate:"omitempty,oneof=active expired suspended pending"`
	TaxonomyCode         string `csv:"taxonomyCode" validate:"omitempty,max=10"`
	SpecialtyDescription string `csv:"specialtyDescription" validate:"omitempty,max=200"`
}

// RowError reports why a roster row was rejected before reaching the core
type RowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// IntakeReport summarizes one ingestion run
type IntakeReport struct {
	Source       IntakeSource `json:"source"`
	RowsTotal    int          `json:"rowsTotal"`
	Accepted     int          `json:"accepted"`
	Rejected     int          `json:"rejected"`
	ProviderIDs  []string     `json:"providerIds"`
	RowErrors    []RowError   `json:"rowErrors"`
	FailedWrites []RowError   `json:"failedWrites,omitempty"`
}
