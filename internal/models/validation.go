package models

// Severity grades a validation finding
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one finding of the validation engine
type ValidationError struct {
	Field    string   `bson:"field" json:"field"`
	Message  string   `bson:"message" json:"message"`
	Severity Severity `bson:"severity" json:"severity"`
}
