package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/prefeitura-rio/app-credentialing/internal/logging"
	"github.com/prefeitura-rio/app-credentialing/internal/models"
	"github.com/prefeitura-rio/app-credentialing/internal/observability"
	"go.uber.org/zap"
)

// Row error messages
const (
	RowErrMissingName   = "missing name"
	RowErrInvalidDate   = "invalid date"
	RowErrDuplicate     = "duplicate entry"
	RowErrInvalidValue  = "invalid value"
	RowErrIncomplete    = "incomplete license"
	RowErrTooLong       = "value too long"
	RowErrMalformedLine = "malformed line"
)

var (
	xlsxMagic = []byte("PK\x03\x04")
	xlsMagic  = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// columnAliases maps alternative header spellings to IntakeRow csv tags
var columnAliases = map[string]string{
	"first":     "firstname",
	"last":      "lastname",
	"zip":       "zipcode",
	"dob":       "dateofbirth",
	"dea":       "deanumber",
	"specialty": "specialtydescription",
	"taxonomy":  "taxonomycode",
}

// intakeColumns maps a normalized csv tag to its IntakeRow field index
var intakeColumns = func() map[string]int {
	cols := make(map[string]int)
	t := reflect.TypeOf(models.IntakeRow{})
	for i := 0; i < t.NumField(); i++ {
		if tag := t.Field(i).Tag.Get("csv"); tag != "" && tag != "-" {
			cols[normalizeColumn(tag)] = i
		}
	}
	return cols
}()

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", "", "-", "", " ", "").Replace(name)
	if alias, ok := columnAliases[name]; ok {
		return alias
	}
	return name
}

type providerIntake interface {
	Intake(ctx context.Context, input models.ProviderInput, source models.IntakeSource) (*models.Provider, error)
}

// IntakeService turns roster files and single submissions into providers.
// Malformed rows are reported per row and never reach the credentialing core.
type IntakeService struct {
	core     providerIntake
	validate *validator.Validate
	logger   *logging.SafeLogger
}

// NewIntakeService creates an intake service feeding core
func NewIntakeService(core providerIntake, logger *logging.SafeLogger) *IntakeService {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.SplitN(f.Tag.Get("csv"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		if name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	if logger == nil {
		logger = logging.Logger
	}
	return &IntakeService{core: core, validate: v, logger: logger.Named("intake")}
}

// CheckUploadFileName accepts .csv files and rejects spreadsheets with a clear error
func CheckUploadFileName(name string) error {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return nil
	case ".xls", ".xlsx":
		return fmt.Errorf("%w: Excel files are not supported, export the sheet as CSV", models.ErrUnsupportedFileType)
	}
	return fmt.Errorf("%w: %q, only .csv is accepted", models.ErrUnsupportedFileType, filepath.Ext(name))
}

// Ingest validates a single submission and hands it to the core
func (s *IntakeService) Ingest(ctx context.Context, input models.ProviderInput) (*models.Provider, error) {
	source := input.IntakeSource
	if source == "" {
		source = models.IntakeManual
	}
	if source == models.IntakeFileUpload {
		return nil, fmt.Errorf("%w: file uploads go through the roster endpoint", models.ErrInvalidIntakeSource)
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidInput, describeValidation(err))
	}

	p, err := s.core.Intake(ctx, input, source)
	if err != nil {
		observability.IntakeRows.WithLabelValues(string(source), "failed").Inc()
		return nil, err
	}
	observability.IntakeRows.WithLabelValues(string(source), "accepted").Inc()
	return p, nil
}

// IngestCSV reads a roster with a header row. Every well-formed row becomes a provider;
// the rest are listed in the report.
func (s *IntakeService) IngestCSV(ctx context.Context, r io.Reader) (models.IntakeReport, error) {
	report := models.IntakeReport{
		Source:      models.IntakeFileUpload,
		ProviderIDs: []string{},
		RowErrors:   []models.RowError{},
	}

	br := bufio.NewReader(r)
	if head, _ := br.Peek(4); bytes.HasPrefix(head, xlsxMagic) || bytes.HasPrefix(head, xlsMagic) {
		return report, fmt.Errorf("%w: Excel files are not supported, export the sheet as CSV", models.ErrUnsupportedFileType)
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return report, fmt.Errorf("%w: file is empty", models.ErrInvalidInput)
		}
		return report, fmt.Errorf("%w: failed to read header: %v", models.ErrInvalidInput, err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return report, err
	}

	seenNPI := map[string]int{}
	seenEmail := map[string]int{}

	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				report.RowsTotal++
				s.reject(&report, models.RowError{Row: parseErr.StartLine, Message: RowErrMalformedLine})
				continue
			}
			return report, fmt.Errorf("failed to read roster: %w", err)
		}

		line, _ := reader.FieldPos(0)
		row, blank := buildRow(record, columns, line)
		if blank {
			continue
		}
		report.RowsTotal++

		if rowErr, ok := s.checkRow(row, seenNPI, seenEmail); !ok {
			s.reject(&report, rowErr)
			continue
		}
		if row.NPI != "" {
			seenNPI[row.NPI] = row.Line
		}
		if row.Email != "" {
			seenEmail[strings.ToLower(row.Email)] = row.Line
		}

		p, err := s.core.Intake(ctx, rowToInput(row), models.IntakeFileUpload)
		if err != nil {
			observability.IntakeRows.WithLabelValues(string(models.IntakeFileUpload), "failed").Inc()
			s.logger.Warn("roster row not stored", zap.Int("row", row.Line), zap.Error(err))
			report.FailedWrites = append(report.FailedWrites, models.RowError{Row: row.Line, Message: err.Error()})
			continue
		}
		observability.IntakeRows.WithLabelValues(string(models.IntakeFileUpload), "accepted").Inc()
		report.Accepted++
		report.ProviderIDs = append(report.ProviderIDs, p.ID)
	}

	s.logger.Info("roster ingested",
		zap.Int("rows", report.RowsTotal),
		zap.Int("accepted", report.Accepted),
		zap.Int("rejected", report.Rejected),
		zap.Int("failed_writes", len(report.FailedWrites)))
	return report, nil
}

func (s *IntakeService) reject(report *models.IntakeReport, rowErr models.RowError) {
	observability.IntakeRows.WithLabelValues(string(models.IntakeFileUpload), "rejected").Inc()
	report.Rejected++
	report.RowErrors = append(report.RowErrors, rowErr)
}

// checkRow applies field rules, then the duplicate rules against earlier accepted rows
func (s *IntakeService) checkRow(row models.IntakeRow, seenNPI, seenEmail map[string]int) (models.RowError, bool) {
	if err := s.validate.Struct(row); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return models.RowError{Row: row.Line, Field: fe.Field(), Message: rowMessage(fe)}, false
		}
		return models.RowError{Row: row.Line, Message: err.Error()}, false
	}

	if row.LicenseNumber != "" && (row.LicenseState == "" || row.LicenseExpiration == "") {
		return models.RowError{Row: row.Line, Field: "licenseNumber", Message: RowErrIncomplete}, false
	}
	if first, dup := seenNPI[row.NPI]; row.NPI != "" && dup {
		return models.RowError{Row: row.Line, Field: "npi", Message: fmt.Sprintf("%s (same as row %d)", RowErrDuplicate, first)}, false
	}
	if first, dup := seenEmail[strings.ToLower(row.Email)]; row.Email != "" && dup {
		return models.RowError{Row: row.Line, Field: "email", Message: fmt.Sprintf("%s (same as row %d)", RowErrDuplicate, first)}, false
	}
	return models.RowError{}, true
}

func rowMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Field() == "firstName" || fe.Field() == "lastName" {
			return RowErrMissingName
		}
		return "missing " + fe.Field()
	case "datetime":
		return RowErrInvalidDate
	case "max":
		return RowErrTooLong
	}
	return RowErrInvalidValue
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func mapColumns(header []string) ([]int, error) {
	columns := make([]int, len(header))
	found := map[string]bool{}
	for i, h := range header {
		name := normalizeColumn(strings.TrimPrefix(h, "\ufeff"))
		idx, ok := intakeColumns[name]
		if !ok {
			columns[i] = -1
			continue
		}
		columns[i] = idx
		found[name] = true
	}
	for _, required := range []string{"firstname", "lastname"} {
		if !found[required] {
			return nil, fmt.Errorf("%w: header is missing column %s", models.ErrInvalidInput, required)
		}
	}
	return columns, nil
}

// buildRow fills an IntakeRow from a record; blank reports a row with no values
func buildRow(record []string, columns []int, line int) (models.IntakeRow, bool) {
	row := models.IntakeRow{Line: line}
	v := reflect.ValueOf(&row).Elem()
	blank := true
	for i, raw := range record {
		if i >= len(columns) || columns[i] < 0 {
			continue
		}
		value := strings.TrimSpace(raw)
		if value != "" {
			blank = false
		}
		v.Field(columns[i]).SetString(value)
	}

	row.AddressValidated = strings.ToLower(row.AddressValidated)
	row.Gender = strings.ToLower(row.Gender)
	row.LicenseStatus = strings.ToLower(row.LicenseStatus)
	row.LicenseState = strings.ToUpper(row.LicenseState)
	row.State = strings.ToUpper(row.State)
	return row, blank
}

func rowToInput(row models.IntakeRow) models.ProviderInput {
	input := models.ProviderInput{
		FirstName:    row.FirstName,
		LastName:     row.LastName,
		NPI:          row.NPI,
		TIN:          row.TIN,
		IntakeSource: models.IntakeFileUpload,
		Contact: models.ContactInfo{
			Email: row.Email,
			Phone: row.Phone,
			Address: models.Address{
				Street:      row.Street,
				City:        row.City,
				State:       row.State,
				ZipCode:     row.ZipCode,
				IsValidated: row.AddressValidated == "true" || row.AddressValidated == "yes" || row.AddressValidated == "1",
			},
		},
		Demographics: models.DemographicsInput{
			DateOfBirth: row.DateOfBirth,
			Gender:      row.Gender,
			SSN:         row.SSN,
		},
		Credentials: models.CredentialsInput{
			NPI:           row.NPI,
			TIN:           row.TIN,
			DEANumber:     row.DEANumber,
			StateLicenses: []models.LicenseInput{},
			Specialties:   []models.Specialty{},
		},
	}

	if row.LicenseNumber != "" {
		status := models.LicenseStatus(row.LicenseStatus)
		if status == "" {
			status = models.LicensePending
		}
		input.Credentials.StateLicenses = append(input.Credentials.StateLicenses, models.LicenseInput{
			State:          row.LicenseState,
			LicenseNumber:  row.LicenseNumber,
			ExpirationDate: row.LicenseExpiration,
			Status:         status,
		})
	}
	if row.TaxonomyCode != "" {
		input.Credentials.Specialties = append(input.Credentials.Specialties, models.Specialty{
			TaxonomyCode: row.TaxonomyCode,
			Description:  row.SpecialtyDescription,
			IsPrimary:    true,
		})
	}
	return input
}
