package model

import "fmt"

// SourceDataError represents a missing or unusable source document.
// Merge skips the offending document; resolvers see it as absent.
type SourceDataError struct {
	TypeKey DocType
	Message string
	Cause   error
}

func (e *SourceDataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", e.TypeKey, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.TypeKey, e.Message)
}

func (e *SourceDataError) Unwrap() error {
	return e.Cause
}

// NewSourceDataError creates a new source data error
func NewSourceDataError(typeKey DocType, message string, cause error) *SourceDataError {
	return &SourceDataError{TypeKey: typeKey, Message: message, Cause: cause}
}

// ClassifierMissError means a name could not be resolved against a
// classifier. The raw text is kept; a code is never invented.
type ClassifierMissError struct {
	Classifier string
	Value      string
}

func (e *ClassifierMissError) Error() string {
	return fmt.Sprintf("classifier miss [%s]: %q not found", e.Classifier, e.Value)
}

// NewClassifierMissError creates a new classifier miss error
func NewClassifierMissError(classifier, value string) *ClassifierMissError {
	return &ClassifierMissError{Classifier: classifier, Value: value}
}

// RateUnavailableError means no historical rate exists for the requested
// date and currency. Dependent monetary fields degrade to empty.
type RateUnavailableError struct {
	Date     string
	Currency string
	Cause    error
}

func (e *RateUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("no rate for %s on %s (%v)", e.Currency, e.Date, e.Cause)
	}
	return fmt.Sprintf("no rate for %s on %s", e.Currency, e.Date)
}

func (e *RateUnavailableError) Unwrap() error {
	return e.Cause
}

// NewRateUnavailableError creates a new rate unavailable error
func NewRateUnavailableError(date, currency string, cause error) *RateUnavailableError {
	return &RateUnavailableError{Date: date, Currency: currency, Cause: cause}
}

// ExportError represents a failure while building the declaration XML.
// Export is all-or-nothing: no partial output is ever produced.
type ExportError struct {
	Stage   string
	Message string
	Cause   error
}

func (e *ExportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("export failed [%s]: %s (%v)", e.Stage, e.Message, e.Cause)
	}
	return fmt.Sprintf("export failed [%s]: %s", e.Stage, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Cause
}

// NewExportError creates a new export error
func NewExportError(stage, message string, cause error) *ExportError {
	return &ExportError{Stage: stage, Message: message, Cause: cause}
}
