package models

// BookStatus represents the outcome of a book link in the run ledger
type BookStatus string

const (
	BookStatusUnset       BookStatus = ""            // Zero value = unset/unknown
	BookStatusPending     BookStatus = "pending"     // Link collected but not processed
	BookStatusSuccess     BookStatus = "success"     // Record appended to the result
	BookStatusAbsent      BookStatus = "absent"      // Page has no text download link
	BookStatusUnavailable BookStatus = "unavailable" // Page missing or redirected
	BookStatusTransient   BookStatus = "transient"   // Skipped after a connectivity failure
	BookStatusParseError  BookStatus = "parse_error" // Page violated the expected structure
	BookStatusDisallowed  BookStatus = "disallowed"  // Blocked by robots.txt
	BookStatusNotFound    BookStatus = "not_found"   // Link not in ledger
	BookStatusDBError     BookStatus = "db_error"    // Ledger error occurred
)

// String implements fmt.Stringer for logging
func (s BookStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s BookStatus) IsValid() bool {
	switch s {
	case BookStatusPending, BookStatusSuccess, BookStatusAbsent, BookStatusUnavailable,
		BookStatusTransient, BookStatusParseError, BookStatusDisallowed:
		return true
	}
	return false
}

// IsFinal reports whether the link has been processed to an outcome.
func (s BookStatus) IsFinal() bool {
	return s.IsValid() && s != BookStatusPending
}

// AssetKind distinguishes the two downloadable assets of a book
type AssetKind string

const (
	AssetKindText  AssetKind = "text"
	AssetKindCover AssetKind = "cover"
)

// AssetStatus represents the outcome of an asset download in the run ledger
type AssetStatus string

const (
	AssetStatusUnset       AssetStatus = ""            // Zero value = unset/unknown
	AssetStatusSuccess     AssetStatus = "success"     // Asset written to disk
	AssetStatusUnavailable AssetStatus = "unavailable" // Remote answered missing or redirect
	AssetStatusTransient   AssetStatus = "transient"   // Skipped after a connectivity failure
	AssetStatusFailure     AssetStatus = "failure"     // Local write or other failure
	AssetStatusSkipped     AssetStatus = "skipped"     // Download phase disabled
	AssetStatusNotFound    AssetStatus = "not_found"   // Asset not in ledger
	AssetStatusDBError     AssetStatus = "db_error"    // Ledger error occurred
)

// String implements fmt.Stringer for logging
func (s AssetStatus) String() string {
	if s == "" {
		return "unset"
	}
	return string(s)
}

// IsValid returns true if the status is a known operational value
func (s AssetStatus) IsValid() bool {
	switch s {
	case AssetStatusSuccess, AssetStatusUnavailable, AssetStatusTransient, AssetStatusFailure, AssetStatusSkipped:
		return true
	}
	return false
}
