// internal/form/errors.go
//
// Formpipe – Forms subsystem: field errors, outcome codes, and sentinels.
//
// Context
//   Field validation failures are data, not Go errors.  A validator returns an
//   Errors map keyed by stable codes (“required”, “match”, “file_size”) with
//   user-facing messages as values.  Machine code branches on the code; the
//   message is shown to the submitter.
//
//   Valid is the success sentinel.  A validator returns Valid or a non-empty
//   map, never an empty one, so callers can test with OK().
//
//------------------------------------------------------------------------------

package form

import (
	"errors"
	"sort"
)

// Errors maps an error code to a user-facing message for one field.
type Errors map[string]string

// Valid is returned by validators that found nothing wrong.
var Valid Errors

// OK reports whether e represents a passing validation.
func (e Errors) OK() bool { return len(e) == 0 }

// Codes returns the error codes in sorted order.
func (e Errors) Codes() []string {
	out := make([]string, 0, len(e))
	for code := range e {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// orValid collapses an empty accumulator into the Valid sentinel.
func (e Errors) orValid() Errors {
	if len(e) == 0 {
		return Valid
	}
	return e
}

// FormErrors maps a field slug to that field's Errors.
type FormErrors map[string]Errors

// clone returns a deep copy so cached maps cannot be mutated by callers.
func (fe FormErrors) clone() FormErrors {
	if fe == nil {
		return nil
	}
	out := make(FormErrors, len(fe))
	for slug, errs := range fe {
		cp := make(Errors, len(errs))
		for k, v := range errs {
			cp[k] = v
		}
		out[slug] = cp
	}
	return out
}

// -----------------------------------------------------------------------------
// Error codes
// -----------------------------------------------------------------------------

const (
	CodeRequired        = "required"
	CodeEmailRequired   = "email_required"
	CodeEmail           = "email"
	CodeConfirmRequired = "confirm_required"
	CodeMatch           = "match"
	CodeDigits          = "digits"
	CodeChars           = "chars"
	CodeWebsiteRequired = "website_required"
	CodeWebsite         = "website"
	CodeFirstRequired   = "first_required"
	CodeLastRequired    = "last_required"
	CodeStreetRequired  = "street_required"
	CodeCityRequired    = "city_required"
	CodeStateRequired   = "state_required"
	CodeZipcodeRequired = "zipcode_required"
	CodeCountryRequired = "country_required"
	CodeDateRequired    = "date_required"
	CodeDate            = "date"
	CodeHourRequired    = "hour_required"
	CodeHour            = "hour"
	CodeMinuteRequired  = "minutes_required"
	CodeMinute          = "minute"
	CodeAmPmRequired    = "am-pm_required"
	CodeFileSize        = "file_size"
	CodeFileUpload      = "file_upload"
	CodeFileExtension   = "file_extension"
	CodeRecaptcha       = "recaptcha"
	CodeInvalid         = "invalid"
)

// Default user-facing messages.
const (
	msgRequired        = "This field is required."
	msgPhoneRequired   = "This field is required"
	msgEmail           = "This is not a valid email"
	msgMatch           = "Emails do not match."
	msgPhoneShort      = "This phone number is too short"
	msgPhoneChars      = "This phone number contains invalid characters."
	msgPhoneUS         = "This phone number is not 10 digits."
	msgWebsite         = "This is not a valid URL. URL's must start with http(s)://"
	msgFirstRequired   = "First name is required."
	msgLastRequired    = "Last name is required."
	msgDateRequired    = "Date is required."
	msgDate            = "This date is not valid."
	msgHourRequired    = "Hour is required."
	msgHour            = "This is not a valid hour."
	msgMinuteRequired  = "Minute is required."
	msgMinute          = "This is not a valid minute."
	msgAmPmRequired    = "AM/PM is required."
	msgFileSize        = "This file is too big (%d MB max)"
	msgFileUpload      = "An upload error occurred."
	msgFileExtension   = "File contains an invalid extension."
	msgRecaptcha       = "Your reCAPTCHA response was incorrect."
	msgInvalid         = "This value could not be processed."
	msgDefaultComplete = "Thank you for your submission."
)

// -----------------------------------------------------------------------------
// Sentinel errors
// -----------------------------------------------------------------------------

var (
	// ErrFormNotFound is returned by a FormStore for unknown form IDs.
	ErrFormNotFound = errors.New("form not found")
	// ErrFieldNotFound is returned by a FormStore for unknown field IDs.
	ErrFieldNotFound = errors.New("field not found")
	// ErrNoUploadStore is returned by the file sanitizer when no UploadStore
	// was configured.
	ErrNoUploadStore = errors.New("no upload store configured")
)
