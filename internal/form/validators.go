// internal/form/validators.go
//
// Formpipe – Forms subsystem: built-in validators.
//
// Context
//   One function per field type.  Each receives the raw Value, the Field for
//   its configuration, and the required flag, and returns Valid or a map of
//   named errors.  Several checks may report at once (a phone number can be
//   both too short and contain bad characters) so the submitter sees every
//   problem in one round trip.
//
//   Composite types read their parts by name: name {first, last}, address
//   {street, city, state, zipcode, country}, email {email, confirm}, and
//   date {date, hour, minute, am-pm}.
//
//------------------------------------------------------------------------------

package form

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

var (
	check = validator.New()

	phoneBadChars = regexp.MustCompile(`[^0-9+.)(\-]`)
	nonDigits     = regexp.MustCompile(`[^0-9]`)
	digitsOrSlash = regexp.MustCompile(`^[0-9/]+$`)
	digitsOnly    = regexp.MustCompile(`^[0-9]+$`)
	websiteRe     = regexp.MustCompile(`(?i)^https?://(([a-z0-9\-._]+(\.[a-z0-9\-._]+)+)|localhost)(/?)([a-z0-9\-.?,'/\\+&;%$#_]*)?([\d\w./%+\-=&?:\\";',|~]*)$`)
)

// -----------------------------------------------------------------------------
// Generic
// -----------------------------------------------------------------------------

// notEmpty fails required fields with an empty value.  A non-empty collection
// satisfies it regardless of its contents.
func notEmpty(_ context.Context, v Value, _ *Field, required bool) Errors {
	if required && v.IsEmpty() {
		return Errors{CodeRequired: msgRequired}
	}
	return Valid
}

// notEmptyChoiceable is notEmpty for choice fields.  A selection counts as
// filled only when at least one entry is non-blank.
func notEmptyChoiceable(_ context.Context, v Value, _ *Field, required bool) Errors {
	if required && !anySelected(v) {
		return Errors{CodeRequired: msgRequired}
	}
	return Valid
}

func anySelected(v Value) bool {
	switch v.Kind() {
	case KindComposite, KindSelection:
		for _, s := range v.leaves() {
			if !isBlank(s) {
				return true
			}
		}
		return false
	default:
		return !v.IsEmpty()
	}
}

// -----------------------------------------------------------------------------
// Email
// -----------------------------------------------------------------------------

// validateEmail accepts a scalar address or an {email, confirm} pair.  In the
// pair form the match check runs whenever confirm is not reported missing,
// so an optional blank confirm still mismatches a filled email.
func validateEmail(_ context.Context, v Value, _ *Field, required bool) Errors {
	errs := Errors{}

	if v.Kind() == KindComposite {
		email, confirm := v.Part("email"), v.Part("confirm")
		if required && isBlank(email) {
			errs[CodeEmailRequired] = msgRequired
		} else if !isBlank(email) && !isEmail(email) {
			errs[CodeEmail] = msgEmail
		}

		if required && isBlank(confirm) {
			errs[CodeConfirmRequired] = msgRequired
		} else if email != confirm {
			errs[CodeMatch] = msgMatch
		}
		return errs.orValid()
	}

	s := v.String()
	if required && isBlank(s) {
		errs[CodeEmailRequired] = msgRequired
	} else if !isBlank(s) && !isEmail(s) {
		errs[CodeEmail] = msgEmail
	}
	return errs.orValid()
}

func isEmail(s string) bool {
	return check.Var(strings.TrimSpace(s), "required,email") == nil
}

// -----------------------------------------------------------------------------
// Phone
// -----------------------------------------------------------------------------

// validatePhone checks length, character set, and the optional US format.
// Length counts characters as posted; only the US format counts digits.
func validatePhone(_ context.Context, v Value, f *Field, required bool) Errors {
	s := v.String()
	if required && isBlank(s) {
		return Errors{CodeRequired: msgPhoneRequired}
	}
	if s == "" {
		return Valid
	}

	errs := Errors{}
	if utf8.RuneCountInString(s) < 7 {
		errs[CodeDigits] = msgPhoneShort
	}
	if phoneBadChars.MatchString(s) {
		errs[CodeChars] = msgPhoneChars
	}
	if f.Config.PhoneFormat == "us" && len(nonDigits.ReplaceAllString(s, "")) != 10 {
		errs[CodeDigits] = msgPhoneUS
	}
	return errs.orValid()
}

// -----------------------------------------------------------------------------
// Website
// -----------------------------------------------------------------------------

func validateWebsite(_ context.Context, v Value, _ *Field, required bool) Errors {
	s := v.String()
	if required && isBlank(s) {
		return Errors{CodeWebsiteRequired: msgRequired}
	}
	if s != "" && !websiteRe.MatchString(s) {
		return Errors{CodeWebsite: msgWebsite}
	}
	return Valid
}

// -----------------------------------------------------------------------------
// Name and address
// -----------------------------------------------------------------------------

func validateName(_ context.Context, v Value, _ *Field, required bool) Errors {
	if !required {
		return Valid
	}
	errs := Errors{}
	if isBlank(v.Part("first")) {
		errs[CodeFirstRequired] = msgFirstRequired
	}
	if isBlank(v.Part("last")) {
		errs[CodeLastRequired] = msgLastRequired
	}
	return errs.orValid()
}

// validateAddress requires street, city, state, and zipcode.  International
// addresses also require country.
func validateAddress(_ context.Context, v Value, f *Field, required bool) Errors {
	if !required {
		return Valid
	}
	errs := Errors{}
	for _, p := range []struct{ part, code string }{
		{"street", CodeStreetRequired},
		{"city", CodeCityRequired},
		{"state", CodeStateRequired},
		{"zipcode", CodeZipcodeRequired},
	} {
		if isBlank(v.Part(p.part)) {
			errs[p.code] = msgRequired
		}
	}
	if f.Config.AddressType == AddressInternational && isBlank(v.Part("country")) {
		errs[CodeCountryRequired] = msgRequired
	}
	return errs.orValid()
}

// -----------------------------------------------------------------------------
// Date
// -----------------------------------------------------------------------------

// validateDate picks one of three modes from ShowDate/ShowTime.  Date-only
// and time-only are exclusive; both flags, or neither, mean date plus time.
// The hour check tolerates slashes in time-only mode but not in date+time
// mode.
func validateDate(_ context.Context, v Value, f *Field, required bool) Errors {
	errs := Errors{}
	showDate, showTime := f.Config.ShowDate, f.Config.ShowTime

	switch {
	case showDate && !showTime:
		checkDatePart(errs, v, required)
	case !showDate && showTime:
		checkTimeParts(errs, v, required, digitsOrSlash)
	default:
		checkDatePart(errs, v, required)
		checkTimeParts(errs, v, required, digitsOnly)
	}
	return errs.orValid()
}

func checkDatePart(errs Errors, v Value, required bool) {
	date := v.Part("date")
	if required && isBlank(date) {
		errs[CodeDateRequired] = msgDateRequired
	} else if date != "" && !digitsOrSlash.MatchString(date) {
		errs[CodeDate] = msgDate
	}
}

func checkTimeParts(errs Errors, v Value, required bool, hourRe *regexp.Regexp) {
	hour, minute := v.Part("hour"), v.Part("minute")
	if required && isBlank(hour) {
		errs[CodeHourRequired] = msgHourRequired
	} else if hour != "" && !hourRe.MatchString(hour) {
		errs[CodeHour] = msgHour
	}

	if required && isBlank(minute) {
		errs[CodeMinuteRequired] = msgMinuteRequired
	} else if minute != "" && !digitsOnly.MatchString(minute) {
		errs[CodeMinute] = msgMinute
	}

	if required && isBlank(v.Part("am-pm")) {
		errs[CodeAmPmRequired] = msgAmPmRequired
	}
}

// -----------------------------------------------------------------------------
// File
// -----------------------------------------------------------------------------

// validateFile inspects transport metadata.  An optional input with no file
// passes.  A transport error or empty body is reported alone as
// file_upload; size and extension problems may co-report.
func validateFile(_ context.Context, v Value, f *Field, required bool) Errors {
	up := v.Upload()
	missing := up == nil || up.Status == UploadNoFile
	if missing {
		if required {
			return Errors{CodeRequired: msgRequired}
		}
		return Valid
	}

	maxMB := f.Config.MaxFileSize
	if up.Status == UploadTooLarge {
		return Errors{CodeFileSize: fmt.Sprintf(msgFileSize, maxMB)}
	}
	if up.Status != UploadOK || up.Size <= 0 {
		return Errors{CodeFileUpload: msgFileUpload}
	}

	errs := Errors{}
	if maxMB > 0 && up.Size > int64(maxMB)*1000*1000 {
		errs[CodeFileSize] = fmt.Sprintf(msgFileSize, maxMB)
	}

	allowed := allowedExtensions(f.Config.FileExtensions)
	if len(allowed) > 0 {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(up.Name), "."))
		if !contains(allowed, ext) {
			errs[CodeFileExtension] = msgFileExtension
		}
	}
	return errs.orValid()
}

// allowedExtensions parses "jpg, PNG;gif" into lower-case, trimmed entries.
func allowedExtensions(list string) []string {
	raw := splitList(strings.ToLower(list))
	out := raw[:0]
	for _, ext := range raw {
		if ext = strings.TrimPrefix(ext, "."); ext != "" {
			out = append(out, ext)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// reCAPTCHA
// -----------------------------------------------------------------------------

// recaptchaValidator verifies the token with the configured secret.  A
// verifier error counts as a failed check.
func recaptchaValidator(cv CaptchaVerifier) Validator {
	return func(ctx context.Context, v Value, f *Field, _ bool) Errors {
		if cv == nil {
			return Errors{CodeRecaptcha: msgRecaptcha}
		}
		ok, err := cv.Verify(ctx, v.String(), f.Config.SecretKey)
		if err != nil || !ok {
			return Errors{CodeRecaptcha: msgRecaptcha}
		}
		return Valid
	}
}
