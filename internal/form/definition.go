// internal/form/definition.go
//
// Formpipe – Forms subsystem: form and field definitions.
//
// Context
//   A Form is an ordered list of typed Fields plus completion and notification
//   settings.  Definitions are owned by a FormStore (see ports.go); the
//   processor only reads them.  Struct tags serve both the YAML loader in
//   internal/formdef and go-playground/validator, which enforces the
//   structural rules at load time.
//
//------------------------------------------------------------------------------

package form

import "strings"

// Built-in field type tags.
const (
	TypeSingleLineText = "single-line-text"
	TypeParagraphText  = "paragraph-text"
	TypeHidden         = "hidden"
	TypeRecaptcha      = "recaptcha"
	TypeEmail          = "email"
	TypePhone          = "phone"
	TypeWebsite        = "website"
	TypeName           = "name"
	TypeAddress        = "address"
	TypeFile           = "file"
	TypeDate           = "date"
	TypeDropdown       = "dropdown"
	TypeCheckboxes     = "checkboxes"
	TypeRadio          = "radio"
	TypeHTML           = "html"
	TypeSectionHeader  = "section-header"
)

// Completion actions.
const (
	ActionRedirect = "redirect"
	ActionMessage  = "message"
)

// Notification sender modes.
const (
	FromDefault = "default"
	FromCustom  = "custom"
	FromField   = "field"
)

// Address modes.
const (
	AddressUS            = "us"
	AddressInternational = "international"
)

// Form is one form definition.
type Form struct {
	ID         int64        `yaml:"id"            validate:"required,gt=0"`
	Title      string       `yaml:"title"`
	Fields     []Field      `yaml:"fields"        validate:"required,min=1,dive"`
	Completion Completion   `yaml:"completion"`
	Notify     Notification `yaml:"notifications"`
}

// Field describes a single input unit.  Slug is the submission key and the
// default raw-input key.
type Field struct {
	ID       int64       `yaml:"id"       validate:"required,gt=0"`
	Type     string      `yaml:"type"     validate:"required"`
	Slug     string      `yaml:"slug"     validate:"required"`
	Label    string      `yaml:"label"`
	Required bool        `yaml:"required"`
	Config   FieldConfig `yaml:"config"`
}

// FieldConfig is the type-specific configuration bag.  Unused members are
// ignored by types that do not need them.  Extra carries settings for
// host-registered types.
type FieldConfig struct {
	MaxFileSize    int               `yaml:"max_file_size"   validate:"gte=0"` // MB, 0 means unlimited
	FileExtensions string            `yaml:"file_extensions"`                  // "jpg, png;gif"
	AddressType    string            `yaml:"address_type"    validate:"omitempty,oneof=us international"`
	ShowDate       bool              `yaml:"show_date"`
	ShowTime       bool              `yaml:"show_time"`
	PhoneFormat    string            `yaml:"phone_format"`
	SecretKey      string            `yaml:"secret_key"` // reCAPTCHA secret
	Extra          map[string]string `yaml:"extra"`
}

// Completion controls what the submitter sees after a successful submit.
type Completion struct {
	Action      string `yaml:"action"       validate:"omitempty,oneof=redirect message"`
	RedirectURL string `yaml:"redirect_url" validate:"required_if=Action redirect"`
	Message     string `yaml:"message"`
}

// Notification configures the email sent after a successful submit.
// Addresses is a comma- or semicolon-separated list.
type Notification struct {
	Enabled     bool   `yaml:"enabled"`
	Addresses   string `yaml:"addresses"`
	FromType    string `yaml:"from_type"    validate:"omitempty,oneof=default custom field"`
	FromAddress string `yaml:"from_address"`
	FromField   string `yaml:"from_field"`
}

// Field returns the field with the given slug, or nil.
func (f *Form) Field(slug string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Slug == slug {
			return &f.Fields[i]
		}
	}
	return nil
}

// Recipients splits the notification address list.  Blank entries are
// dropped.
func (n Notification) Recipients() []string {
	return splitList(n.Addresses)
}

// splitList splits on commas and semicolons, trims, and drops blanks.
func splitList(s string) []string {
	s = strings.ReplaceAll(s, ";", ",")
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
