// internal/form/pretty.go
//
// Formpipe – Forms subsystem: human-readable field values.
//
// Context
//   Notifications list each stored field as “label: value”.  prettyLines
//   turns a sanitized Value into the lines shown under its label, applying
//   the per-type rules: dates and addresses go through their formatters,
//   names join first and last, confirm-pair emails show the address, and
//   choice sets list each non-blank selection on its own line.  An empty
//   result renders as a dash.
//
//------------------------------------------------------------------------------

package form

import (
	"strings"
)

type defaultDateFormatter struct{}

// FormatDate renders "date hour:minute am-pm", omitting missing parts.
func (defaultDateFormatter) FormatDate(v Value, _ *Field) string {
	if v.Kind() != KindComposite {
		return v.String()
	}
	var clock string
	if h := v.Part("hour"); h != "" {
		clock = h
		if m := v.Part("minute"); m != "" {
			if len(m) == 1 {
				m = "0" + m
			}
			clock += ":" + m
		}
		if ap := v.Part("am-pm"); ap != "" {
			clock += " " + ap
		}
	}
	return joinNonBlank(" ", v.Part("date"), clock)
}

type defaultAddressFormatter struct{}

// FormatAddress renders "street, city, state zipcode, country".
func (defaultAddressFormatter) FormatAddress(v Value, _ *Field) string {
	if v.Kind() != KindComposite {
		return v.String()
	}
	return joinNonBlank(", ",
		v.Part("street"),
		v.Part("city"),
		joinNonBlank(" ", v.Part("state"), v.Part("zipcode")),
		v.Part("country"),
	)
}

// prettyLines returns the display lines for one field value.  Nil means the
// value renders as a dash.
func (p *Processor) prettyLines(f *Field, v Value) []string {
	if v.IsEmpty() {
		return nil
	}

	switch f.Type {
	case TypeDate:
		return oneLine(p.dates.FormatDate(v, f))
	case TypeName:
		return oneLine(joinNonBlank(" ", v.Part("first"), v.Part("last")))
	case TypeAddress:
		return oneLine(p.addresses.FormatAddress(v, f))
	case TypeEmail:
		if v.Kind() == KindComposite {
			return oneLine(v.Part("email"))
		}
		return oneLine(v.String())
	case TypeDropdown, TypeRadio, TypeCheckboxes:
		if v.Kind() == KindText {
			return oneLine(v.String())
		}
		var out []string
		for _, s := range v.leaves() {
			if !isBlank(s) {
				out = append(out, s)
			}
		}
		return out
	}

	switch v.Kind() {
	case KindComposite:
		return oneLine(joinNonBlank(", ", v.leaves()...))
	case KindSelection:
		return oneLine(joinNonBlank(", ", v.Items()...))
	default:
		return oneLine(v.String())
	}
}

func oneLine(s string) []string {
	if isBlank(s) {
		return nil
	}
	return []string{s}
}

func joinNonBlank(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
