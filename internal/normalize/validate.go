package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	currencyRe = regexp.MustCompile(`^\$?[\d,]+\.?\d{0,2}$`)
	dateRes    = []*regexp.Regexp{
		regexp.MustCompile(`^\d{1,2}[/\-.]\d{1,2}[/\-.]\d{2,4}$`),
		regexp.MustCompile(`^\d{4}[/\-.]\d{1,2}[/\-.]\d{1,2}$`),
		regexp.MustCompile(`(?i)^\d{1,2}\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}$`),
	}
)

// Validate reports whether a value is plausible for the given field type.
// Unknown and free-text types always validate.
func Validate(fieldType model.FieldType, value string) bool {
	value = strings.TrimSpace(value)
	switch fieldType {
	case model.FieldTypeEmail:
		return emailRe.MatchString(value)
	case model.FieldTypePhone:
		n := len(normalizePhone(value))
		return n >= 10 && n <= 12
	case model.FieldTypeDate:
		for _, re := range dateRes {
			if re.MatchString(value) {
				return true
			}
		}
		return false
	case model.FieldTypeNumber:
		_, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
		return err == nil
	case model.FieldTypeCurrency:
		return currencyRe.MatchString(strings.ReplaceAll(value, " ", ""))
	default:
		return true
	}
}

// typeKeywords maps field-name fragments to the type they imply. Checked in
// order so the more specific identifier fragments win over generic ones.
var typeKeywords = []struct {
	fragments []string
	fieldType model.FieldType
}{
	{[]string{"email", "e_mail"}, model.FieldTypeEmail},
	{[]string{"ssn", "ein", "tax_id", "national_id", "passport"}, model.FieldTypeIdentifier},
	{[]string{"phone", "mobile", "cell", "tel", "fax"}, model.FieldTypePhone},
	{[]string{"date", "birth", "dob"}, model.FieldTypeDate},
	{[]string{"amount", "price", "salary", "wage", "income", "tax"}, model.FieldTypeCurrency},
	{[]string{"address", "street", "city", "state", "zip", "postal"}, model.FieldTypeAddress},
	{[]string{"name", "first", "last", "middle"}, model.FieldTypeName},
}

// InferType guesses a field type from a field name when neither the pattern
// library nor a form descriptor supplies one.
func InferType(fieldName string) model.FieldType {
	key := Key(fieldName)
	for _, tk := range typeKeywords {
		for _, frag := range tk.fragments {
			if strings.Contains(key, frag) {
				return tk.fieldType
			}
		}
	}
	return model.FieldTypeText
}
