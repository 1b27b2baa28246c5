package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/naqeebali-shamsi/intellifill/internal/model"
)

func TestValue_Email(t *testing.T) {
	nv := Value(model.FieldTypeEmail, "  John.Doe@Example.COM ")
	assert.Equal(t, "john.doe@example.com", nv.CanonicalForm)
	assert.Equal(t, "John.Doe@Example.COM", nv.DisplayForm)
}

func TestValue_EmailDedup_OrderIndependent(t *testing.T) {
	a := Value(model.FieldTypeEmail, "John.Doe@Example.com")
	b := Value(model.FieldTypeEmail, "john.doe@example.com")
	assert.Equal(t, a.CanonicalForm, b.CanonicalForm)
}

func TestValue_Phone_StripsFormatting(t *testing.T) {
	nv := Value(model.FieldTypePhone, "(555) 010-0100")
	assert.Equal(t, "5550100100", nv.CanonicalForm)
}

func TestValue_Phone_DropsUSCountryCode(t *testing.T) {
	nv := Value(model.FieldTypePhone, "+1-555-010-0100")
	assert.Equal(t, "5550100100", nv.CanonicalForm)
}

func TestValue_Phone_SameCanonicalAcrossFormats(t *testing.T) {
	a := Value(model.FieldTypePhone, "+1-555-010-0100")
	b := Value(model.FieldTypePhone, "(555) 010-0100")
	assert.Equal(t, a.CanonicalForm, b.CanonicalForm)
}

func TestValue_Phone_KeepsNonUSEleven(t *testing.T) {
	// 11 digits not starting with 1 keeps all digits.
	nv := Value(model.FieldTypePhone, "44123456789")
	assert.Equal(t, "44123456789", nv.CanonicalForm)
}

func TestValue_Identifier(t *testing.T) {
	nv := Value(model.FieldTypeIdentifier, "123-45-6789")
	assert.Equal(t, "123456789", nv.CanonicalForm)
}

func TestValue_Date_CanonicalizesToISO(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"01/02/2024", "2024-01-02"},
		{"2024/01/02", "2024-01-02"},
		{"2024-01-02", "2024-01-02"},
		{"Jan 2, 2024", "2024-01-02"},
		{"2 January 2024", "2024-01-02"},
		{"not a date", "not a date"},
	}
	for _, tc := range cases {
		nv := Value(model.FieldTypeDate, tc.in)
		assert.Equal(t, tc.want, nv.CanonicalForm, "date %q", tc.in)
	}
}

func TestValue_Date_SameCanonicalAcrossFormats(t *testing.T) {
	a := Value(model.FieldTypeDate, "03/15/2024")
	b := Value(model.FieldTypeDate, "March 15, 2024")
	assert.Equal(t, a.CanonicalForm, b.CanonicalForm)
}

func TestValue_Number(t *testing.T) {
	assert.Equal(t, "1234.5", Value(model.FieldTypeNumber, " 1,234.5 ").CanonicalForm)
	assert.Equal(t, "1234", Value(model.FieldTypeNumber, "1,234").CanonicalForm)
	assert.Equal(t, "abc", Value(model.FieldTypeNumber, " abc ").CanonicalForm)
}

func TestValue_Currency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$1,234.56", "1234.56"},
		{"1234.56", "1234.56"},
		{"$1,234", "1234.00"},
		{"$ 50", "50.00"},
		{"lots", "lots"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Value(model.FieldTypeCurrency, tc.in).CanonicalForm, "currency %q", tc.in)
	}
}

func TestValue_DefaultTrimsOnly(t *testing.T) {
	nv := Value(model.FieldTypeText, "  Mixed Case Value  ")
	assert.Equal(t, "Mixed Case Value", nv.CanonicalForm)
}

func TestValue_Idempotent(t *testing.T) {
	cases := []struct {
		ft  model.FieldType
		raw string
	}{
		{model.FieldTypeEmail, "  John.Doe@Example.COM "},
		{model.FieldTypePhone, "+1 (555) 010-0100"},
		{model.FieldTypeIdentifier, "123-45-6789"},
		{model.FieldTypeText, "  plain value  "},
		{model.FieldTypeDate, " 01/02/2024 "},
		{model.FieldTypeCurrency, " $1,234.56 "},
	}
	for _, tc := range cases {
		t.Run(string(tc.ft), func(t *testing.T) {
			once := Value(tc.ft, tc.raw)
			twice := Value(tc.ft, once.CanonicalForm)
			assert.Equal(t, once.CanonicalForm, twice.CanonicalForm)
		})
	}
}

func TestKey(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"First Name", "first_name"},
		{"first-name", "first_name"},
		{"FIRST__NAME", "first_name"},
		{"  first \t name  ", "first_name"},
		{"e-mail (primary)", "e_mail_primary"},
		{"SSN#", "ssn"},
		{"__already_normal__", "already_normal"},
		{"Prénom", "prenom"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Key(tc.in), "Key(%q)", tc.in)
	}
}

func TestKey_Idempotent(t *testing.T) {
	for _, in := range []string{"First Name", "e-mail (primary)", "a  b--c__d"} {
		once := Key(in)
		assert.Equal(t, once, Key(once))
	}
}

func TestKeySet_DedupsAndPreservesOrder(t *testing.T) {
	got := KeySet([]string{"First Name", "first-name", "Last Name", "", "last_name"})
	assert.Equal(t, []string{"first_name", "last_name"}, got)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		ft    model.FieldType
		value string
		want  bool
	}{
		{model.FieldTypeEmail, "a@b.co", true},
		{model.FieldTypeEmail, "not-an-email", false},
		{model.FieldTypePhone, "(555) 010-0100", true},
		{model.FieldTypePhone, "12345", false},
		{model.FieldTypeDate, "01/02/2024", true},
		{model.FieldTypeDate, "2024-01-02", true},
		{model.FieldTypeDate, "3 Mar 2024", true},
		{model.FieldTypeDate, "yesterday", false},
		{model.FieldTypeNumber, "1,234.5", true},
		{model.FieldTypeNumber, "abc", false},
		{model.FieldTypeCurrency, "$1,234.56", true},
		{model.FieldTypeCurrency, "lots", false},
		{model.FieldTypeText, "anything at all", true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Validate(tc.ft, tc.value), "%s %q", tc.ft, tc.value)
	}
}

func TestInferType(t *testing.T) {
	cases := []struct {
		name string
		want model.FieldType
	}{
		{"email_address", model.FieldTypeEmail},
		{"Phone Number", model.FieldTypePhone},
		{"date_of_birth", model.FieldTypeDate},
		{"SSN", model.FieldTypeIdentifier},
		{"annual salary", model.FieldTypeCurrency},
		{"street address", model.FieldTypeAddress},
		{"first_name", model.FieldTypeName},
		{"notes", model.FieldTypeText},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, InferType(tc.name), tc.name)
	}
}
