package checkout

import (
	"testing"
)

func validForm() Form {
	return Form{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Phone:    "(555) 123-4567",
		Address:  "12 Analytical Way",
		City:     "London",
		ZipCode:  "N1 9GU",
	}
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	result := Validate(validForm())
	if !result.Valid || len(result.Errors) != 0 {
		t.Fatalf("expected valid form, got %+v", result)
	}
}

func TestValidateReportsEveryMissingField(t *testing.T) {
	result := Validate(Form{FullName: "   ", Email: "\t"})
	if result.Valid {
		t.Fatal("expected invalid form")
	}
	want := map[string]string{
		"fullName": "Full name is required",
		"email":    "Email is required",
		"phone":    "Phone number is required",
		"address":  "Address is required",
		"city":     "City is required",
		"zipCode":  "ZIP code is required",
	}
	if len(result.Errors) != len(want) {
		t.Fatalf("unexpected errors %+v", result.Errors)
	}
	for field, msg := range want {
		if result.Errors[field] != msg {
			t.Fatalf("field %s: got %q want %q", field, result.Errors[field], msg)
		}
	}
}

func TestValidateFieldFormats(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Form)
		field  string
		msg    string
	}{
		{name: "email without domain dot", mutate: func(f *Form) { f.Email = "ada@example" }, field: "email", msg: "Email is invalid"},
		{name: "email without at", mutate: func(f *Form) { f.Email = "ada.example.com" }, field: "email", msg: "Email is invalid"},
		{name: "short phone", mutate: func(f *Form) { f.Phone = "555-1234" }, field: "phone", msg: "Phone number must be at least 10 digits"},
		{name: "phone letters only", mutate: func(f *Form) { f.Phone = "call me" }, field: "phone", msg: "Phone number must be at least 10 digits"},
		{name: "phone non-ascii digits", mutate: func(f *Form) { f.Phone = "٥٥٥١٢٣٤٥٦٧" }, field: "phone", msg: "Phone number must be at least 10 digits"},
		{name: "phone fullwidth digits", mutate: func(f *Form) { f.Phone = "５５５１２３４５６７" }, field: "phone", msg: "Phone number must be at least 10 digits"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.mutate(&form)
			result := Validate(form)
			if result.Valid {
				t.Fatal("expected invalid form")
			}
			if len(result.Errors) != 1 || result.Errors[tc.field] != tc.msg {
				t.Fatalf("unexpected errors %+v", result.Errors)
			}
		})
	}
}

func TestPhoneDigitsIgnoreFormatting(t *testing.T) {
	form := validForm()
	form.Phone = "+1 555.123.4567"
	if result := Validate(form); !result.Valid {
		t.Fatalf("expected formatted phone to pass, got %+v", result.Errors)
	}
}

func TestNormalizeTrims(t *testing.T) {
	got := Form{FullName: "  Ada ", ZipCode: " 123 "}.Normalize()
	if got.FullName != "Ada" || got.ZipCode != "123" {
		t.Fatalf("unexpected normalized form %+v", got)
	}
}
