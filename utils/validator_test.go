package utils

import "testing"

type sampleForm struct {
	Username             string `validate:"required,usernameok"`
	Email                string `validate:"emailok"`
	Password             string `validate:"required,pwdmin"`
	PasswordConfirmation string `validate:"required,eqfield=Password"`
	Nickname             string `validate:"nickok"`
}

func validForm() sampleForm {
	return sampleForm{
		Username:             "adventurer_01",
		Email:                "a@example.com",
		Password:             "secret1",
		PasswordConfirmation: "secret1",
		Nickname:             "小明",
	}
}

func TestValidateStruct_OK(t *testing.T) {
	form := validForm()
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("expected valid form, got %v", err)
	}
}

func TestValidateStruct_Required(t *testing.T) {
	form := validForm()
	form.Username = ""
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for missing username")
	}
}

func TestValidateStruct_UsernameShape(t *testing.T) {
	form := validForm()
	form.Username = "ab"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for too-short username")
	}
	form.Username = "has space"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for username with space")
	}
}

func TestValidateStruct_EmailOptional(t *testing.T) {
	form := validForm()
	form.Email = ""
	if err := ValidateStruct(&form); err != nil {
		t.Fatalf("empty email should pass, got %v", err)
	}
	form.Email = "not-an-email"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for malformed email")
	}
}

func TestValidateStruct_PasswordRules(t *testing.T) {
	form := validForm()
	form.Password = "short"
	form.PasswordConfirmation = "short"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for password under 6 chars")
	}
	form = validForm()
	form.PasswordConfirmation = "different1"
	if err := ValidateStruct(&form); err == nil {
		t.Fatal("expected error for mismatched confirmation")
	}
}
