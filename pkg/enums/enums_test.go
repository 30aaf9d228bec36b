package enums

import "testing"

func TestParseCurrencyIsCaseInsensitive(t *testing.T) {
	got, err := ParseCurrency(" usd ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != CurrencyUSD {
		t.Fatalf("expected USD, got %s", got)
	}
	if _, err := ParseCurrency("EUR"); err == nil {
		t.Fatal("expected EUR to be rejected")
	}
}

func TestParseLanguageAcceptsRegionalTags(t *testing.T) {
	tests := map[string]Language{
		"en":    LanguageEnglish,
		"en-US": LanguageEnglish,
		"HE_il": LanguageHebrew,
	}
	for raw, want := range tests {
		got, err := ParseLanguage(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", raw, want, got)
		}
	}
	if _, err := ParseLanguage("fr"); err == nil {
		t.Fatal("expected fr to be rejected")
	}
}

func TestRoleCanShopForAnyHousehold(t *testing.T) {
	for _, role := range []Role{RoleStaff, RoleVendor, RolePicker, RoleAdmin} {
		if !role.CanShopForAnyHousehold() {
			t.Fatalf("expected %s to shop for households", role)
		}
	}
	if RoleCustomer.CanShopForAnyHousehold() {
		t.Fatal("customers must be household members")
	}
}

func TestFulfillmentStepsOrder(t *testing.T) {
	if len(FulfillmentSteps) != 7 {
		t.Fatalf("expected 7 steps, got %d", len(FulfillmentSteps))
	}
	if FulfillmentSteps[0] != StepPurchaseOrderDocument || FulfillmentSteps[6] != StepCustomerEmail {
		t.Fatalf("unexpected step order %v", FulfillmentSteps)
	}
	if _, err := ParseFulfillmentStep("vendor_fax"); err == nil {
		t.Fatal("expected unknown step to be rejected")
	}
}

func TestStepStatusFailed(t *testing.T) {
	if StepStatusSucceeded.Failed() {
		t.Fatal("succeeded must not count as failure")
	}
	if !StepStatusFailed.Failed() || !StepStatusSkipped.Failed() {
		t.Fatal("failed and skipped count against success")
	}
}
