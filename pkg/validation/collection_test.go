package validation

import "testing"

func TestValidateAndNormalizeCollection(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"orders", "orders", false},
		{"Products", "products", false},
		{"  coupons ", "coupons", false},
		{"CUSTOMERS", "customers", false},
		{"", "", true},
		{"invoices", "", true},
		{"order", "", true},
	}

	for _, tc := range cases {
		got, err := ValidateAndNormalizeCollection(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCollectionForEvent(t *testing.T) {
	cases := []struct {
		event   string
		want    string
		wantErr bool
	}{
		{"order/created", "orders", false},
		{"order/updated", "orders", false},
		{"product/deleted", "products", false},
		{"coupon/created", "coupons", false},
		{"customer/updated", "customers", false},
		{"Order/created", "orders", false},
		{"app/uninstalled", "", true},
		{"orders", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := CollectionForEvent(tc.event)
		if tc.wantErr {
			if err == nil {
				t.Errorf("%q: expected an error", tc.event)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: unexpected error %v", tc.event, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: got %q, want %q", tc.event, got, tc.want)
		}
	}
}
