package wire

import "testing"

func TestToSnakeCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"resourceLocator", "resource_locator"},
		{"requestConfiguration", "request_configuration"},
		{"getApiVersionAsync", "get_api_version_async"},
		{"a", "a"},
		{"ID", "id"},
		{"catalogItem", "catalog_item"},
	}

	for _, c := range cases {
		if got := ToSnakeCase(c.in); got != c.want {
			t.Errorf("ToSnakeCase(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestToCamelCase(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"resource_locator", "resourceLocator"},
		{"request_configuration", "requestConfiguration"},
		{"get_api_version_async", "getApiVersionAsync"},
		{"a", "a"},
		{"catalog_item", "catalogItem"},
	}

	for _, c := range cases {
		if got := ToCamelCase(c.in); got != c.want {
			t.Errorf("ToCamelCase(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCasingRoundTrip(t *testing.T) {
	names := []string{"resourceLocator", "requestConfiguration", "getAvailabilityAsync", "beginOrEnd"}
	for _, name := range names {
		if got := ToCamelCase(ToSnakeCase(name)); got != name {
			t.Errorf("round trip %q -> %q -> %q", name, ToSnakeCase(name), got)
		}
	}
}
