package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("CONNECTID_TEST_BOOL", "yes")
	if !ParseBoolEnv("CONNECTID_TEST_BOOL", false) {
		t.Error("expected true for yes")
	}
	t.Setenv("CONNECTID_TEST_BOOL", "off")
	if ParseBoolEnv("CONNECTID_TEST_BOOL", true) {
		t.Error("expected false for off")
	}
	t.Setenv("CONNECTID_TEST_BOOL", "banana")
	if !ParseBoolEnv("CONNECTID_TEST_BOOL", true) {
		t.Error("expected default for invalid value")
	}
	if ParseBoolEnv("CONNECTID_TEST_BOOL_UNSET", false) {
		t.Error("expected default for unset value")
	}
}

func TestParseInt64Env(t *testing.T) {
	t.Setenv("CONNECTID_TEST_INT", "-100200300")
	if got := ParseInt64Env("CONNECTID_TEST_INT", 0); got != -100200300 {
		t.Errorf("got %d", got)
	}
	t.Setenv("CONNECTID_TEST_INT", "abc")
	if got := ParseInt64Env("CONNECTID_TEST_INT", 7); got != 7 {
		t.Errorf("expected default, got %d", got)
	}
}
