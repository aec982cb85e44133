package config

import (
	"reflect"
	"testing"
)

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " https://a.example.com, ,https://b.example.com ")
	got := List("TEST_LIST")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestList_Unset(t *testing.T) {
	if got := List("TEST_LIST_UNSET"); got != nil {
		t.Fatalf("expected nil for unset key, got %v", got)
	}
}
