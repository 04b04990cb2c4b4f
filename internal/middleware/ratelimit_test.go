package middleware

import "testing"

func TestTokenBucketExhausts(t *testing.T) {
	l := NewTokenBucket(3, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("1.2.3.4") {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}
	if l.Allow("1.2.3.4") {
		t.Error("request over capacity allowed")
	}
}

func TestTokenBucketPerKey(t *testing.T) {
	l := NewTokenBucket(1, 1)
	if !l.Allow("a") {
		t.Fatal("first request for key a denied")
	}
	if !l.Allow("b") {
		t.Error("key b throttled by key a's usage")
	}
	if l.Allow("a") {
		t.Error("key a allowed past capacity")
	}
}
