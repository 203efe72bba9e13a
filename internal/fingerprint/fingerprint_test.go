package fingerprint

import "testing"

func TestSum_Deterministic(t *testing.T) {
	data := []byte("statement content")

	first := Sum(data)
	second := Sum(data)

	if first != second {
		t.Errorf("Sum not deterministic: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Errorf("Expected 64 hex chars, got %d", len(first))
	}
}

func TestSum_DistinctInputs(t *testing.T) {
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("Distinct inputs produced the same fingerprint")
	}
}

func TestSum_EmptyInput(t *testing.T) {
	// Known SHA-256 of the empty string.
	const want = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

	if got := Sum(nil); got != want {
		t.Errorf("Sum(nil) = %s, want %s", got, want)
	}
	if got := Sum([]byte{}); got != want {
		t.Errorf("Sum(empty) = %s, want %s", got, want)
	}
}
