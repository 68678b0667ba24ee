package json

import (
	"bytes"
	"runtime"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	in := sample{Name: "chunk", Count: 42}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer

	if err := NewEncoder(&buf).Encode(sample{Name: "doc", Count: 7}); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var out sample
	if err := NewDecoder(&buf).Decode(&out); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if out.Name != "doc" || out.Count != 7 {
		t.Errorf("unexpected decoded value: %+v", out)
	}
}

func TestIsUsingSonic(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	if IsUsingSonic() != want {
		t.Errorf("IsUsingSonic() = %v, want %v on %s", IsUsingSonic(), want, runtime.GOARCH)
	}
}
