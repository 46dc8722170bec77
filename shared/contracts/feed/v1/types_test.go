package v1

import (
	"testing"
	"time"
)

func TestEnvelopeValidate(t *testing.T) {
	ok := Envelope{V: Version, Type: TypeHello, TS: time.Now()}
	if err := ok.Validate(); err != nil {
		t.Fatalf("expected valid envelope, got %v", err)
	}

	cases := map[string]Envelope{
		"missing version": {Type: TypeHello},
		"wrong version":   {V: "v2", Type: TypeHello},
		"missing type":    {V: Version},
		"unknown type":    {V: Version, Type: "message_send"},
	}
	for name, env := range cases {
		if err := env.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
