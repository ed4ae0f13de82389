// Copyright 2025 Emin Salih Açıkgöz
// SPDX-License-Identifier: gpl3-or-later

package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestResourceKindMarshalsAsSnakeCaseName(t *testing.T) {
	cases := map[ResourceKind]string{
		ResourceLink:     "link",
		ResourceTemplate: "template",
		ResourcePackage:  "package",
		ResourceCommand:  "command",
	}
	for kind, want := range cases {
		body, err := json.Marshal(kind)
		if err != nil {
			t.Fatal(err)
		}
		if string(body) != `"`+want+`"` {
			t.Errorf("kind %v: got %s, want %q", kind, body, want)
		}
	}
}

func TestResourceKindUnmarshalRoundTrips(t *testing.T) {
	r := Resource{Kind: ResourceCommand, Command: &CommandResource{Binary: "true"}}
	body, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(body), `"resource":"command"`) {
		t.Errorf("expected a snake_case resource discriminator, got: %s", body)
	}

	var got Resource
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != ResourceCommand {
		t.Errorf("got kind %v, want ResourceCommand", got.Kind)
	}
}

func TestResourceKindUnmarshalRejectsUnknownName(t *testing.T) {
	var k ResourceKind
	if err := json.Unmarshal([]byte(`"bogus"`), &k); err == nil {
		t.Fatal("expected an error for an unrecognized resource kind name")
	}
}
