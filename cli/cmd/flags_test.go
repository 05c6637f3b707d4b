package cmd

import "testing"

func TestReadOnlyFlagsIncludesFormatAndNoColor(t *testing.T) {
	flags := ReadOnlyFlags()
	if len(flags) != 2 {
		t.Fatalf("ReadOnlyFlags() returned %d flags, want 2", len(flags))
	}
}

func TestGatewayClientFlagsIncludesAddr(t *testing.T) {
	flags := GatewayClientFlags()
	found := false
	for _, f := range flags {
		if f.Names()[0] == "addr" {
			found = true
		}
	}
	if !found {
		t.Error("GatewayClientFlags() should include --addr")
	}
}
