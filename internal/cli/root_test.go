package cli

import (
	"testing"
)

func TestRootRegistersCommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"serve", "run", "session", "ps", "logs", "kill", "cleanup", "exec", "tools", "version"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestClientNormalizesAddr(t *testing.T) {
	addr := "127.0.0.1:7399"
	configPath := ""
	ctx := &commandContext{configPath: &configPath, daemonAddr: &addr}
	if ctx.client() == nil {
		t.Fatal("client() returned nil")
	}

	empty := "  "
	ctx = &commandContext{configPath: &configPath, daemonAddr: &empty}
	if ctx.client() == nil {
		t.Fatal("client() returned nil for blank addr")
	}
}
