package cli

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestHelpText_NoEscapedNewlines(t *testing.T) {
	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		for _, text := range []string{cmd.Short, cmd.Long} {
			if strings.Contains(text, `\n`) {
				t.Errorf("%s: help text contains a literal \\n: %q", cmd.CommandPath(), text)
			}
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func TestServeHelp_MentionsSweep(t *testing.T) {
	lines := strings.Split(serveCmd.Long, "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines of serve help, got %d: %q", len(lines), serveCmd.Long)
	}
	if !strings.HasPrefix(lines[2], "refreshed every screening.sweep_interval") {
		t.Errorf("unexpected last line %q", lines[2])
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID("case", "#12"); err != nil || id != 12 {
		t.Errorf("expected 12, got %d, %v", id, err)
	}
	for _, bad := range []string{"", "abc", "0", "-3"} {
		if _, err := parseID("case", bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}
