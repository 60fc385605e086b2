package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "json")
	log.Info("dropped")
	log.Warn("kept", "id", "swath")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info record should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"id":"swath"`) {
		t.Errorf("expected JSON attrs, got %s", out)
	}

	buf.Reset()
	New(&buf, "debug", "text").Debug("hello", "n", 3)
	if !strings.Contains(buf.String(), "n=3") {
		t.Errorf("expected text output, got %s", buf.String())
	}
}
