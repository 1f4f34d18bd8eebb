package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewJSONLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn", "json")
	l.Info("hidden")
	l.WithField("stage_id", 3).Warn("shown")

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Fatal("info line should be filtered at warn level")
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line); err != nil {
		t.Fatalf("expected json output: %v (%s)", err, buf.String())
	}
	if line["msg"] != "shown" || line["stage_id"] != float64(3) {
		t.Errorf("unexpected line %v", line)
	}
}

func TestUnknownLevelDefaultsToInfo(t *testing.T) {
	l := NewWithWriter(&bytes.Buffer{}, "loud", "text")
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("expected info, got %s", l.GetLevel())
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected fallback entry")
	}
	e := logrus.NewEntry(logrus.New()).WithField("request_id", "abc")
	ctx := WithEntry(context.Background(), e)
	if FromContext(ctx).Data["request_id"] != "abc" {
		t.Error("expected stored entry")
	}
}
