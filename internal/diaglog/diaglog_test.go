package diaglog

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestLogWritesNDJSON(t *testing.T) {
	t.Setenv(DebugEnv, "true")

	tmp := t.TempDir() + "/test.ndjson"
	l, err := New(tmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	entries := []LogEntry{
		{Component: ComponentSpeech, Event: EventSpeechRequest},
		{Component: ComponentSession, Event: EventStateChange, Reason: "begin", SessionID: "abc123"},
		{Component: ComponentPlayback, Event: EventPlaybackStop},
	}
	for _, e := range entries {
		l.Log(e)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(tmp)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	var lines []map[string]interface{}
	for scanner.Scan() {
		var m map[string]interface{}
		if err := json.Unmarshal(scanner.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSON line: %v -> %s", err, scanner.Text())
		}
		lines = append(lines, m)
	}
	if len(lines) != len(entries) {
		t.Fatalf("want %d lines, got %d", len(entries), len(lines))
	}
	if lines[0]["component"] != ComponentSpeech {
		t.Errorf("component mismatch: %v", lines[0]["component"])
	}
	if lines[1]["session_id"] != "abc123" {
		t.Errorf("session_id mismatch: %v", lines[1]["session_id"])
	}
	if lines[0]["ts"] == nil {
		t.Error("ts field missing")
	}
}

func TestLogTruncatesAtMaxSize(t *testing.T) {
	tmp := t.TempDir() + "/roll.ndjson"
	const maxSize = 1024
	l, err := open(tmp, maxSize)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer l.Close()

	for i := 0; i < 10; i++ {
		l.Log(LogEntry{Component: ComponentLecture, Event: EventSubtitleAdvance, Reason: strings.Repeat("x", 300)})
	}

	info, err := os.Stat(tmp)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() > maxSize {
		t.Errorf("file size %d exceeds maxSize %d", info.Size(), maxSize)
	}
	if info.Size() == 0 {
		t.Error("newest entry should survive truncation")
	}
}

func TestLogRedactsPayload(t *testing.T) {
	tmp := t.TempDir() + "/redact.ndjson"
	l, err := open(tmp, DefaultMaxSize)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	l.Log(LogEntry{
		Component: ComponentSpeech,
		Event:     EventSpeechRequest,
		Payload:   map[string]interface{}{"api_key": "AIza-secret", "model": "tts"},
	})
	_ = l.Close()

	data, err := os.ReadFile(tmp)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(data), "AIza-secret") {
		t.Errorf("api key leaked into log: %s", data)
	}
	if !strings.Contains(string(data), `"model":"tts"`) {
		t.Errorf("model should be preserved: %s", data)
	}
}

func TestRedactSensitiveFields(t *testing.T) {
	input := map[string]interface{}{
		"api_key":       "AIza",
		"key":           "k",
		"token":         "tok",
		"authorization": "Bearer x",
		"password":      "hunter2",
		"secret":        "s3cr3t",
		"safe_field":    "keep-me",
		"nested": map[string]interface{}{
			"api_key": "nested-key",
			"ok":      "value",
		},
		"list": []interface{}{map[string]interface{}{"token": "t"}},
	}

	out := Redact(input).(map[string]interface{})
	for _, k := range []string{"api_key", "key", "token", "authorization", "password", "secret"} {
		if out[k] != "[REDACTED]" {
			t.Errorf("key %q: want [REDACTED], got %v", k, out[k])
		}
	}
	if out["safe_field"] != "keep-me" {
		t.Errorf("safe_field should be preserved")
	}
	nested := out["nested"].(map[string]interface{})
	if nested["api_key"] != "[REDACTED]" {
		t.Error("nested api_key not redacted")
	}
	if nested["ok"] != "value" {
		t.Error("nested ok field should be preserved")
	}
	item := out["list"].([]interface{})[0].(map[string]interface{})
	if item["token"] != "[REDACTED]" {
		t.Error("token inside slice not redacted")
	}
	if input["api_key"] != "AIza" {
		t.Error("Redact must not modify its input")
	}
}

func TestNoOpWhenDisabled(t *testing.T) {
	t.Setenv(DebugEnv, "")

	tmp := t.TempDir() + "/noop.ndjson"
	l, err := New(tmp)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.Enabled() {
		t.Error("logger should be disabled")
	}
	l.Log(LogEntry{Component: ComponentSpeech, Event: EventSpeechRequest})
	_ = l.Close()

	if _, err := os.Stat(tmp); !os.IsNotExist(err) {
		t.Error("log file should not exist when debug disabled")
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Log(LogEntry{Component: ComponentSpeech})
	if err := l.Close(); err != nil {
		t.Errorf("Close on nil: %v", err)
	}
}
