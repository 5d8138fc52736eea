package subtitle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleCues() []Cue {
	return []Cue{
		{Index: 0, Start: 0, End: 5*time.Second + 230*time.Millisecond, Text: "女士们，先生们，晚上好。"},
		{Index: 1, Start: 5*time.Second + 230*time.Millisecond, End: 10*time.Second + 100*time.Millisecond, Text: "我是西格蒙德·弗洛伊德。"},
	}
}

func tmpPath(t *testing.T, ext string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "lecture"+ext)
}

func TestWriteText(t *testing.T) {
	path := tmpPath(t, ".txt")
	if err := WriteText(path, sampleCues()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	got := string(data)
	if !strings.Contains(got, "[00:00:00] 女士们，先生们，晚上好。") {
		t.Errorf("missing first cue; got:\n%s", got)
	}
	if !strings.Contains(got, "[00:00:05] 我是西格蒙德·弗洛伊德。") {
		t.Errorf("missing second cue; got:\n%s", got)
	}
	if lines := strings.Split(strings.TrimRight(got, "\n"), "\n"); len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}
}

func TestWriteSRT(t *testing.T) {
	path := tmpPath(t, ".srt")
	if err := WriteSRT(path, sampleCues()); err != nil {
		t.Fatalf("WriteSRT: %v", err)
	}
	data, _ := os.ReadFile(path)
	want := "1\n00:00:00,000 --> 00:00:05,230\n女士们，先生们，晚上好。\n\n" +
		"2\n00:00:05,230 --> 00:00:10,100\n我是西格蒙德·弗洛伊德。\n"
	if string(data) != want {
		t.Errorf("SRT mismatch:\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestWriteVTT(t *testing.T) {
	path := tmpPath(t, ".vtt")
	if err := WriteVTT(path, sampleCues()); err != nil {
		t.Fatalf("WriteVTT: %v", err)
	}
	data, _ := os.ReadFile(path)
	got := string(data)
	if !strings.HasPrefix(got, "WEBVTT\n") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "00:00:05.230 --> 00:00:10.100") {
		t.Errorf("missing VTT timestamp; got:\n%s", got)
	}
}

func TestWriteAll(t *testing.T) {
	base := filepath.Join(t.TempDir(), "sub", "freud")
	if err := WriteAll(base, sampleCues(), Formats); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	for _, ext := range Formats {
		if _, err := os.Stat(base + "." + ext); err != nil {
			t.Errorf("%s not written: %v", ext, err)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(base))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteAllDefaultsToText(t *testing.T) {
	base := filepath.Join(t.TempDir(), "lecture")
	if err := WriteAll(base, sampleCues(), nil); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if _, err := os.Stat(base + ".txt"); err != nil {
		t.Errorf("txt not written: %v", err)
	}
	if _, err := os.Stat(base + ".srt"); !os.IsNotExist(err) {
		t.Error("srt should not be written by default")
	}
}

func TestWriteAllUnknownFormat(t *testing.T) {
	err := WriteAll(filepath.Join(t.TempDir(), "x"), sampleCues(), []string{"txt", "ass"})
	if err == nil || !strings.Contains(err.Error(), `unknown format "ass"`) {
		t.Errorf("want unknown format error, got %v", err)
	}
}

func TestTimestampsPastOneHour(t *testing.T) {
	d := time.Hour + 2*time.Minute + 3*time.Second + 45*time.Millisecond
	if got := formatSRTTimestamp(d); got != "01:02:03,045" {
		t.Errorf("SRT: %s", got)
	}
	if got := formatVTTTimestamp(d); got != "01:02:03.045" {
		t.Errorf("VTT: %s", got)
	}
	if got := formatTextTimestamp(d); got != "01:02:03" {
		t.Errorf("text: %s", got)
	}
}
