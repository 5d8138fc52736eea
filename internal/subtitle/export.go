package subtitle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Formats lists the cue file formats WriteAll understands.
var Formats = []string{"txt", "srt", "vtt"}

// WriteText writes one cue per line prefixed by [HH:MM:SS].
func WriteText(path string, cues []Cue) error {
	return atomicWrite(path, []byte(FormatText(cues)))
}

// WriteSRT writes a SubRip file.
func WriteSRT(path string, cues []Cue) error {
	return atomicWrite(path, []byte(FormatSRT(cues)))
}

// WriteVTT writes a WebVTT file.
func WriteVTT(path string, cues []Cue) error {
	return atomicWrite(path, []byte(FormatVTT(cues)))
}

// FormatText renders cues as timestamped plain text.
func FormatText(cues []Cue) string {
	var b strings.Builder
	for _, c := range cues {
		fmt.Fprintf(&b, "[%s] %s\n", formatTextTimestamp(c.Start), c.Text)
	}
	return b.String()
}

// FormatSRT renders cues as SubRip, numbered from 1.
func FormatSRT(cues []Cue) string {
	var b strings.Builder
	for i, c := range cues {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\n", i+1)
		fmt.Fprintf(&b, "%s --> %s\n", formatSRTTimestamp(c.Start), formatSRTTimestamp(c.End))
		fmt.Fprintf(&b, "%s\n", c.Text)
	}
	return b.String()
}

// FormatVTT renders cues as WebVTT.
func FormatVTT(cues []Cue) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n")
	for _, c := range cues {
		b.WriteByte('\n')
		fmt.Fprintf(&b, "%s --> %s\n", formatVTTTimestamp(c.Start), formatVTTTimestamp(c.End))
		fmt.Fprintf(&b, "%s\n", c.Text)
	}
	return b.String()
}

// WriteAll writes the cues in every requested format. basePath has no
// extension. An empty formats list means txt only. All failures are
// reported together.
func WriteAll(basePath string, cues []Cue, formats []string) error {
	if len(formats) == 0 {
		formats = []string{"txt"}
	}
	var errs []string
	for _, f := range formats {
		var err error
		switch f {
		case "txt":
			err = WriteText(basePath+".txt", cues)
		case "srt":
			err = WriteSRT(basePath+".srt", cues)
		case "vtt":
			err = WriteVTT(basePath+".vtt", cues)
		default:
			errs = append(errs, fmt.Sprintf("unknown format %q", f))
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", f, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("subtitle write errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func formatTextTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// formatSRTTimestamp formats a duration as HH:MM:SS,mmm.
func formatSRTTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

// formatVTTTimestamp formats a duration as HH:MM:SS.mmm.
func formatVTTTimestamp(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds()) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, "subtitle-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		if tmpFile != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("writing subtitles: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("syncing subtitles: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing subtitles: %w", err)
	}
	tmpFile = nil

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming subtitles: %w", err)
	}
	return nil
}
