// Package subtitle paces the on-screen subtitle line against playback and
// exports cue files.
package subtitle

import (
	"errors"
	"fmt"
	"strings"
)

// Script is a lecture: the full text sent in one request, and the subtitle
// segments shown (or requested one by one) while it plays.
type Script struct {
	Title    string   `yaml:"title" json:"title"`
	Language string   `yaml:"language" json:"language"`
	Text     string   `yaml:"text" json:"text"`
	Segments []string `yaml:"segments" json:"segments"`
}

// Validate checks that the script can be played.
func (s Script) Validate() error {
	if len(s.Segments) == 0 {
		return errors.New("script has no segments")
	}
	for i, seg := range s.Segments {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("segment %d is empty", i)
		}
	}
	return nil
}

// FullText returns Text, or the segments joined when Text is empty.
func (s Script) FullText() string {
	if strings.TrimSpace(s.Text) != "" {
		return s.Text
	}
	return strings.Join(s.Segments, "")
}

// Segment returns segment i, clamped to the valid range. An empty script
// yields "".
func (s Script) Segment(i int) string {
	if len(s.Segments) == 0 {
		return ""
	}
	return s.Segments[Clamp(i, len(s.Segments))]
}

// Clamp bounds an index to [0, n-1]. n <= 0 yields 0.
func Clamp(i, n int) int {
	if i < 0 || n <= 0 {
		return 0
	}
	if i > n-1 {
		return n - 1
	}
	return i
}
