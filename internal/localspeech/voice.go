// Package localspeech speaks text through the operating system's speech
// synthesizer. It is the offline fallback for when no remote key is at hand;
// it produces no PCM and drives no subtitles beyond sentence boundaries.
package localspeech

import (
	"bufio"
	"strings"
)

// Voice is one installed system voice.
type Voice struct {
	Name string
	Lang string
}

// DefaultPreferred favours mature-sounding voices, and Chinese ones for the
// built-in lecture.
var DefaultPreferred = Preference{
	Names:        []string{"Daniel", "Alex", "Tingting"},
	LangPrefixes: []string{"zh"},
}

// Preference ranks voices by name fragments and language prefixes.
type Preference struct {
	Names        []string
	LangPrefixes []string
}

// PickVoice returns the first voice whose name contains a preferred name or
// whose language starts with a preferred prefix, else the first voice. ok is
// false only when voices is empty.
func PickVoice(voices []Voice, pref Preference) (v Voice, ok bool) {
	if len(voices) == 0 {
		return Voice{}, false
	}
	for _, cand := range voices {
		if pref.matches(cand) {
			return cand, true
		}
	}
	return voices[0], true
}

func (p Preference) matches(v Voice) bool {
	for _, n := range p.Names {
		if n != "" && strings.Contains(v.Name, n) {
			return true
		}
	}
	lang := strings.ReplaceAll(v.Lang, "_", "-")
	for _, prefix := range p.LangPrefixes {
		if prefix != "" && strings.HasPrefix(lang, prefix) {
			return true
		}
	}
	return false
}

// parseSayVoices reads `say -v ?` output:
//
//	Alex                en_US    # Most people recognize me by my voice.
//	Ting-Ting           zh_CN    # 你好，我叫婷婷。
func parseSayVoices(out string) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if i := strings.Index(line, "#"); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// Names may contain spaces ("Bad News"); the locale is last.
		lang := fields[len(fields)-1]
		name := strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, Voice{Name: name, Lang: lang})
	}
	return voices
}

// parseEspeakVoices reads `espeak-ng --voices` output:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  cmn             --/M      Chinese_(Mandarin) sit/cmn              (zh-cmn 5)(zh 5)
func parseEspeakVoices(out string) []Voice {
	var voices []Voice
	sc := bufio.NewScanner(strings.NewReader(out))
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 {
			continue
		}
		voices = append(voices, Voice{Name: fields[3], Lang: fields[1]})
	}
	return voices
}
