package chatapp

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/matheus3301/wppilot/internal/normalize"
)

// Message kinds.
const (
	KindText         = "text"
	KindAudio        = "audio"
	KindImage        = "image"
	KindVideo        = "video"
	KindSticker      = "sticker"
	KindDocument     = "document"
	KindMediaCaption = "media_caption"
	KindEmpty        = "empty"
	KindUnknown      = "unknown"
)

var (
	durationPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(?::\d{2})?$`)
	fileNamePattern = regexp.MustCompile(`\S+\.[A-Za-z0-9]{2,5}$`)
)

// chromePhrases are player and download labels rendered next to media in
// either supported language. They are never transcript content.
var chromePhrases = map[string]struct{}{
	"play": {}, "pause": {}, "download": {}, "cancel": {},
	"voice message": {}, "play voice message": {}, "pause voice message": {},
	"transcript": {}, "view transcript": {}, "transcribe": {},
	"reproducir": {}, "pausar": {}, "descargar": {}, "cancelar": {},
	"mensaje de voz": {}, "reproducir mensaje de voz": {}, "pausar mensaje de voz": {},
	"transcripcion": {}, "ver transcripcion": {}, "transcribir": {},
}

// Enrichment holds kind-specific text found next to non-text content.
type Enrichment struct {
	Transcript    string `json:"transcript,omitempty"`
	OCRText       string `json:"ocrText,omitempty"`
	MediaCaption  string `json:"mediaCaption,omitempty"`
	ImageAlt      string `json:"imageAlt,omitempty"`
	FileName      string `json:"fileName,omitempty"`
	AudioDuration string `json:"audioDuration,omitempty"`
}

func (e Enrichment) empty() bool {
	return e == Enrichment{}
}

// Map flattens the non-empty fields.
func (e Enrichment) Map() map[string]string {
	m := make(map[string]string)
	add := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	add("transcript", e.Transcript)
	add("ocrText", e.OCRText)
	add("mediaCaption", e.MediaCaption)
	add("imageAlt", e.ImageAlt)
	add("fileName", e.FileName)
	add("audioDuration", e.AudioDuration)
	return m
}

// classify picks the kind of a row by its media markers, strongest first.
func classify(row *goquery.Selection, text string) string {
	switch {
	case has(row, markAudio):
		return KindAudio
	case has(row, markSticker):
		return KindSticker
	case has(row, markImage):
		return KindImage
	case has(row, markDocument):
		return KindDocument
	case has(row, markVideo):
		return KindVideo
	case has(row, markCaption):
		return KindMediaCaption
	case text != "":
		return KindText
	default:
		return KindEmpty
	}
}

func has(row *goquery.Selection, sel string) bool {
	return row.Is(sel) || row.Find(sel).Length() > 0
}

// enrich extracts the extras of a kind. text is the row's own text, which for
// media kinds is the caption.
func enrich(row *goquery.Selection, kind, text, timestamp string) Enrichment {
	var e Enrichment
	switch kind {
	case KindAudio:
		e.AudioDuration = findDuration(row, timestamp)
		e.Transcript = transcript(row)
	case KindImage:
		e.MediaCaption = text
		e.ImageAlt = imageAlt(row)
		e.OCRText = normalize.CollapseText(row.Find(selImageText).First().Text())
	case KindSticker:
		e.ImageAlt = imageAlt(row)
	case KindDocument:
		e.FileName = fileName(row, text)
	case KindVideo:
		e.MediaCaption = text
		e.AudioDuration = findDuration(row, timestamp)
	case KindMediaCaption:
		caption := normalize.CollapseText(row.Find(markCaption).First().Text())
		if caption == "" {
			caption = text
		}
		e.MediaCaption = caption
	}
	return e
}

// synthesize builds display text for rows without their own text.
func synthesize(kind string, e Enrichment) string {
	withDuration := func(label string) string {
		if e.AudioDuration != "" {
			return label + " (" + e.AudioDuration + ")"
		}
		return label
	}
	switch kind {
	case KindAudio:
		label := withDuration("Audio")
		if e.Transcript != "" {
			return label + ": " + e.Transcript
		}
		return label
	case KindImage:
		if e.MediaCaption != "" {
			return e.MediaCaption
		}
		if e.ImageAlt != "" {
			return "Imagen: " + e.ImageAlt
		}
		return "Imagen"
	case KindSticker:
		return "Sticker"
	case KindDocument:
		if e.FileName != "" {
			return "Documento: " + e.FileName
		}
		return "Documento"
	case KindVideo:
		if e.MediaCaption != "" {
			return e.MediaCaption
		}
		return withDuration("Video")
	case KindMediaCaption:
		return e.MediaCaption
	}
	return ""
}

func isChrome(text string) bool {
	tok := normalize.NormalizeLookupToken(text)
	if tok == "" {
		return true
	}
	if _, ok := chromePhrases[tok]; ok {
		return true
	}
	return durationPattern.MatchString(tok)
}

func transcript(row *goquery.Selection) string {
	var parts []string
	seen := make(map[string]struct{})
	row.Find(selTranscript).Each(func(_ int, s *goquery.Selection) {
		t := normalize.CollapseText(s.Text())
		if t == "" {
			if label, ok := s.Attr("aria-label"); ok {
				t = normalize.CollapseText(label)
			}
		}
		if isChrome(t) {
			return
		}
		if _, dup := seen[t]; dup {
			return
		}
		seen[t] = struct{}{}
		parts = append(parts, t)
	})
	return strings.Join(parts, " ")
}

func findDuration(row *goquery.Selection, timestamp string) string {
	if d := normalize.CollapseText(row.Find(selDuration).First().Text()); durationPattern.MatchString(d) {
		return d
	}
	found := ""
	row.Find("span, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 || s.ParentsFiltered(selMsgMeta).Length() > 0 {
			return true
		}
		t := normalize.CollapseText(s.Text())
		if durationPattern.MatchString(t) && !strings.Contains(timestamp, t) {
			found = t
			return false
		}
		return true
	})
	return found
}

func imageAlt(row *goquery.Selection) string {
	alt := ""
	row.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, _ := s.Attr("alt")
		v = normalize.CollapseText(v)
		if v == "" || isChrome(v) || strings.EqualFold(v, "sticker") {
			return true
		}
		alt = v
		return false
	})
	return alt
}

func fileName(row *goquery.Selection, text string) string {
	for _, prefix := range []string{"Download ", "Descargar "} {
		if v, ok := row.Find(`[title^="` + prefix + `"]`).First().Attr("title"); ok {
			name := strings.TrimSpace(strings.TrimPrefix(v, prefix))
			name = strings.Trim(name, `"“”`)
			if name != "" {
				return name
			}
		}
	}
	if v := normalize.CollapseText(row.Find(selDocName).First().Text()); v != "" {
		return v
	}
	for _, line := range strings.Split(text, "\n") {
		if m := fileNamePattern.FindString(strings.TrimSpace(line)); m != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
