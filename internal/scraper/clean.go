package scraper

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	parenthetical = regexp.MustCompile(`^(.*?)\s*\(.*\)$`)
	leadingDigit  = regexp.MustCompile(`^\d`)
	dateOrTime    = regexp.MustCompile(`(?i)(\d{1,2}[:/.\-]\d{1,2}|\d\s*(am|pm)\b|\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\b)`)
	leadingDay    = regexp.MustCompile(`(?i)^(mon|tue|wed|thu|fri|sat|sun)(day|sday|nesday|rsday|urday)?\.?,?\s+(\d|(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d)`)
)

// venueWords mark listing text that describes the venue or the event rather than a performer.
var venueWords = map[string]bool{
	"venue": true, "venues": true, "location": true, "address": true,
	"ticket": true, "tickets": true, "buy": true, "sold": true, "out": true,
	"door": true, "doors": true, "show": true, "shows": true, "event": true, "events": true,
	"calendar": true, "upcoming": true, "past": true, "rsvp": true, "info": true, "ages": true,
}

// fillerWords may appear alongside venue words without making the text a performer name.
var fillerWords = map[string]bool{
	"at": true, "on": true, "now": true, "the": true, "all": true,
	"more": true, "open": true, "opens": true, "here": true, "am": true, "pm": true,
}

// CleanName collapses whitespace and drops a trailing parenthetical such as "(21+)" or "(Album Release)".
func CleanName(text string) string {
	cleaned := strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	cleaned = parenthetical.ReplaceAllString(cleaned, "$1")
	return strings.TrimSpace(cleaned)
}

// IsVenueInfo reports whether cleaned listing text is venue or schedule information instead of an artist.
//
// Dates, times and text made only of venue words are rejected; names that merely contain a
// weekday or a venue word ("Wednesday", "The Doors Experience") are kept.
func IsVenueInfo(text string) bool {
	if len(text) < 2 || leadingDay.MatchString(text) {
		return true
	}
	if leadingDigit.MatchString(text) && dateOrTime.MatchString(text) {
		return true
	}
	return onlyVenueWords(text)
}

func onlyVenueWords(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	found := false
	for _, w := range words {
		switch {
		case venueWords[w]:
			found = true
		case fillerWords[w], strings.IndexFunc(w, unicode.IsDigit) >= 0:
		default:
			return false
		}
	}
	return found
}

// CleanArtists cleans and filters raw listing text, dropping repeats while keeping first-seen order.
func CleanArtists(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	artists := make([]string, 0, len(raw))

	for _, text := range raw {
		name := CleanName(text)
		if name == "" || IsVenueInfo(name) || seen[name] {
			continue
		}
		seen[name] = true
		artists = append(artists, name)
	}
	return artists
}
