// Package command parses bot commands out of raw message text. Parsing is
// total: any input either yields a command or nil, where nil means "treat the
// whole message as free-form chat".
package command

import (
	"strings"
	"unicode"
)

// Kind identifies a recognized command word.
type Kind int

const (
	// Chat resets the conversation around a new topic.
	Chat Kind = iota
	// Ask poses a one-shot question outside the conversation.
	Ask
	// Define asks for a one-shot word definition.
	Define
	// Cases asks for the grammatical cases of a word.
	Cases
	// Example asks for example sentences using a word.
	Example
	// Undo rolls back the most recent exchange. Takes no argument.
	Undo
)

// Command is a parsed command and, for argument-bearing kinds, everything
// after the command word with leading whitespace stripped. Embedded
// whitespace and newlines are preserved.
type Command struct {
	Kind Kind
	Arg  string
}

var argWords = map[string]Kind{
	"chat":  Chat,
	"ask":   Ask,
	"def":   Define,
	"cases": Cases,
	"ex":    Example,
}

// Parse maps raw message text to a command. The grammar is "!<word>" for
// no-argument commands and "!<word> <remainder>" for the rest. Unrecognized
// words, missing arguments, or text without a leading marker all yield nil.
func Parse(text string) *Command {
	rest, ok := strings.CutPrefix(text, "!")
	if !ok || rest == "" {
		return nil
	}

	word := rest
	arg := ""
	if idx := strings.IndexFunc(rest, unicode.IsSpace); idx >= 0 {
		word = rest[:idx]
		arg = strings.TrimLeftFunc(rest[idx:], unicode.IsSpace)
	}
	if !isWord(word) {
		return nil
	}

	if kind, ok := argWords[word]; ok {
		if arg == "" {
			return nil
		}
		return &Command{Kind: kind, Arg: arg}
	}
	if word == "undo" && arg == "" {
		return &Command{Kind: Undo}
	}
	return nil
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
