package command

import (
	"regexp"
	"strings"
)

var (
	unsetPattern = regexp.MustCompile(`^unset\s+.+\s+to\s+.+`)
	setPattern   = regexp.MustCompile(`^set\s+.+\s+to\s+.+`)
	toToken      = regexp.MustCompile(`(?i)\s+to\s+`)
	setToken     = regexp.MustCompile(`(?i)set\s+`)
)

// matcher pairs a predicate over the lower-cased text with a constructor
// over the original text.
type matcher struct {
	kind  Kind
	match func(lower string) bool
	build func(c *Classifier, channel, text string) Command
}

// Order matters: unset must be tried before set.
var matchers = []matcher{
	{
		kind:  KindHelp,
		match: func(s string) bool { return s == "help" },
		build: func(c *Classifier, channel, _ string) Command { return Help{channel: channel} },
	},
	{
		kind: KindStatus,
		match: func(s string) bool {
			switch s {
			case "status", "how are you?", "healthcheck", "health-check":
				return true
			}
			return false
		},
		build: func(c *Classifier, channel, _ string) Command {
			return Status{channel: channel, status: c.status}
		},
	},
	{
		kind:  KindUnset,
		match: unsetPattern.MatchString,
		build: func(c *Classifier, channel, text string) Command {
			return UnsetChannel{Binding: parseBinding(text), channel: channel, bindings: c.bindings}
		},
	},
	{
		kind:  KindSet,
		match: setPattern.MatchString,
		build: func(c *Classifier, channel, text string) Command {
			return SetChannel{Binding: parseBinding(text), channel: channel, bindings: c.bindings}
		},
	},
}

// Classifier maps chat text to commands. It is stateless apart from the
// collaborators it hands to the commands it builds.
type Classifier struct {
	bindings Bindings
	status   StatusComposer
}

func NewClassifier(bindings Bindings, status StatusComposer) *Classifier {
	return &Classifier{bindings: bindings, status: status}
}

// Classify never fails: unmatched text becomes Invalid with the text as given.
func (c *Classifier) Classify(channel, raw string) Command {
	text := strings.TrimSpace(raw)
	lower := strings.ToLower(text)
	for _, m := range matchers {
		if m.match(lower) {
			return m.build(c, channel, text)
		}
	}
	return Invalid{channel: channel, Text: raw}
}

func parseBinding(text string) Binding {
	rel, id, label := SplitBotMessage(text)
	return Binding{ChannelID: id, Label: label, Relevance: rel}
}

// SplitBotMessage extracts (relevance, channelID, label) from
// "set <#C123|ops> to critical" style text.
//
// The text is split on the first standalone "to"; the relevance is the
// upper-cased remainder. The label follows the "set " token. The channel id
// is taken from Slack's <#ID|name> mention syntax; a plain label without '#'
// is returned unchanged.
func SplitBotMessage(text string) (relevance, channelID, label string) {
	text = strings.TrimSpace(text)

	clause := text
	if loc := toToken.FindStringIndex(text); loc != nil {
		clause = text[:loc[0]]
		relevance = strings.ToUpper(strings.TrimSpace(text[loc[1]:]))
	}

	label = strings.TrimSpace(clause)
	if loc := setToken.FindStringIndex(clause); loc != nil {
		label = strings.TrimSpace(clause[loc[1]:])
	}

	channelID = label
	if _, after, ok := strings.Cut(channelID, "#"); ok {
		channelID = after
	}
	channelID, _, _ = strings.Cut(channelID, "|")
	channelID = strings.TrimSuffix(channelID, ">")
	return relevance, channelID, label
}
