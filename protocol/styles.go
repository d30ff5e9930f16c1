package protocol

import (
	"slices"
	"strings"
)

// OptionToken is an opaque feature flag sent in a turn's optionsSets.
type OptionToken string

// OptionSet is an ordered set of option tokens.
type OptionSet []OptionToken

// Union returns s followed by the tokens of other that s does not already hold.
func (s OptionSet) Union(other ...OptionToken) OptionSet {
	out := slices.Clone(s)
	for _, tok := range other {
		if !slices.Contains(out, tok) {
			out = append(out, tok)
		}
	}
	return out
}

// Strings returns the tokens as plain strings in order.
func (s OptionSet) Strings() []string {
	out := make([]string, len(s))
	for i, tok := range s {
		out[i] = string(tok)
	}
	return out
}

// OptionNoSearch disables web search for a chat turn.
const OptionNoSearch OptionToken = "nosearchall"

var (
	chatOptions = OptionSet{
		"nlu_direct_response_filter",
		"deepleo",
		"disable_emoji_spoken_text",
		"responsible_ai_policy_235",
		"enablemm",
		"dv3sugg",
	}
	composeOptions = OptionSet{
		"nlu_direct_response_filter",
		"deepleo",
		"enable_debug_commands",
		"disable_emoji_spoken_text",
		"responsible_ai_policy_235",
		"enablemm",
		"h3imaginative",
		"nocache",
		"nosugg",
	}
)

// ConversationStyle is one of the closed set of conversation presets.
type ConversationStyle int

// Conversation styles.
const (
	StyleCreative ConversationStyle = iota + 1
	StyleBalanced
	StylePrecise
)

type styleInfo struct {
	name    string
	display string
	tokens  OptionSet
}

var styles = map[ConversationStyle]styleInfo{
	StyleCreative: {"creative", "Creative", OptionSet{"h3imaginative", "clgalileo", "gencontentv3"}},
	StyleBalanced: {"balanced", "Balanced", OptionSet{"galileo"}},
	StylePrecise:  {"precise", "Precise", OptionSet{"h3precise", "clgalileo"}},
}

var stylesByName = map[string]ConversationStyle{
	"creative": StyleCreative,
	"balanced": StyleBalanced,
	"precise":  StylePrecise,
}

// ParseStyle maps a case-insensitive style name to its preset.
func ParseStyle(name string) (ConversationStyle, error) {
	style, ok := stylesByName[normalize(name)]
	if !ok {
		return 0, &UnknownStyleError{Kind: "style", Value: name}
	}
	return style, nil
}

// String returns the lowercase style name.
func (s ConversationStyle) String() string {
	if info, ok := styles[s]; ok {
		return info.name
	}
	return "unknown"
}

// DisplayName is the capitalised name the service expects in the tone field.
func (s ConversationStyle) DisplayName() string {
	return styles[s].display
}

// Tokens returns the style's option tokens in order.
func (s ConversationStyle) Tokens() OptionSet {
	return slices.Clone(styles[s].tokens)
}

// Valid reports whether s is a known preset.
func (s ConversationStyle) Valid() bool {
	_, ok := styles[s]
	return ok
}

// Tone is either a preset compose tone or a free-form custom tone.
type Tone struct {
	preset PresetTone
	custom string
}

// PresetTone enumerates the compose tone presets.
type PresetTone int

// Compose tone presets.
const (
	ToneProfessional PresetTone = iota + 1
	ToneCasual
	ToneEnthusiastic
	ToneInformational
	ToneFunny
)

var toneNames = map[PresetTone]string{
	ToneProfessional:  "professional",
	ToneCasual:        "casual",
	ToneEnthusiastic:  "enthusiastic",
	ToneInformational: "informational",
	ToneFunny:         "funny",
}

// Preset wraps a tone preset.
func Preset(p PresetTone) Tone { return Tone{preset: p} }

// CustomTone wraps a free-form tone description.
func CustomTone(s string) Tone { return Tone{custom: s} }

// ParseTone returns the preset whose name matches s, or a custom tone carrying s verbatim.
func ParseTone(s string) Tone {
	key := normalize(s)
	for p, name := range toneNames {
		if name == key {
			return Preset(p)
		}
	}
	return CustomTone(s)
}

// IsCustom reports whether the tone is free-form.
func (t Tone) IsCustom() bool { return t.preset == 0 }

// String returns the token interpolated into compose instructions.
func (t Tone) String() string {
	if t.IsCustom() {
		return t.custom
	}
	return toneNames[t.preset]
}

// ComposeFormat enumerates the compose output formats.
type ComposeFormat int

// Compose formats.
const (
	FormatParagraph ComposeFormat = iota + 1
	FormatEmail
	FormatBlogPost
	FormatIdeas
)

var formatNames = map[ComposeFormat]string{
	FormatParagraph: "paragraph",
	FormatEmail:     "email",
	FormatBlogPost:  "blog post",
	FormatIdeas:     "ideas",
}

var formatsByName = map[string]ComposeFormat{
	"paragraph": FormatParagraph,
	"email":     FormatEmail,
	"blog post": FormatBlogPost,
	"blogpost":  FormatBlogPost,
	"blog_post": FormatBlogPost,
	"ideas":     FormatIdeas,
}

// ParseFormat maps a case-insensitive format name to its preset.
func ParseFormat(name string) (ComposeFormat, error) {
	f, ok := formatsByName[normalize(name)]
	if !ok {
		return 0, &UnknownStyleError{Kind: "format", Value: name}
	}
	return f, nil
}

func (f ComposeFormat) String() string { return formatNames[f] }

// ComposeLength enumerates the compose output lengths.
type ComposeLength int

// Compose lengths.
const (
	LengthShort ComposeLength = iota + 1
	LengthMedium
	LengthLong
)

var lengthNames = map[ComposeLength]string{
	LengthShort:  "short",
	LengthMedium: "medium",
	LengthLong:   "long",
}

// ParseLength maps a case-insensitive length name to its preset.
func ParseLength(name string) (ComposeLength, error) {
	key := normalize(name)
	for l, n := range lengthNames {
		if n == key {
			return l, nil
		}
	}
	return 0, &UnknownStyleError{Kind: "length", Value: name}
}

func (l ComposeLength) String() string { return lengthNames[l] }

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
