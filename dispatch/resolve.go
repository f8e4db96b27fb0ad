package dispatch

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/samber/lo"

	"github.com/shurvir/hailo-robot/actuator"
)

// Kind is the flow an instruction resolves to
type Kind int

const (
	KindChat Kind = iota
	KindAction
	KindPickUp
	KindDropOff
	KindDescribe
	KindSnapshot
	KindVideo
	KindFind
	KindTrack
	KindStop
)

var kindNames = map[Kind]string{
	KindChat:     "chat",
	KindAction:   "action",
	KindPickUp:   "pick_up",
	KindDropOff:  "drop_off",
	KindDescribe: "describe",
	KindSnapshot: "snapshot",
	KindVideo:    "video",
	KindFind:     "find",
	KindTrack:    "track",
	KindStop:     "stop",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Instruction is a resolved user instruction
type Instruction struct {
	Kind Kind
	// Command is the normalized form, e.g. "pick_up_red_ball"
	Command  string
	Action   actuator.Action
	Object   string
	Location string
	TrackID  int
	// Text is the raw input, forwarded as is for chat
	Text string
}

var keywords = map[string]Kind{
	"describe_scene":    KindDescribe,
	"describe":          KindDescribe,
	"what_is_happening": KindDescribe,
	"snapshot":          KindSnapshot,
	"take_a_picture":    KindSnapshot,
	"what_do_you_see":   KindSnapshot,
	"video":             KindVideo,
	"show_video":        KindVideo,
	"record_video":      KindVideo,
	"stop_tracking":     KindStop,
	"stop":              KindStop,
}

// Normalize lowercases text, strips trailing punctuation from every word and
// joins the words with underscores
func Normalize(text string) string {
	tokens := lo.FilterMap(strings.Fields(strings.ToLower(text)), func(tok string, _ int) (string, bool) {
		tok = strings.TrimRightFunc(tok, unicode.IsPunct)
		return tok, tok != ""
	})
	return strings.Join(tokens, "_")
}

// Resolve maps free text onto an instruction. The first matching rule wins:
// an action from vocabulary, pick_up_<object>, drop_off_<location>, the fixed
// keywords, and finally chat.
func Resolve(text string, vocabulary []actuator.Action) Instruction {
	command := Normalize(text)
	ins := Instruction{Kind: KindChat, Command: command, Text: text}
	if command == "" {
		return ins
	}

	if lo.Contains(vocabulary, actuator.Action(command)) {
		ins.Kind = KindAction
		ins.Action = actuator.Action(command)
		return ins
	}

	parts := strings.Split(command, "_")
	if object, ok := suffix(parts, "pick", "up"); ok {
		ins.Kind = KindPickUp
		ins.Object = object
		return ins
	}
	if location, ok := suffix(parts, "drop", "off"); ok {
		ins.Kind = KindDropOff
		ins.Location = location
		return ins
	}

	if kind, ok := keywords[command]; ok {
		ins.Kind = kind
		return ins
	}
	if object, ok := suffix(parts, "find"); ok {
		ins.Kind = KindFind
		ins.Object = object
		return ins
	}
	for _, verb := range []string{"track", "follow"} {
		if len(parts) < 2 || parts[0] != verb {
			continue
		}
		object, id := splitTrackID(parts[1:])
		if object == "" {
			continue
		}
		ins.Kind = KindTrack
		ins.Object = object
		ins.TrackID = id
		return ins
	}
	return ins
}

// suffix reports whether parts starts with prefix followed by at least one
// more word, and returns the remaining words joined by spaces
func suffix(parts []string, prefix ...string) (string, bool) {
	if len(parts) <= len(prefix) {
		return "", false
	}
	for i, p := range prefix {
		if parts[i] != p {
			return "", false
		}
	}
	rest := withoutArticle(lo.Compact(parts[len(prefix):]))
	if len(rest) == 0 {
		return "", false
	}
	return strings.Join(rest, " "), true
}

// withoutArticle drops a leading "the", "a" or "an" when a name follows it
func withoutArticle(words []string) []string {
	if len(words) > 1 && lo.Contains([]string{"the", "a", "an"}, words[0]) {
		return words[1:]
	}
	return words
}

// splitTrackID splits an optional trailing "#<id>" word from the object name
func splitTrackID(rest []string) (string, int) {
	rest = withoutArticle(lo.Compact(rest))
	if len(rest) == 0 {
		return "", 0
	}
	last := rest[len(rest)-1]
	if strings.HasPrefix(last, "#") {
		if id, err := strconv.Atoi(last[1:]); err == nil && id > 0 {
			return strings.Join(rest[:len(rest)-1], " "), id
		}
	}
	return strings.Join(rest, " "), 0
}
