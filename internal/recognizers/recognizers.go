// ABOUTME: Free-text recognizers for commands, confirmations, and field validation
// ABOUTME: Turn routing and prompt validation both depend on these

package recognizers

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Command names produced by ParseCommand
const (
	CommandReset        = "resetbotchat"
	CommandCloseProject = "closeproject"
	CommandGetProject   = "getproject"
	CommandResearch     = "research"
	CommandPPT          = "ppt"
	CommandAppointment  = "appointment"
	CommandAgent        = "agent"
)

// Command is a recognized free-text command, with its argument when the
// command takes one.
type Command struct {
	Name string
	Arg  string
}

// ParseCommand recognizes the commands the bot accepts in free text.
// Matching is case-insensitive; closeproject and getproject require a
// numeric ticket id argument.
func ParseCommand(text string) (Command, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(text)))
	if len(fields) == 0 {
		return Command{}, false
	}

	switch fields[0] {
	case "/resetbotchat":
		return Command{Name: CommandReset}, true
	case CommandCloseProject, CommandGetProject:
		if len(fields) != 2 {
			return Command{}, false
		}
		if _, err := strconv.Atoi(fields[1]); err != nil {
			return Command{}, false
		}
		return Command{Name: fields[0], Arg: fields[1]}, true
	case CommandResearch, CommandPPT, CommandAppointment, CommandAgent:
		if len(fields) != 1 {
			return Command{}, false
		}
		return Command{Name: fields[0]}, true
	}
	return Command{}, false
}

var (
	yesWords = map[string]bool{
		"yes": true, "y": true, "yeah": true, "yep": true, "yup": true,
		"sure": true, "ok": true, "okay": true, "confirm": true, "correct": true,
	}
	noWords = map[string]bool{
		"no": true, "n": true, "nope": true, "nah": true,
		"cancel": true, "negative": true, "incorrect": true,
	}
)

func normalizeWord(text string) string {
	return strings.Trim(strings.ToLower(strings.TrimSpace(text)), ".!,")
}

// IsYes reports whether text reads as an affirmative confirmation
func IsYes(text string) bool {
	return yesWords[normalizeWord(text)]
}

// IsNo reports whether text reads as a negative confirmation
func IsNo(text string) bool {
	return noWords[normalizeWord(text)]
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidEmail reports whether text is a plausible email address
func ValidEmail(text string) bool {
	return emailPattern.MatchString(strings.TrimSpace(text))
}

// IsValidDescription reports whether a project description is long enough.
// The bound is strict: a description of exactly minLength characters is
// rejected, minLength+1 is accepted.
func IsValidDescription(text string, minLength int) bool {
	return utf8.RuneCountInString(strings.TrimSpace(text)) > minLength
}
