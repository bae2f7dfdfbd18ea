// Package clarify decides whether a message is too vague about time to act on, and turns
// the message plus a picked time slot into a creation request.
package clarify

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/fastygo/taskpilot/domain"
	"github.com/fastygo/taskpilot/pkg/clock"
)

// fingerprintLen keeps "time_HH:MM_<fp>" well inside the 64 byte callback limit of chat
// platforms.
const fingerprintLen = 16

// vaguePhrases are stripped in this order; "later today" must go before "later".
var vaguePhrases = []*regexp.Regexp{
	regexp.MustCompile(`\bsometime today\b`),
	regexp.MustCompile(`\blater today\b`),
	regexp.MustCompile(`\blater\b`),
	regexp.MustCompile(`\bsoon\b`),
	regexp.MustCompile(`\bin a bit\b`),
	regexp.MustCompile(`\bin a while\b`),
	regexp.MustCompile(`\bthis afternoon\b`),
	regexp.MustCompile(`\bthis evening\b`),
}

var (
	todayRe         = regexp.MustCompile(`\btoday\b`)
	clockFollowerRe = regexp.MustCompile(`^\s+(at|\d)`)
)

type verbPattern struct {
	re     *regexp.Regexp
	action string
}

var verbPatterns = []verbPattern{
	{regexp.MustCompile(`^(pay|send money to|transfer to)\s+(.+)`), "Pay"},
	{regexp.MustCompile(`^(call|phone|ring)\s+(.+)`), "Call"},
	{regexp.MustCompile(`^(email|send email to|write to)\s+(.+)`), "Email"},
	{regexp.MustCompile(`^(meet|meeting with)\s+(.+)`), "Meet with"},
	{regexp.MustCompile(`^(buy|purchase|get)\s+(.+)`), "Buy"},
	{regexp.MustCompile(`^(remind me to|reminder to)\s+(.+)`), "Reminder"},
	{regexp.MustCompile(`^(finish|complete|do)\s+(.+)`), "Finish"},
}

// WellnessKeywords mark self-care tasks. The wellness sweeper uses the same list.
var WellnessKeywords = []string{"break", "water", "exercise", "walk", "stretch", "rest", "breathe", "drink", "hydrate"}

// TimeSlot is one offered answer to a clarification question.
type TimeSlot struct {
	Label string
	Value string
}

var timeSlots = []TimeSlot{
	{"9:00 AM", "09:00"},
	{"10:00 AM", "10:00"},
	{"11:00 AM", "11:00"},
	{"12:00 PM", "12:00"},
	{"1:00 PM", "13:00"},
	{"2:00 PM", "14:00"},
	{"3:00 PM", "15:00"},
	{"4:00 PM", "16:00"},
	{"5:00 PM", "17:00"},
	{"6:00 PM", "18:00"},
	{"7:00 PM", "19:00"},
	{"8:00 PM", "20:00"},
}

// Resolver is stateless apart from the injected clock and location.
type Resolver struct {
	clock    clock.Clock
	location *time.Location
}

// NewResolver builds a Resolver resolving wall-clock choices in loc.
func NewResolver(clk clock.Clock, loc *time.Location) *Resolver {
	if clk == nil {
		clk = clock.Real{}
	}
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{
		clock:    clk,
		location: loc,
	}
}

// NeedsClarification reports whether text names a vague time instead of a clock time.
func (r *Resolver) NeedsClarification(text string) bool {
	lower := strings.ToLower(text)
	for _, re := range vaguePhrases {
		if re.MatchString(lower) {
			return true
		}
	}
	return len(bareTodays(lower)) > 0
}

// ExtractActionAndObject strips vague time phrases and splits the rest into a verb and
// its object.
func (r *Resolver) ExtractActionAndObject(text string) (string, string) {
	cleaned := stripVague(strings.ToLower(strings.TrimSpace(text)))

	for _, p := range verbPatterns {
		if m := p.re.FindStringSubmatch(cleaned); m != nil {
			return p.action, strings.TrimSpace(m[2])
		}
	}

	words := strings.Fields(cleaned)
	if len(words) >= 2 {
		return capitalize(words[0]), strings.Join(words[1:], " ")
	}
	return "Task", cleaned
}

// BuildTitle renders a display title for the extracted pair.
func (r *Resolver) BuildTitle(action, object string) string {
	object = strings.TrimSpace(object)
	if object == "" {
		return action
	}
	switch strings.ToLower(action) {
	case "pay", "call", "email":
		// Casers carry state and must not be shared between goroutines.
		return fmt.Sprintf("%s %s", action, cases.Title(language.Und).String(object))
	default:
		return fmt.Sprintf("%s %s", action, object)
	}
}

// Preview is the title the task would get, used in the clarification question.
func (r *Resolver) Preview(text string) string {
	return r.BuildTitle(r.ExtractActionAndObject(text))
}

// ResolveWithTime turns the original message and a chosen "HH:MM" into a creation
// request due (and reminding) today at that time.
func (r *Resolver) ResolveWithTime(text, chosen string) (domain.CreationRequest, error) {
	at, err := r.At(chosen)
	if err != nil {
		return domain.CreationRequest{}, err
	}

	action, object := r.ExtractActionAndObject(text)
	stamp := at.Format("2006-01-02 15:04:05")

	return domain.CreationRequest{
		Title:      r.BuildTitle(action, object),
		DueDate:    stamp,
		ReminderAt: stamp,
		Priority:   string(priorityFor(action, text)),
	}, nil
}

// At returns today's instant for a "HH:MM" choice in the resolver's location.
func (r *Resolver) At(chosen string) (time.Time, error) {
	parsed, err := time.Parse("15:04", strings.TrimSpace(chosen))
	if err != nil {
		return time.Time{}, domain.WrapError(domain.ErrCodeInvalid, fmt.Sprintf("time choice %q", chosen), domain.ErrInvalidTime)
	}
	now := r.clock.Now().In(r.location)
	return time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, r.location), nil
}

// TimeSlots lists the offered choices in display order.
func (r *Resolver) TimeSlots() []TimeSlot {
	out := make([]TimeSlot, len(timeSlots))
	copy(out, timeSlots)
	return out
}

// Fingerprint is a short deterministic digest of text.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}

// EncodeChoice builds the callback payload for a slot.
func EncodeChoice(value, fingerprint string) string {
	return fmt.Sprintf("time_%s_%s", value, fingerprint)
}

// DecodeChoice parses a payload built by EncodeChoice.
func DecodeChoice(data string) (value, fingerprint string, err error) {
	parts := strings.Split(data, "_")
	if len(parts) != 3 || parts[0] != "time" || parts[1] == "" || parts[2] == "" {
		return "", "", domain.WrapError(domain.ErrCodeInvalid, fmt.Sprintf("callback %q", data), domain.ErrInvalidPayload)
	}
	return parts[1], parts[2], nil
}

// Keywords matches whole words case-insensitively, so "break" does not hit "Breakfast".
type Keywords []*regexp.Regexp

// NewKeywords compiles one word-boundary pattern per non-blank keyword.
func NewKeywords(words []string) Keywords {
	out := make(Keywords, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(w)+`\b`))
		}
	}
	return out
}

// Match reports whether any keyword occurs in text as a whole word.
func (k Keywords) Match(text string) bool {
	for _, re := range k {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

var wellnessWords = NewKeywords(WellnessKeywords)

// IsWellness reports whether text mentions a wellness keyword.
func IsWellness(text string) bool {
	return wellnessWords.Match(text)
}

func priorityFor(action, text string) domain.Priority {
	switch {
	case strings.EqualFold(action, "pay"):
		return domain.PriorityHigh
	case IsWellness(text):
		return domain.PriorityLow
	default:
		return domain.PriorityMedium
	}
}

// bareTodays returns the index pairs of "today" not followed by "at" or a digit.
func bareTodays(lower string) [][]int {
	var out [][]int
	for _, loc := range todayRe.FindAllStringIndex(lower, -1) {
		if !clockFollowerRe.MatchString(lower[loc[1]:]) {
			out = append(out, loc)
		}
	}
	return out
}

func stripVague(lower string) string {
	for _, re := range vaguePhrases {
		lower = re.ReplaceAllString(lower, "")
	}
	todays := bareTodays(lower)
	for i := len(todays) - 1; i >= 0; i-- {
		lower = lower[:todays[i][0]] + lower[todays[i][1]:]
	}
	return strings.Join(strings.Fields(lower), " ")
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
