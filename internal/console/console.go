// Package console is a line-oriented terminal front end for the advisor.
//
// Plain lines are asked as typed questions. A bare number asks the ready
// question with that number from the /presets menu. Lines starting with a
// slash are commands; /help lists them.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MrWong99/krishi/internal/advisor"
)

// Advisor is the part of [advisor.Pipeline] the console drives.
type Advisor interface {
	SubmitText(ctx context.Context, text string, source advisor.Source) (advisor.Turn, error)
	SubmitVoice(ctx context.Context) (advisor.Turn, error)
	History() []advisor.Turn
	Clear()
	State() advisor.State
	PlaybackState() advisor.PlaybackState
}

var _ Advisor = (*advisor.Pipeline)(nil)

const banner = "🌾 Krishi Sahayak - Your Digital Farm Assistant\nAapka Digital Agriculture Advisor\n"

const helpText = `Kaise use kare:
  1. 🎤 Voice se: /speak likho aur apna question bolo
  2. ⌨️  Text se: apna question type karke Enter dabao
  3. 📋 Ready questions: /presets se number dekho, phir sirf number likho

Main topics:
  - Crop diseases aur unka treatment
  - Fertilizer aur manure ki information
  - Weather ke according sowing
  - Animal husbandry advice
  - Horticulture methods

Example Questions:
  - "Mere tomato plants me problem hai"
  - "Wheat ke liye best fertilizer konsa hai"
  - "Monsoon me kya crop lagaun"

Commands: /speak /presets /history /clear /state /help /quit
`

const prompt = "> "

// Console reads questions from in and writes answers to out.
type Console struct {
	advisor Advisor
	presets *advisor.PresetStore
	in      io.Reader
	out     io.Writer
}

// New returns a Console. presets may be nil, in which case the built-in
// question set is used.
func New(a Advisor, presets *advisor.PresetStore, in io.Reader, out io.Writer) *Console {
	if presets == nil {
		presets = advisor.NewPresetStore(nil)
	}
	return &Console{advisor: a, presets: presets, in: in, out: out}
}

// Run serves lines until /quit, end of input, or ctx is done. It returns
// nil in all three cases and a non-nil error only if reading fails.
//
// The reader goroutine may stay blocked on in after ctx ends; for stdin
// that lasts until the process exits.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
		close(lines)
	}()

	fmt.Fprint(c.out, banner)
	fmt.Fprintln(c.out, "Madad ke liye /help likho.")
	for {
		fmt.Fprint(c.out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				if err := <-readErr; err != nil {
					return fmt.Errorf("console: read input: %w", err)
				}
				return nil
			}
			if quit := c.Handle(ctx, line); quit {
				return nil
			}
		}
	}
}

// Handle executes one input line and reports whether the user asked to quit.
func (c *Console) Handle(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	if !strings.HasPrefix(line, "/") {
		if n, err := strconv.Atoi(line); err == nil {
			c.askPreset(ctx, n)
			return false
		}
		c.show(c.advisor.SubmitText(ctx, line, advisor.SourceText))
		return false
	}

	cmd, _, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "/quit", "/exit":
		fmt.Fprintln(c.out, "Dhanyavaad! Khush raho, khet hara bhara rahe. 🌾")
		return true
	case "/help":
		fmt.Fprint(c.out, helpText)
	case "/speak":
		fmt.Fprintln(c.out, "🎤 Listening...")
		c.show(c.advisor.SubmitVoice(ctx))
	case "/presets":
		c.printPresets()
	case "/history":
		c.printHistory()
	case "/clear":
		c.advisor.Clear()
		fmt.Fprintln(c.out, "🗑️  Chat clear ho gaya.")
	case "/state":
		fmt.Fprintf(c.out, "state: %s, playback: %s\n", c.advisor.State(), c.advisor.PlaybackState())
	default:
		fmt.Fprintf(c.out, "Unknown command %q. /help dekho.\n", cmd)
	}
	return false
}

func (c *Console) askPreset(ctx context.Context, n int) {
	flat := c.presets.Get().Flat()
	if n < 1 || n > len(flat) {
		fmt.Fprintf(c.out, "Question number 1 se %d ke beech hona chahiye. /presets dekho.\n", len(flat))
		return
	}
	fmt.Fprintf(c.out, "📋 %s\n", flat[n-1])
	c.show(c.advisor.SubmitText(ctx, flat[n-1], advisor.SourcePreset))
}

func (c *Console) show(t advisor.Turn, err error) {
	switch {
	case errors.Is(err, advisor.ErrBusy):
		fmt.Fprintln(c.out, "⏳ Abhi ek question chal raha hai, thoda ruko.")
		return
	case err != nil:
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if t.Utterance != "" && t.Source == advisor.SourceVoice {
		fmt.Fprintf(c.out, "👤 You: %s\n", t.Utterance)
	}
	fmt.Fprintf(c.out, "🤖 Assistant: %s\n", t.Response)
}

func (c *Console) printPresets() {
	n := 1
	for _, cat := range c.presets.Get() {
		fmt.Fprintf(c.out, "%s:\n", cat.Name)
		for _, q := range cat.Questions {
			fmt.Fprintf(c.out, "  %2d. %s\n", n, q)
			n++
		}
	}
}

func (c *Console) printHistory() {
	turns := c.advisor.History()
	if len(turns) == 0 {
		fmt.Fprintln(c.out, "Abhi tak koi baat nahi hui.")
		return
	}
	for _, t := range turns {
		user := t.Utterance
		if user == "" {
			user = "(awaaz samajh nahi aayi)"
		}
		fmt.Fprintf(c.out, "👤 You: %s\n🤖 Assistant: %s\n---\n", user, t.Response)
	}
}
