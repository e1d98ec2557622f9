package resolve

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/okian/earworms/internal/domain/model"
)

// SkipEscalator skips every unmatched track. Used in non-interactive runs.
type SkipEscalator struct{}

// Escalate implements Escalator.
func (SkipEscalator) Escalate(context.Context, model.TrackKey) (Decision, error) {
	return Decision{Action: Skip}, nil
}

// ConsoleEscalator asks the operator on a terminal. An empty line retries
// the current key, "artist,title" substitutes a new one, and "skip" or an
// interrupt skips the track. Anything else is rejected and asked again.
type ConsoleEscalator struct {
	in  io.Reader
	out io.Writer

	start     sync.Once
	lines     chan string
	interrupt chan struct{}
	prompting atomic.Bool

	mu      sync.Mutex
	abandon context.CancelFunc
}

// NewConsoleEscalator reads answers from in and writes prompts to out.
func NewConsoleEscalator(in io.Reader, out io.Writer) *ConsoleEscalator {
	return &ConsoleEscalator{
		in:        in,
		out:       out,
		lines:     make(chan string),
		interrupt: make(chan struct{}, 1),
	}
}

// Track implements TrackScope.
func (c *ConsoleEscalator) Track(ctx context.Context) (context.Context, func()) {
	tctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.abandon = cancel
	c.mu.Unlock()
	return tctx, func() {
		c.mu.Lock()
		c.abandon = nil
		c.mu.Unlock()
		cancel()
	}
}

// Interrupt skips the track being escalated: the open prompt, or inside a
// Track scope also the search for the operator's answer. It reports false
// when no track is being escalated, leaving the caller to treat the signal
// normally.
func (c *ConsoleEscalator) Interrupt() bool {
	c.mu.Lock()
	abandon := c.abandon
	c.mu.Unlock()
	if abandon != nil {
		abandon()
		fmt.Fprintln(c.out, "\nSkipped this track.")
		return true
	}

	if !c.prompting.Load() {
		return false
	}
	select {
	case c.interrupt <- struct{}{}:
	default:
	}
	return true
}

// Escalate implements Escalator.
func (c *ConsoleEscalator) Escalate(ctx context.Context, key model.TrackKey) (Decision, error) {
	c.start.Do(func() { go c.read() })

	select {
	case <-c.interrupt:
	default:
	}
	c.prompting.Store(true)
	defer c.prompting.Store(false)

	fmt.Fprintf(c.out, "Not found: `%s` - `%s`\n", key.Artist, key.Title)
	for {
		fmt.Fprintf(c.out, "Provide alternative as 'artist,title', press ENTER to search again, or type 'skip' (Ctrl+C) to skip.\n[Current: %s, %s]: ", key.Artist, key.Title)

		select {
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		case <-c.interrupt:
			fmt.Fprintln(c.out, "\nSkipped this track.")
			return Decision{Action: Skip}, nil
		case line, ok := <-c.lines:
			if !ok {
				fmt.Fprintln(c.out, "\nNo more input, skipping.")
				return Decision{Action: Skip}, nil
			}
			if dec, valid := parseAnswer(line); valid {
				return dec, nil
			}
			fmt.Fprintln(c.out, "Invalid format. Provide as: artist,title")
		}
	}
}

func (c *ConsoleEscalator) read() {
	defer close(c.lines)
	sc := bufio.NewScanner(c.in)
	for sc.Scan() {
		c.lines <- sc.Text()
	}
}

func parseAnswer(line string) (Decision, bool) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return Decision{Action: Retry}, true
	case strings.EqualFold(line, "skip"):
		return Decision{Action: Skip}, true
	}
	parts := strings.Split(line, ",")
	if len(parts) != 2 {
		return Decision{}, false
	}
	return Decision{
		Action:      Substitute,
		Replacement: model.TrackKey{Artist: strings.TrimSpace(parts[0]), Title: strings.TrimSpace(parts[1])},
	}, true
}
