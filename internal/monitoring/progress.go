package monitoring

import (
	"fmt"
	"io"
	"strings"
)

const progressWidth = 20

// ProgressBar renders "[=====     ] 25%" style progress for a pass over a
// known number of steps. It redraws in place with a carriage return and
// ends the line once the stop value is reached.
type ProgressBar struct {
	w     io.Writer
	start int
	stop  int
	state int
}

// NewProgressBar returns a bar counting from start to stop. A nil writer
// yields a bar that draws nothing.
func NewProgressBar(w io.Writer, start, stop int) *ProgressBar {
	if w == nil {
		w = io.Discard
	}
	return &ProgressBar{w: w, start: start, stop: stop, state: start}
}

// Reset moves the bar back to val without drawing.
func (p *ProgressBar) Reset(val int) { p.state = val }

// Show advances the bar by increase steps, clamped to stop, and redraws it.
func (p *ProgressBar) Show(increase int) {
	p.state += increase
	if p.state > p.stop {
		p.state = p.stop
	}

	pos := 1.0
	if span := p.stop - p.start; span > 0 {
		pos = float64(p.state-p.start) / float64(span)
	}
	filled := int(progressWidth * pos)
	fmt.Fprintf(p.w, "\r[%-*s] %d%%", progressWidth, strings.Repeat("=", filled), int(100*pos))
	if p.state == p.stop {
		fmt.Fprint(p.w, "\n")
	}
}

// Done reports whether the bar reached its stop value.
func (p *ProgressBar) Done() bool { return p.state >= p.stop }
