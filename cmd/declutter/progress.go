package main

import (
	"fmt"
	"io"
	"sync"

	"declutter/internal/engine"
	"declutter/internal/logging"
)

// progressPrinter renders engine events as a single updating terminal line.
// A nil printer drops everything.
type progressPrinter struct {
	out    io.Writer
	events chan engine.Event
	wg     sync.WaitGroup

	mu     sync.Mutex
	paused bool
	once   sync.Once
}

// startProgress returns nil when out is not a terminal or output is disabled.
func startProgress(out io.Writer, enabled bool) *progressPrinter {
	if !enabled || !logging.IsTerminal(out) {
		return nil
	}
	p := &progressPrinter{out: out, events: make(chan engine.Event, 64)}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Events is the channel to hand to the engine.
func (p *progressPrinter) Events() chan<- engine.Event {
	if p == nil {
		return nil
	}
	return p.events
}

// Pause clears the line and keeps draining events silently, so prompts can
// own the terminal.
func (p *progressPrinter) Pause() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.paused {
		fmt.Fprint(p.out, "\r\x1b[K")
	}
	p.paused = true
}

// Resume re-enables rendering after Pause.
func (p *progressPrinter) Resume() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// Stop must only be called once the engine can no longer emit.
func (p *progressPrinter) Stop() {
	if p == nil {
		return
	}
	p.once.Do(func() {
		close(p.events)
		p.wg.Wait()
	})
}

func (p *progressPrinter) loop() {
	defer p.wg.Done()
	for ev := range p.events {
		p.mu.Lock()
		if !p.paused {
			p.render(ev)
		}
		p.mu.Unlock()
	}
}

func (p *progressPrinter) render(ev engine.Event) {
	switch ev.Type {
	case engine.EventScanComplete:
		fmt.Fprintf(p.out, "\rFound %s\x1b[K", plural(ev.Total, "file", "files"))
	case engine.EventCategorizationProgress:
		fmt.Fprintf(p.out, "\rCategorizing %d/%d\x1b[K", ev.Done, ev.Total)
	case engine.EventMoveProgress:
		fmt.Fprintf(p.out, "\rMoving %d/%d\x1b[K", ev.Done, ev.Total)
	case engine.EventUndoProgress:
		fmt.Fprintf(p.out, "\rRestoring %d/%d\x1b[K", ev.Done, ev.Total)
	case engine.EventPlanReady, engine.EventDone:
		fmt.Fprint(p.out, "\r\x1b[K")
	}
}
