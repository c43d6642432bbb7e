package events

// Buffer collects events emitted during a state transition so they can be
// released only after the transition commits. Discarding the buffer drops them.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Len reports the number of buffered events.
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pending)
}

// Events returns the buffered events in emission order.
func (b *Buffer) Events() []Event {
	if b == nil {
		return nil
	}
	out := make([]Event, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush forwards every buffered event to target and resets the buffer.
func (b *Buffer) Flush(target Emitter) {
	if b == nil {
		return
	}
	pending := b.pending
	b.pending = nil
	if target == nil {
		return
	}
	for _, evt := range pending {
		target.Emit(evt)
	}
}

// Discard drops all buffered events.
func (b *Buffer) Discard() {
	if b == nil {
		return
	}
	b.pending = nil
}
