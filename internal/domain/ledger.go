package domain

// TextLedger is the bounded FIFO live window over the append-only
// durable log of accepted words. Eviction affects only the window,
// never the durable log behind it.
type TextLedger struct {
	capacity int
	window   []*WordRecord
}

// NewTextLedger creates a ledger window with the given capacity.
func NewTextLedger(capacity int) *TextLedger {
	if capacity < 1 {
		capacity = 1
	}
	return &TextLedger{
		capacity: capacity,
		window:   make([]*WordRecord, 0, capacity),
	}
}

// Append adds a record to the window, evicting the oldest entry once
// capacity is exceeded.
func (l *TextLedger) Append(record *WordRecord) {
	l.window = append(l.window, record)
	if len(l.window) > l.capacity {
		l.window = l.window[1:]
	}
}

// Window returns a copy of the current live window, oldest first.
func (l *TextLedger) Window() []*WordRecord {
	out := make([]*WordRecord, len(l.window))
	copy(out, l.window)
	return out
}

// LastWord returns the most recently accepted word, or "" when the
// window is empty.
func (l *TextLedger) LastWord() string {
	if len(l.window) == 0 {
		return ""
	}
	return l.window[len(l.window)-1].Word
}

// Len returns the current window length.
func (l *TextLedger) Len() int {
	return len(l.window)
}

// Words returns the plain words of the window, oldest first.
func (l *TextLedger) Words() []string {
	out := make([]string, len(l.window))
	for i, w := range l.window {
		out[i] = w.Word
	}
	return out
}
