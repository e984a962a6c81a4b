package ttsstream

import "testing"

func TestPreprocess_Abbreviations(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"Our AI can help.", "Our artificial intelligence can help."},
		{"The API is down.", "The A P I is down."},
		{"Ask the CEO and the CTO.", "Ask the C E O and the C T O."},
		{"We pitched a VC on our SaaS idea.", "We pitched a venture capital on our Software as a Service idea."},
		{"ML beats rules.", "machine learning beats rules."},
		{"The UI needs work.", "The user interface needs work."},
		// Case-sensitive and word-bounded: no expansion inside other words.
		{"The aia protocol.", "The aia protocol."},
		{"APIs everywhere.", "APIs everywhere."},
	}
	for _, c := range cases {
		if got := preprocess(c.in); got != c.want {
			t.Errorf("preprocess(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPreprocess_PunctuationRuns(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in, want string
	}{
		{"Wait....", "Wait..."},
		{"Wait..", "Wait."},
		{"Really?!?? Wow!!", "Really?!? Wow!"},
		{"Hmm...", "Hmm..."},
	}
	for _, c := range cases {
		if got := preprocess(c.in); got != c.want {
			t.Errorf("preprocess(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPreprocess_AppendsTerminalPeriod(t *testing.T) {
	t.Parallel()
	if got := preprocess("let me think about that"); got != "let me think about that." {
		t.Errorf("got %q, want trailing period", got)
	}
	if got := preprocess("already ended!"); got != "already ended!" {
		t.Errorf("got %q, terminator should be preserved", got)
	}
	if got := preprocess("   "); got != "" {
		t.Errorf("whitespace-only input should stay empty, got %q", got)
	}
}

func TestAtFlushBoundary(t *testing.T) {
	t.Parallel()
	if !atFlushBoundary("A full sentence.") {
		t.Error("sentence terminator should flush")
	}
	if !atFlushBoundary("A question? ") {
		t.Error("terminator with trailing whitespace should flush")
	}
	if atFlushBoundary("still going") {
		t.Error("short unterminated buffer should not flush")
	}

	long := make([]byte, maxBufferedChars)
	for i := range long {
		long[i] = 'a'
	}
	if !atFlushBoundary(string(long)) {
		t.Error("buffer at the length cap should flush")
	}
	if atFlushBoundary(string(long[:maxBufferedChars-1])) {
		t.Error("buffer below the length cap should not flush")
	}
}
