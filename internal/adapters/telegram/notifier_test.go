package telegram

import (
	"strings"
	"testing"
)

func TestSplitMessageShortTextStaysWhole(t *testing.T) {
	chunks := splitMessage("short newsletter", 4096)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
}

func TestSplitMessageBreaksOnLineBoundaries(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("### Une manchette\n\nUn résumé de quelques phrases.\n\n")
	}
	text := b.String()

	limit := 500
	chunks := splitMessage(text, limit)

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	var rebuilt strings.Builder
	for _, chunk := range chunks {
		if len(chunk) > limit {
			t.Errorf("chunk exceeds limit: %d > %d", len(chunk), limit)
		}
		rebuilt.WriteString(chunk)
	}
	if rebuilt.String() != text {
		t.Error("rebuilt chunks do not match original text")
	}

	// All but the last chunk should end at a line boundary.
	for i := 0; i < len(chunks)-1; i++ {
		if !strings.HasSuffix(chunks[i], "\n") && !strings.HasPrefix(chunks[i+1], "\n") {
			t.Errorf("chunk %d does not break on a newline", i)
		}
	}
}
