package desk

import (
	"strings"
	"testing"
)

func TestBuildDigest_EmptyDesk(t *testing.T) {
	f := newFixture(t)
	text, err := BuildDigest(f.db, "LG1")
	if err != nil {
		t.Fatal(err)
	}
	if text != "" {
		t.Errorf("digest for empty desk = %q", text)
	}
}

func TestBuildDigest(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111", "222")
	f.dm("U1", "/line")

	text, err := BuildDigest(f.db, "LG1")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Desk LG1 digest", "Remaining: 1", "Active: 1", "Total: 2"} {
		if !strings.Contains(text, want) {
			t.Errorf("digest missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "queue is empty") {
		t.Error("unexpected empty-queue warning")
	}
}

func TestBuildDigest_QueueExhausted(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "111")
	f.dm("U1", "/line")

	text, _ := BuildDigest(f.db, "LG1")
	if !strings.Contains(text, "queue is empty") {
		t.Errorf("digest = %q, want empty-queue warning", text)
	}
}
