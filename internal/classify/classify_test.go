package classify

import (
	"testing"

	"github.com/lernobot/lernobot/pkg/types"
)

func TestClassify_Labels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		utterance string
		want      types.ComprehensionLabel
	}{
		// ─── initial ───
		{"empty", "", types.ComprehensionInitial},
		{"whitespace only", "   \t ", types.ComprehensionInitial},
		{"greeting shalom", "שלום", types.ComprehensionInitial},
		{"greeting hi", "היי", types.ComprehensionInitial},
		{"greeting double", "שלום שלום", types.ComprehensionInitial},
		{"greeting with surrounding spaces", "  שלום  ", types.ComprehensionInitial},

		// ─── emotional ───
		{"sad", "אני עצוב", types.ComprehensionEmotional},
		{"sad feminine", "אני עצובה היום", types.ComprehensionEmotional},
		{"angry", "אני כועס על זה", types.ComprehensionEmotional},
		{"fed up", "נמאס לי מהמשימה הזאת", types.ComprehensionEmotional},
		{"no strength", "אין לי כוח יותר", types.ComprehensionEmotional},
		{"not capable", "אני לא מסוגל לעשות את זה", types.ComprehensionEmotional},

		// ─── confused ───
		{"did not understand", "לא הבנתי", types.ComprehensionConfused},
		{"question mark", "מה זה אומר?", types.ComprehensionConfused},
		{"interrogative why", "למה צריך לחלק", types.ComprehensionConfused},
		{"english what", "what do I do", types.ComprehensionConfused},
		{"asks for explanation", "תסביר לי שוב", types.ComprehensionConfused},

		// ─── understood ───
		{"got it", "הבנתי", types.ComprehensionUnderstood},
		{"clear", "ברור", types.ComprehensionUnderstood},
		{"okay", "אוקיי", types.ComprehensionUnderstood},
		{"yes", "כן", types.ComprehensionUnderstood},

		// Multi-token text that misses every lexicon reads as a request for
		// help, not an acknowledgement.
		{"multi token unknown", "המספרים האלה גדולים", types.ComprehensionConfused},

		// ─── partial ───
		{"single unknown token", "אולי", types.ComprehensionPartial},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Classify(tt.utterance); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.utterance, got, tt.want)
			}
		})
	}
}

func TestClassify_EmotionalWinsOverConfusion(t *testing.T) {
	t.Parallel()

	// Contains both an emotional phrase and a question mark; emotional rules
	// apply first.
	got := Classify("אני עצוב, מה לעשות?")
	if got != types.ComprehensionEmotional {
		t.Errorf("Classify = %q, want emotional", got)
	}
}

func TestClassify_ConfusionWinsOverUnderstanding(t *testing.T) {
	t.Parallel()

	got := Classify("הבנתי אבל למה ככה")
	if got != types.ComprehensionConfused {
		t.Errorf("Classify = %q, want confused", got)
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"  Hello   World  ", "hello world"},
		{"שלום   שלום", "שלום שלום"},
		{"", ""},
		{"\tABC\n", "abc"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsGreetingOrEmpty(t *testing.T) {
	t.Parallel()

	for _, u := range []string{"", "  ", "שלום", "היי", "הי"} {
		if !IsGreetingOrEmpty(u) {
			t.Errorf("IsGreetingOrEmpty(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"שלום לך", "לא הבנתי", "hi"} {
		if IsGreetingOrEmpty(u) {
			t.Errorf("IsGreetingOrEmpty(%q) = true, want false", u)
		}
	}
}
