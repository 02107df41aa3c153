package marker

import (
	"reflect"
	"strings"
	"testing"
)

func TestScan(t *testing.T) {
	text := strings.Join([]string{
		"Work is done.",
		">>schedule tomorrow 09:00 review",
		"Some narrative in between.",
		">>activate widget-rollout",
	}, "\n")

	got := Scan(text)
	want := []Directive{
		{Kind: KindSchedule, Arg: "tomorrow 09:00 review"},
		{Kind: KindActivate, Arg: "widget-rollout"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Scan = %v, want %v", got, want)
	}
}

func TestScan_SkipsMalformed(t *testing.T) {
	text := strings.Join([]string{
		">>schedule",           // no argument
		">>activate   ",        // whitespace-only argument
		">>launch the-rocket",  // unknown verb
		">> schedule phantom",  // space before verb makes verb empty
		">>activate real-work", // valid
	}, "\n")

	got := Scan(text)
	if len(got) != 1 {
		t.Fatalf("Scan = %v, want exactly one directive", got)
	}
	if got[0].Kind != KindActivate || got[0].Arg != "real-work" {
		t.Errorf("Scan[0] = %v", got[0])
	}
}

func TestScan_NoDirectives(t *testing.T) {
	if got := Scan("plain text\nmore text"); got != nil {
		t.Errorf("Scan = %v, want nil", got)
	}
}

func TestScan_IndentedDirective(t *testing.T) {
	got := Scan("  >>schedule next week cleanup")
	if len(got) != 1 || got[0].Kind != KindSchedule {
		t.Errorf("Scan = %v", got)
	}
}

func TestStrip(t *testing.T) {
	text := strings.Join([]string{
		"Summary of the work.",
		">>schedule tomorrow 09:00 review",
		">>bogus directive",
		"Trailing detail.",
	}, "\n")

	got := Strip(text)
	want := "Summary of the work.\nTrailing detail."
	if got != want {
		t.Errorf("Strip = %q, want %q", got, want)
	}
}
