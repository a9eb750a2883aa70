package capability

import (
	"reflect"
	"testing"
)

func TestInferBrowserPrecedence(t *testing.T) {
	cases := []struct {
		desc string
		want string
	}{
		{"open the page in Chrome", BrowserChrome},
		{"search on Google for the report", BrowserChrome},
		{"check the page in Safari", BrowserSafari},
		{"test rendering in firefox", BrowserFirefox},
		{"open in safari and chrome", BrowserChrome},
		{"firefox then safari", BrowserSafari},
		{"no browser involved", BrowserNone},
		{"", BrowserNone},
	}
	for _, c := range cases {
		if got := Infer(c.desc).Browser; got != c.want {
			t.Errorf("Infer(%q).Browser = %s, want %s", c.desc, got, c.want)
		}
	}
}

func TestInferFlags(t *testing.T) {
	p := Infer("Open in Chrome, take a SCREENSHOT and save the file to a folder")
	if p.Browser != BrowserChrome {
		t.Errorf("browser = %s, want chrome", p.Browser)
	}
	if !p.Screenshot || !p.FileOperations {
		t.Errorf("expected screenshot and file_operations, got %+v", p)
	}
	if p.DeviceIntegration || p.Presentation || p.SystemCommands || p.Location {
		t.Errorf("unexpected flags set: %+v", p)
	}
}

func TestInferAllFalseWithoutKeywords(t *testing.T) {
	p := Infer("summarize the quarterly numbers")
	want := Profile{Browser: BrowserNone}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("Infer = %+v, want zero profile", p)
	}
}

func TestInferDeterministic(t *testing.T) {
	desc := "run a shell script on the iphone, then build slides with directions"
	first := Infer(desc)
	for i := 0; i < 5; i++ {
		if got := Infer(desc); !reflect.DeepEqual(got, first) {
			t.Fatalf("Infer not deterministic: %+v vs %+v", got, first)
		}
	}
	if !first.SystemCommands || !first.DeviceIntegration || !first.Presentation || !first.Location {
		t.Errorf("expected four flags, got %+v", first)
	}
}

func TestFlagsOrder(t *testing.T) {
	p := Profile{Screenshot: true, SystemCommands: true, Location: true}
	got := p.Flags()
	want := []string{"screenshot", "system-commands", "location"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Flags() = %v, want %v", got, want)
	}
}
