// Package capability infers execution hints from an activity's free text.
package capability

import "strings"

// Browser choices, in precedence order.
const (
	BrowserNone    = "none"
	BrowserChrome  = "chrome"
	BrowserSafari  = "safari"
	BrowserFirefox = "firefox"
)

// Profile describes what the external agent will likely need to do. It is
// advisory only; it shapes the directive text, never gates dispatch.
type Profile struct {
	Browser           string `json:"browser" enum:"none,safari,chrome,firefox"`
	Screenshot        bool   `json:"screenshot"`
	FileOperations    bool   `json:"file_operations"`
	DeviceIntegration bool   `json:"device_integration"`
	Presentation      bool   `json:"presentation"`
	SystemCommands    bool   `json:"system_commands"`
	Location          bool   `json:"location"`
}

type browserRule struct {
	browser  string
	keywords []string
}

type flagRule struct {
	keywords []string
	set      func(*Profile)
}

// Ordered: first rule with a matching keyword wins.
var browserRules = []browserRule{
	{BrowserChrome, []string{"chrome", "google"}},
	{BrowserSafari, []string{"safari"}},
	{BrowserFirefox, []string{"firefox"}},
}

var flagRules = []flagRule{
	{[]string{"screenshot", "screen shot", "capture"}, func(p *Profile) { p.Screenshot = true }},
	{[]string{"file", "folder", "directory", "download", "upload"}, func(p *Profile) { p.FileOperations = true }},
	{[]string{"iphone", "ipad", "device", "phone", "imessage", "sms"}, func(p *Profile) { p.DeviceIntegration = true }},
	{[]string{"presentation", "keynote", "slides", "powerpoint"}, func(p *Profile) { p.Presentation = true }},
	{[]string{"terminal", "command", "shell", "script", "install"}, func(p *Profile) { p.SystemCommands = true }},
	{[]string{"location", "map", "directions", "nearby"}, func(p *Profile) { p.Location = true }},
}

// Infer derives a Profile from a description by case-insensitive substring
// matching. An empty or keyword-free description yields the zero profile.
func Infer(description string) Profile {
	p := Profile{Browser: BrowserNone}
	if description == "" {
		return p
	}
	text := strings.ToLower(description)
	for _, rule := range browserRules {
		if containsAny(text, rule.keywords) {
			p.Browser = rule.browser
			break
		}
	}
	for _, rule := range flagRules {
		if containsAny(text, rule.keywords) {
			rule.set(&p)
		}
	}
	return p
}

// Flags returns the names of the set boolean capabilities, in rule order.
func (p Profile) Flags() []string {
	var flags []string
	if p.Screenshot {
		flags = append(flags, "screenshot")
	}
	if p.FileOperations {
		flags = append(flags, "file-operations")
	}
	if p.DeviceIntegration {
		flags = append(flags, "device-integration")
	}
	if p.Presentation {
		flags = append(flags, "presentation")
	}
	if p.SystemCommands {
		flags = append(flags, "system-commands")
	}
	if p.Location {
		flags = append(flags, "location")
	}
	return flags
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
