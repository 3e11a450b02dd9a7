package indicator

import (
	"os"
	"strings"
)

type locale string

const (
	localeEnglish locale = "en"
)

type messages struct {
	connected    string
	disconnected string
	pieStarted   string
	simulating   string
	pieStopped   string
	reloadOK     string
	reloadFailed string
	localPlay    string
	errorText    string
}

func indicatorMessagesFromEnv() messages {
	return indicatorMessages(resolveLocale(os.Getenv("LANG")))
}

func resolveLocale(raw string) locale {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if strings.HasPrefix(raw, "en") {
		return localeEnglish
	}
	return localeEnglish
}

func indicatorMessages(tag locale) messages {
	switch tag {
	case localeEnglish:
		fallthrough
	default:
		return messages{
			connected:    "Unreal Editor connected",
			disconnected: "Unreal Editor disconnected",
			pieStarted:   "Playing in editor",
			simulating:   "Simulating in editor",
			pieStopped:   "Play session ended",
			reloadOK:     "Hot reload complete",
			reloadFailed: "Hot reload failed",
			localPlay:    "Standalone game started (pid %d)",
			errorText:    "Editor agent error",
		}
	}
}
