package conversation

import "strings"

type command int

const (
	cmdNone command = iota
	cmdStart
	cmdCancel
	cmdHelp
)

var commandAliases = map[string]command{
	"/start":  cmdStart,
	"start":   cmdStart,
	"設定開始":    cmdStart,
	"開始":      cmdStart,
	"/cancel": cmdCancel,
	"cancel":  cmdCancel,
	"キャンセル":   cmdCancel,
	"監視停止":    cmdCancel,
	"/help":   cmdHelp,
	"help":    cmdHelp,
	"ヘルプ":     cmdHelp,
}

// parseCommand matches text against the command aliases, ignoring case
// and a Telegram "@botname" suffix.
func parseCommand(text string) command {
	t := strings.ToLower(strings.TrimSpace(text))
	if i := strings.IndexByte(t, '@'); i > 0 && strings.HasPrefix(t, "/") {
		t = t[:i]
	}
	return commandAliases[t]
}

// Payload prefixes and reserved values.
const (
	prefixBoarding  = "boarding"
	prefixAlighting = "alighting"
	prefixTime      = "time"

	valueSearch = "search"
	valueManual = "manual"
)

type payload struct {
	prefix string
	value  string
}

// parsePayload splits "prefix:value" for known prefixes only, so a typed
// "18:30" is not mistaken for a payload.
func parsePayload(text string) (payload, bool) {
	prefix, value, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return payload{}, false
	}
	switch prefix {
	case prefixBoarding, prefixAlighting, prefixTime:
		return payload{prefix: prefix, value: value}, true
	}
	return payload{}, false
}

func encodePayload(prefix, value string) string {
	return prefix + ":" + value
}
