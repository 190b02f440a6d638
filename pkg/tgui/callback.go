package tgui

import (
	"errors"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data limit in bytes.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data joins plugin, action and an optional payload with ':'. The payload
// may itself contain ':'.
func Data(plugin, action, payload string) string {
	d := strings.TrimSpace(plugin) + ":" + strings.TrimSpace(action)
	if payload != "" {
		d += ":" + payload
	}
	return d
}

func CheckedData(plugin, action, payload string) (string, error) {
	if d := Data(plugin, action, payload); len(d) <= MaxCallbackDataLen {
		return d, nil
	}
	return "", ErrCallbackDataTooLong
}

// ParseData is the inverse of Data; ok is false without an action part.
func ParseData(data string) (plugin, action, payload string, ok bool) {
	plugin, rest, ok := strings.Cut(strings.TrimSpace(data), ":")
	if !ok {
		return "", "", "", false
	}
	action, payload, _ = strings.Cut(rest, ":")
	return plugin, action, payload, true
}
