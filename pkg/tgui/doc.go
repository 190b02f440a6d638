// Package tgui renders Telegram cards for scriptbot: HTML-safe message
// builders, inline keyboards and "plugin:action:payload" callback data.
package tgui
