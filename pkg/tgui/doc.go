// Package tgui holds small Telegram UI helpers: inline keyboards, callback
// data in the "plugin:action:payload" form, and HTML-safe message text.
package tgui
