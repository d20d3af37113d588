package tgui

import (
	"context"

	kit "github.com/Sumitpatel080/Forward/internal/transport"
)

// Message is rendered UI: HTML text plus an optional inline keyboard.
type Message struct {
	Text     H
	Keyboard *Inline
}

func (m Message) Options() *kit.SendOptions {
	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if m.Keyboard != nil {
		opt.ReplyMarkupAdapter = m.Keyboard.Markup()
	}
	return opt
}

func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text.String(), m.Options())
}

// Edit replaces the message at ref. Telegram drops the old keyboard when
// the edit carries none.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text.String(), m.Options())
}
