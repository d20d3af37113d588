package adapter

import (
	"context"
	"errors"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

// ForwardMessages forwards ids from chat `from` to chat `to`. Several ids go
// out in one forwardMessages call so Telegram keeps them as one album.
func (a *Adapter) ForwardMessages(ctx context.Context, to, from int64, ids []int) error {
	if len(ids) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := &tele.Chat{ID: to}
	if len(ids) == 1 {
		_, err := a.bot.Forward(dst, stored(from, ids[0]))
		return err
	}
	msgs := make([]tele.Editable, 0, len(ids))
	for _, id := range ids {
		msgs = append(msgs, stored(from, id))
	}
	sent, err := a.bot.ForwardMany(dst, msgs)
	if err != nil {
		return err
	}
	if len(sent) != len(ids) {
		return errors.New("forwarded " + strconv.Itoa(len(sent)) + " of " + strconv.Itoa(len(ids)) + " messages")
	}
	return nil
}

func stored(chat int64, id int) tele.StoredMessage {
	return tele.StoredMessage{ChatID: chat, MessageID: strconv.Itoa(id)}
}
