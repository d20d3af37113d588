package tgui

import tele "gopkg.in/telebot.v4"

// Inline builds an inline keyboard row by row.
type Inline struct {
	rm   *tele.ReplyMarkup
	rows []tele.Row
}

func NewInline() *Inline {
	return &Inline{rm: &tele.ReplyMarkup{}}
}

// Row appends one row of buttons. Empty rows are skipped.
func (i *Inline) Row(btn ...tele.Btn) *Inline {
	if len(btn) == 0 {
		return i
	}
	i.rows = append(i.rows, i.rm.Row(btn...))
	i.rm.Inline(i.rows...)
	return i
}

// Grid appends btns split into rows of cols buttons.
func (i *Inline) Grid(cols int, btns ...tele.Btn) *Inline {
	if cols <= 0 {
		cols = 1
	}
	for len(btns) > 0 {
		n := min(cols, len(btns))
		i.Row(btns[:n]...)
		btns = btns[n:]
	}
	return i
}

func (i *Inline) Markup() *tele.ReplyMarkup { return i.rm }

// Rows reports the button texts per row.
func (i *Inline) Rows() [][]string {
	out := make([][]string, 0, len(i.rows))
	for _, r := range i.rows {
		row := make([]string, 0, len(r))
		for _, b := range r {
			row = append(row, b.Text)
		}
		out = append(out, row)
	}
	return out
}

// Btn creates a callback button with raw callback data.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}
