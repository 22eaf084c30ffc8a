package telegram

// MaxCallbackData is Telegram's limit on callback_data, in bytes.
const MaxCallbackData = 64

func Button(text, data string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, CallbackData: data}
}

func URLButton(text, url string) InlineKeyboardButton {
	return InlineKeyboardButton{Text: text, URL: url}
}

// Row drops buttons whose callback data Telegram would reject.
func Row(buttons ...InlineKeyboardButton) []InlineKeyboardButton {
	out := make([]InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		if len(b.CallbackData) > MaxCallbackData {
			continue
		}
		out = append(out, b)
	}
	return out
}

// Keyboard assembles rows, skipping empty ones.
func Keyboard(rows ...[]InlineKeyboardButton) [][]InlineKeyboardButton {
	out := make([][]InlineKeyboardButton, 0, len(rows))
	for _, r := range rows {
		if len(r) > 0 {
			out = append(out, r)
		}
	}
	return out
}
