package telegram

// The Bot API client in use predates web_app buttons, so inline keyboards are
// built here and sent as raw reply_markup.

const openAppText = "Open the app"

type webAppInfo struct {
	URL string `json:"url"`
}

type inlineButton struct {
	Text   string      `json:"text"`
	URL    string      `json:"url,omitempty"`
	WebApp *webAppInfo `json:"web_app,omitempty"`
}

type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

// webAppKeyboard opens the Mini App in place. Telegram only allows it in
// private chats.
func webAppKeyboard(webAppURL string) inlineKeyboard {
	return inlineKeyboard{
		InlineKeyboard: [][]inlineButton{
			{{Text: openAppText, WebApp: &webAppInfo{URL: webAppURL}}},
		},
	}
}

func urlKeyboard(url, text string) inlineKeyboard {
	return inlineKeyboard{
		InlineKeyboard: [][]inlineButton{
			{{Text: text, URL: url}},
		},
	}
}
