package telegram

import "strings"

// Kind identifies what an incoming message asks for.
type Kind int

const (
	// KindNone: not a recognized command; may still be addressed to the bot.
	KindNone Kind = iota
	// KindGame starts a prediction game: /game BTC [5m]
	KindGame
	// KindCheck settles a running game: /check BTC
	KindCheck
	// KindPrice asks for the current price: /price BTC
	KindPrice
	// KindAsk routes a free-form query: /ask what is the price of ETH?
	KindAsk
	// KindNews asks for news: /news [topic]
	KindNews
	// KindImage generates an image: /image a cat in space
	KindImage
)

// Parsed is the decoded form of an incoming message.
type Parsed struct {
	Kind      Kind
	Asset     string // KindGame, KindCheck, KindPrice
	Timeframe string // KindGame, optional
	Query     string // KindAsk, KindNews, KindPrice
	Prompt    string // KindImage
}

var (
	gameCommands  = []string{"/game", "/option"}
	checkCommands = []string{"/check", "/check_game"}
	priceCommands = []string{"/price"}
	askCommands   = []string{"/ask", "/analyze", "/som"}
	newsCommands  = []string{"/news"}
	imageCommands = []string{"/image", "/img"}
)

// Parse decodes a message into a command. Unrecognized messages come back as
// KindNone; use IsAddressedToBot to decide whether to answer them anyway.
func Parse(text string) Parsed {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Parsed{Kind: KindNone}
	}
	// Commands in groups arrive as /game@botname.
	cmd, _, _ := strings.Cut(strings.ToLower(fields[0]), "@")
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), fields[0]))

	switch {
	case contains(gameCommands, cmd):
		if len(fields) < 2 {
			return Parsed{Kind: KindNone}
		}
		p := Parsed{Kind: KindGame, Asset: strings.ToUpper(fields[1])}
		if len(fields) >= 3 {
			p.Timeframe = strings.ToLower(fields[2])
		}
		return p
	case contains(checkCommands, cmd):
		if len(fields) < 2 {
			return Parsed{Kind: KindNone}
		}
		return Parsed{Kind: KindCheck, Asset: strings.ToUpper(fields[1])}
	case contains(priceCommands, cmd):
		if len(fields) < 2 {
			return Parsed{Kind: KindNone}
		}
		asset := strings.ToUpper(fields[1])
		return Parsed{Kind: KindPrice, Asset: asset, Query: "price of " + asset + " at the moment"}
	case contains(askCommands, cmd):
		q := rest
		if q == "" {
			q = "tell me about your capabilities"
		}
		return Parsed{Kind: KindAsk, Query: q}
	case contains(newsCommands, cmd):
		q := "provide the latest and most important news for today"
		if rest != "" {
			q = "get the latest and most important news about " + rest
		}
		return Parsed{Kind: KindNews, Query: q}
	case contains(imageCommands, cmd):
		prompt := rest
		if prompt == "" {
			prompt = "beautiful landscape"
		}
		return Parsed{Kind: KindImage, Prompt: prompt}
	}
	return Parsed{Kind: KindNone}
}

// IsAddressedToBot reports whether a non-command message is directed at the
// bot: it mentions one of the bot's names, or looks like a substantial
// question.
func IsAddressedToBot(text string, botNames []string) bool {
	lower := strings.ToLower(text)
	for _, name := range botNames {
		if name != "" && strings.Contains(lower, strings.ToLower(name)) {
			return true
		}
	}
	if strings.HasSuffix(strings.TrimSpace(text), "?") && len(text) > 15 {
		return true
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
