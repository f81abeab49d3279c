package notify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	ntfy "github.com/go-pkgz/notify"
)

// channel pairs a notifier with its destination uri.
type channel struct {
	notifier   ntfy.Notifier
	dest       string
	htmlEscape bool // telegram messages use HTML parse mode
}

// telegramChannelMaker is replaced in tests, the real one calls the telegram API.
var telegramChannelMaker = makeTelegramChannel

func makeTelegramChannel(p Params) (channel, error) {
	tg, err := ntfy.NewTelegram(ntfy.TelegramParams{Token: p.TelegramToken})
	if err != nil {
		return channel{}, fmt.Errorf("create telegram notifier: %w", err)
	}
	return channel{notifier: tg, dest: "telegram:" + p.TelegramChat + "?parseMode=HTML", htmlEscape: true}, nil
}

func makeEmailChannel(p Params) (channel, error) {
	switch {
	case p.SMTPHost == "":
		return channel{}, errors.New("notify_smtp_host is required")
	case p.EmailFrom == "":
		return channel{}, errors.New("notify_email_from is required")
	case len(p.EmailTo) == 0:
		return channel{}, errors.New("notify_email_to is required")
	}

	em := ntfy.NewEmail(ntfy.SMTPParams{
		Host:     p.SMTPHost,
		Port:     p.SMTPPort,
		Username: p.SMTPUsername,
		Password: p.SMTPPassword,
		StartTLS: p.SMTPStartTLS,
	})
	q := url.Values{}
	q.Set("from", p.EmailFrom)
	q.Set("subject", "aidd-c run summary")
	return channel{notifier: em, dest: "mailto:" + strings.Join(p.EmailTo, ",") + "?" + q.Encode()}, nil
}

func makeSlackChannel(p Params) (channel, error) {
	if p.SlackToken == "" {
		return channel{}, errors.New("notify_slack_token is required")
	}
	if p.SlackChannel == "" {
		return channel{}, errors.New("notify_slack_channel is required")
	}
	return channel{notifier: ntfy.NewSlack(p.SlackToken), dest: "slack:" + p.SlackChannel}, nil
}

// makeWebhookChannels shares one webhook notifier across all urls.
func makeWebhookChannels(p Params) ([]channel, error) {
	if len(p.WebhookURLs) == 0 {
		return nil, errors.New("notify_webhook_urls is required")
	}
	wh := ntfy.NewWebhook(ntfy.WebhookParams{})
	res := make([]channel, 0, len(p.WebhookURLs))
	for _, u := range p.WebhookURLs {
		res = append(res, channel{notifier: wh, dest: u})
	}
	return res, nil
}
