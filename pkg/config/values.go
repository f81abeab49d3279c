package config

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/NomadicDaddy/aidd-c/pkg/notify"
)

// Values holds scalar configuration values.
// Fields ending in *Set (e.g., IdleTimeoutSecSet) track whether that field was explicitly
// set in config. This allows distinguishing explicit 0 from "not set", so a local config
// can override the global one with a zero value.
type Values struct {
	ClaudeCommand       string
	ClaudeArgs          string
	ClaudeErrorPatterns []string // patterns to detect in claude output (e.g., rate limit messages)

	Model     string // default model for every phase
	InitModel string // initializer and onboarding sessions
	CodeModel string // coding sessions

	IdleTimeoutSec      int
	IdleTimeoutSecSet   bool // tracks if idle_timeout_sec was explicitly set
	QuitOnAbort         int
	QuitOnAbortSet      bool // tracks if quit_on_abort was explicitly set
	MaxIterations       int
	MaxIterationsSet    bool // tracks if max_iterations was explicitly set
	IterationDelayMs    int
	IterationDelayMsSet bool // tracks if iteration_delay_ms was explicitly set

	Notify              notify.Params
	NotifyOnErrorSet    bool
	NotifyOnCompleteSet bool
	NotifyTimeoutMsSet  bool
	NotifySMTPPortSet   bool
	NotifyStartTLSSet   bool
}

// valuesLoader loads Values with embedded filesystem fallback.
type valuesLoader struct {
	embedFS embed.FS
}

func newValuesLoader(embedFS embed.FS) *valuesLoader {
	return &valuesLoader{embedFS: embedFS}
}

// Load loads values from config files with fallback chain: local → global → embedded.
// localConfigPath and globalConfigPath are full paths to config files (not directories).
func (vl *valuesLoader) Load(localConfigPath, globalConfigPath string) (Values, error) {
	data, err := vl.embedFS.ReadFile("defaults/config")
	if err != nil {
		return Values{}, fmt.Errorf("read embedded defaults: %w", err)
	}
	embedded, err := parseValues(data)
	if err != nil {
		return Values{}, fmt.Errorf("parse embedded defaults: %w", err)
	}

	global, err := vl.parseFile(globalConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse global config: %w", err)
	}
	local, err := vl.parseFile(localConfigPath)
	if err != nil {
		return Values{}, fmt.Errorf("parse local config: %w", err)
	}

	// merge: embedded → global → local (local wins)
	result := embedded
	result.mergeFrom(&global)
	result.mergeFrom(&local)
	return result, nil
}

// parseFile returns empty Values (not error) if the file doesn't exist or holds only comments,
// so commented templates fall back to the embedded defaults.
func (vl *valuesLoader) parseFile(path string) (Values, error) {
	data, err := readConfigFile(path)
	if err != nil || data == nil {
		return Values{}, err
	}
	if strings.TrimSpace(stripComments(string(data))) == "" {
		return Values{}, nil
	}
	return parseValues(data)
}

// readConfigFile returns nil data for an empty path or a missing file.
func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is constructed internally
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return data, nil
}

func loadINI(data []byte) (*ini.Section, error) {
	// IgnoreInlineComment keeps # inside values (hex colors, error patterns)
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, data)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg.Section(""), nil
}

// parseValues parses configuration from INI data into Values.
func parseValues(data []byte) (Values, error) {
	section, err := loadINI(data)
	if err != nil {
		return Values{}, err
	}

	var v Values
	strKeys := []struct {
		key   string
		field *string
	}{
		{"claude_command", &v.ClaudeCommand},
		{"claude_args", &v.ClaudeArgs},
		{"model", &v.Model},
		{"init_model", &v.InitModel},
		{"code_model", &v.CodeModel},
		{"notify_telegram_token", &v.Notify.TelegramToken},
		{"notify_telegram_chat", &v.Notify.TelegramChat},
		{"notify_slack_token", &v.Notify.SlackToken},
		{"notify_slack_channel", &v.Notify.SlackChannel},
		{"notify_smtp_host", &v.Notify.SMTPHost},
		{"notify_smtp_username", &v.Notify.SMTPUsername},
		{"notify_smtp_password", &v.Notify.SMTPPassword},
		{"notify_email_from", &v.Notify.EmailFrom},
		{"notify_custom_script", &v.Notify.CustomScript},
	}
	for _, sk := range strKeys {
		if key, err := section.GetKey(sk.key); err == nil {
			*sk.field = strings.TrimSpace(key.String())
		}
	}

	intKeys := []struct {
		key   string
		field *int
		set   *bool
	}{
		{"idle_timeout_sec", &v.IdleTimeoutSec, &v.IdleTimeoutSecSet},
		{"quit_on_abort", &v.QuitOnAbort, &v.QuitOnAbortSet},
		{"max_iterations", &v.MaxIterations, &v.MaxIterationsSet},
		{"iteration_delay_ms", &v.IterationDelayMs, &v.IterationDelayMsSet},
		{"notify_timeout_ms", &v.Notify.TimeoutMs, &v.NotifyTimeoutMsSet},
		{"notify_smtp_port", &v.Notify.SMTPPort, &v.NotifySMTPPortSet},
	}
	for _, ik := range intKeys {
		key, err := section.GetKey(ik.key)
		if err != nil || strings.TrimSpace(key.String()) == "" {
			continue
		}
		val, intErr := key.Int()
		if intErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", ik.key, intErr)
		}
		if val < 0 {
			return Values{}, fmt.Errorf("invalid %s: must be non-negative, got %d", ik.key, val)
		}
		*ik.field, *ik.set = val, true
	}

	boolKeys := []struct {
		key   string
		field *bool
		set   *bool
	}{
		{"notify_on_error", &v.Notify.OnError, &v.NotifyOnErrorSet},
		{"notify_on_complete", &v.Notify.OnComplete, &v.NotifyOnCompleteSet},
		{"notify_smtp_starttls", &v.Notify.SMTPStartTLS, &v.NotifyStartTLSSet},
	}
	for _, bk := range boolKeys {
		key, err := section.GetKey(bk.key)
		if err != nil || strings.TrimSpace(key.String()) == "" {
			continue
		}
		val, boolErr := key.Bool()
		if boolErr != nil {
			return Values{}, fmt.Errorf("invalid %s: %w", bk.key, boolErr)
		}
		*bk.field, *bk.set = val, true
	}

	// comma-separated lists
	listKeys := []struct {
		key   string
		field *[]string
	}{
		{"claude_error_patterns", &v.ClaudeErrorPatterns},
		{"notify_channels", &v.Notify.Channels},
		{"notify_email_to", &v.Notify.EmailTo},
		{"notify_webhook_urls", &v.Notify.WebhookURLs},
	}
	for _, lk := range listKeys {
		if key, err := section.GetKey(lk.key); err == nil {
			*lk.field = splitList(key.String())
		}
	}

	return v, nil
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(val string) []string {
	var items []string
	for p := range strings.SplitSeq(val, ",") {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}

// mergeFrom merges non-empty values from src into dst.
func (dst *Values) mergeFrom(src *Values) {
	mergeString(&dst.ClaudeCommand, src.ClaudeCommand)
	mergeString(&dst.ClaudeArgs, src.ClaudeArgs)
	mergeList(&dst.ClaudeErrorPatterns, src.ClaudeErrorPatterns)
	mergeString(&dst.Model, src.Model)
	mergeString(&dst.InitModel, src.InitModel)
	mergeString(&dst.CodeModel, src.CodeModel)

	mergeInt(&dst.IdleTimeoutSec, &dst.IdleTimeoutSecSet, src.IdleTimeoutSec, src.IdleTimeoutSecSet)
	mergeInt(&dst.QuitOnAbort, &dst.QuitOnAbortSet, src.QuitOnAbort, src.QuitOnAbortSet)
	mergeInt(&dst.MaxIterations, &dst.MaxIterationsSet, src.MaxIterations, src.MaxIterationsSet)
	mergeInt(&dst.IterationDelayMs, &dst.IterationDelayMsSet, src.IterationDelayMs, src.IterationDelayMsSet)

	n, sn := &dst.Notify, &src.Notify
	mergeList(&n.Channels, sn.Channels)
	mergeBool(&n.OnError, &dst.NotifyOnErrorSet, sn.OnError, src.NotifyOnErrorSet)
	mergeBool(&n.OnComplete, &dst.NotifyOnCompleteSet, sn.OnComplete, src.NotifyOnCompleteSet)
	mergeInt(&n.TimeoutMs, &dst.NotifyTimeoutMsSet, sn.TimeoutMs, src.NotifyTimeoutMsSet)
	mergeString(&n.TelegramToken, sn.TelegramToken)
	mergeString(&n.TelegramChat, sn.TelegramChat)
	mergeString(&n.SlackToken, sn.SlackToken)
	mergeString(&n.SlackChannel, sn.SlackChannel)
	mergeString(&n.SMTPHost, sn.SMTPHost)
	mergeInt(&n.SMTPPort, &dst.NotifySMTPPortSet, sn.SMTPPort, src.NotifySMTPPortSet)
	mergeString(&n.SMTPUsername, sn.SMTPUsername)
	mergeString(&n.SMTPPassword, sn.SMTPPassword)
	mergeBool(&n.SMTPStartTLS, &dst.NotifyStartTLSSet, sn.SMTPStartTLS, src.NotifyStartTLSSet)
	mergeString(&n.EmailFrom, sn.EmailFrom)
	mergeList(&n.EmailTo, sn.EmailTo)
	mergeList(&n.WebhookURLs, sn.WebhookURLs)
	mergeString(&n.CustomScript, sn.CustomScript)
}

func mergeString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func mergeList(dst *[]string, src []string) {
	if len(src) > 0 {
		*dst = src
	}
}

func mergeInt(dst *int, dstSet *bool, src int, srcSet bool) {
	if srcSet {
		*dst, *dstSet = src, true
	}
}

func mergeBool(dst, dstSet *bool, src, srcSet bool) {
	if srcSet {
		*dst, *dstSet = src, true
	}
}
