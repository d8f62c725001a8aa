package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fakeyudi/minutes/internal/storage"
	"github.com/fakeyudi/minutes/internal/timeline"
)

// KeyStorageKey stores the last committed API key.
const KeyStorageKey = "gemini_api_key"

// DefaultModel is used when none is configured.
const DefaultModel = "gemini-2.5-flash"

const (
	verifyPrompt    = "こんにちは"
	summarizePrompt = "以下の音声認識テキストを要約してください。主要なポイントを簡潔にまとめてください。\n\n"
	speakersHeader  = "以下は複数の話者による会話の文字起こしです。各話者の発言内容を要約してください。\n\n"
	identifyPrompt  = `以下は音声認識で書き起こした会話のテキストです。発言を話者ごとに分割し、発言順に並べてください。
音声認識の誤認識と思われる箇所は、文脈から推測して正しい表現に修正してください。
話者名が分からない場合は「話者A」「話者B」のように表記してください。
出力は次の形式のJSONのみとし、説明文は一切含めないでください。
{"utterances":[{"name":"話者名","text":"発言内容"}]}

テキスト:
`
)

var (
	fenceOpen  = regexp.MustCompile("^```[A-Za-z]*\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// VerifyResult reports a key check.
type VerifyResult struct {
	OK      bool
	Message string
}

// SpeakerResult is the outcome of IdentifySpeakers. Document is nil when the
// model's reply could not be parsed; Raw always holds the reply.
type SpeakerResult struct {
	Document *timeline.Document
	Raw      string
	Usage    Usage
}

// Adapter owns the API key and exposes the operations the app needs.
type Adapter struct {
	mu     sync.RWMutex
	client *Client
	kv     storage.Store
	model  string
	opts   CallOptions
	apiKey string
	logger *zap.Logger
}

// NewAdapter returns an Adapter with the key read from kv, if any.
func NewAdapter(client *Client, kv storage.Store, model string, opts CallOptions, logger *zap.Logger) *Adapter {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Adapter{client: client, kv: kv, model: model, opts: opts, logger: logger}
	if kv != nil {
		key, err := kv.Get(KeyStorageKey)
		switch {
		case err == nil:
			a.apiKey = strings.TrimSpace(key)
		case !errors.Is(err, storage.ErrNotFound):
			logger.Warn("reading stored API key failed", zap.Error(err))
		}
	}
	return a
}

// Model returns the model used for calls.
func (a *Adapter) Model() string { return a.model }

// SetKey makes key active and persists it.
func (a *Adapter) SetKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrNoAPIKey
	}
	a.mu.Lock()
	a.apiKey = key
	a.mu.Unlock()
	if a.kv != nil {
		if err := a.kv.Set(KeyStorageKey, key); err != nil {
			return fmt.Errorf("saving API key: %w", err)
		}
	}
	a.logger.Info("API key set")
	return nil
}

// UseKey makes key active for this process without persisting it. It
// overrides a stored key; a blank key is ignored.
func (a *Adapter) UseKey(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.apiKey = key
}

// ClearKey forgets the active key and removes it from storage.
func (a *Adapter) ClearKey() error {
	a.mu.Lock()
	a.apiKey = ""
	a.mu.Unlock()
	if a.kv != nil {
		if err := a.kv.Remove(KeyStorageKey); err != nil {
			return fmt.Errorf("clearing API key: %w", err)
		}
	}
	a.logger.Info("API key cleared")
	return nil
}

// HasKey reports whether a key is active.
func (a *Adapter) HasKey() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.apiKey != ""
}

func (a *Adapter) key() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.apiKey
}

// Verify makes one real call with key, or the active key when key is empty.
// A key passed explicitly becomes active only if the call succeeds.
func (a *Adapter) Verify(ctx context.Context, key string) VerifyResult {
	explicit := strings.TrimSpace(key)
	k := explicit
	if k == "" {
		k = a.key()
	}
	if k == "" {
		return VerifyResult{Message: ErrNoAPIKey.Error()}
	}

	if _, err := a.client.Call(ctx, k, verifyPrompt, a.model, CallOptions{MaxRetries: 0, BaseDelay: a.opts.BaseDelay}); err != nil {
		a.logger.Warn("API key verification failed", zap.Error(err))
		return VerifyResult{Message: Describe(err)}
	}
	if explicit != "" {
		if err := a.SetKey(explicit); err != nil {
			return VerifyResult{Message: err.Error()}
		}
	}
	return VerifyResult{OK: true, Message: "API key is valid"}
}

// Call sends prompt with the active key and configured retry bounds.
func (a *Adapter) Call(ctx context.Context, prompt string) (*Response, error) {
	k := a.key()
	if k == "" {
		return nil, ErrNoAPIKey
	}
	return a.client.Call(ctx, k, prompt, a.model, a.opts)
}

func (a *Adapter) precheck(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if !a.HasKey() {
		return ErrNoAPIKey
	}
	return nil
}

// Summarize returns a concise summary of text.
func (a *Adapter) Summarize(ctx context.Context, text string) (string, error) {
	if err := a.precheck(text); err != nil {
		return "", err
	}
	resp, err := a.Call(ctx, summarizePrompt+text)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// SummarizeSpeakers summarizes what each speaker said, keeping first-seen
// speaker order.
func (a *Adapter) SummarizeSpeakers(ctx context.Context, utterances []timeline.Utterance) (string, error) {
	var order []string
	byName := make(map[string][]string)
	for _, u := range utterances {
		if strings.TrimSpace(u.Text) == "" {
			continue
		}
		if _, seen := byName[u.Name]; !seen {
			order = append(order, u.Name)
		}
		byName[u.Name] = append(byName[u.Name], u.Text)
	}
	if len(order) == 0 {
		return "", ErrEmptyText
	}
	if !a.HasKey() {
		return "", ErrNoAPIKey
	}

	var sb strings.Builder
	sb.WriteString(speakersHeader)
	for _, name := range order {
		fmt.Fprintf(&sb, "【%s】\n%s\n\n", name, strings.Join(byName[name], "\n"))
	}
	resp, err := a.Call(ctx, sb.String())
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// IdentifySpeakers splits text into named utterances. A reply that is not the
// expected JSON is still a success, returned with a nil Document.
func (a *Adapter) IdentifySpeakers(ctx context.Context, text string) (*SpeakerResult, error) {
	if err := a.precheck(text); err != nil {
		return nil, err
	}
	resp, err := a.Call(ctx, identifyPrompt+text)
	if err != nil {
		return nil, err
	}

	result := &SpeakerResult{Raw: resp.Text, Usage: resp.Usage}
	doc, err := ParseUtterances(resp.Text)
	if err != nil {
		a.logger.Warn("speaker reply was not valid JSON", zap.Error(err))
		return result, nil
	}
	result.Document = doc
	return result, nil
}

// ParseUtterances decodes a {"utterances":[...]} reply, ignoring any code
// fence around it.
func ParseUtterances(reply string) (*timeline.Document, error) {
	s := strings.TrimSpace(reply)
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")

	var raw struct {
		Utterances json.RawMessage `json:"utterances"`
	}
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decoding reply: %w", err)
	}
	if len(raw.Utterances) == 0 || raw.Utterances[0] != '[' {
		return nil, errors.New("reply has no utterances array")
	}
	var doc timeline.Document
	if err := json.Unmarshal(raw.Utterances, &doc.Utterances); err != nil {
		return nil, fmt.Errorf("decoding utterances: %w", err)
	}
	return &doc, nil
}

// Stats returns rate usage for every tracked model.
func (a *Adapter) Stats() []ModelStats {
	if a.client.ledger == nil {
		return nil
	}
	return a.client.ledger.Stats()
}
