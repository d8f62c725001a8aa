package hiragana

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// KagomeTokenizer adapts kagome with the IPA dictionary.
type KagomeTokenizer struct {
	t *tokenizer.Tokenizer
}

// LoadKagome is a Loader for the embedded IPA dictionary.
func LoadKagome() (Tokenizer, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &KagomeTokenizer{t: t}, nil
}

func (k *KagomeTokenizer) Tokenize(text string) (tokens []Token, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panic: %v", r)
		}
	}()
	for _, tok := range k.t.Tokenize(text) {
		reading, _ := tok.Reading()
		tokens = append(tokens, Token{Surface: tok.Surface, Reading: reading})
	}
	return tokens, nil
}
