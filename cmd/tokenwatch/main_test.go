package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenWatch/internal/config"
)

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/tokenwatch?sslmode=disable",
		redactDSN("postgres://app:s3cret@db:5432/tokenwatch?sslmode=disable"))
	assert.Equal(t, "postgres://db/tokenwatch", redactDSN("postgres://db/tokenwatch"))
	assert.Equal(t, "host=db user=app", redactDSN("host=db user=app"))
}

func TestTokensFromSpecs(t *testing.T) {
	tokens, err := tokensFromSpecs(config.DefaultSeedTokens)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	assert.Equal(t, "Ethereum", tokens[0].Name)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", tokens[0].Address)

	_, err = tokensFromSpecs([]config.TokenSpec{{Name: "Bad", Address: "0x12"}})
	assert.Error(t, err)
}

func TestNewSender(t *testing.T) {
	s, err := newSender(config.Config{Notifier: "file", OutboxPath: t.TempDir() + "/outbox.jsonl"}, nil)
	require.NoError(t, err)
	assert.NotNil(t, s)

	_, err = newSender(config.Config{Notifier: "smtp"}, nil)
	assert.Error(t, err)

	_, err = newSender(config.Config{Notifier: "sms"}, nil)
	assert.Error(t, err)
}
