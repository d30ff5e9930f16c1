package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/sydney/protocol"
)

func TestLoadAttachment(t *testing.T) {
	a, err := loadAttachment("")
	require.NoError(t, err)
	assert.Nil(t, a)

	a, err = loadAttachment("https://img.test/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "https://img.test/cat.png", a.URL)
	assert.Nil(t, a.Data)

	path := filepath.Join(t.TempDir(), "cat.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o600))
	a, err = loadAttachment(path)
	require.NoError(t, err)
	assert.Empty(t, a.URL)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, a.Data)
}

func TestLoadAttachment_Errors(t *testing.T) {
	_, err := loadAttachment(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read image")

	empty := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = loadAttachment(empty)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestAskFlags(t *testing.T) {
	setFlags(t, askCmd, map[string]string{
		"citations":   "true",
		"suggestions": "true",
		"no-search":   "true",
		"context":     "page text",
		"query":       "item.result.value",
		"stream":      "true",
		"image":       "https://img.test/cat.png",
	})

	opts, render, stream, err := askFlags(askCmd)
	require.NoError(t, err)
	assert.True(t, stream)
	assert.True(t, opts.Citations)
	assert.True(t, opts.Suggestions)
	assert.True(t, opts.NoSearch)
	assert.True(t, opts.Raw, "a query implies raw frames")
	assert.Equal(t, "page text", opts.Context)
	require.NotNil(t, opts.Attachment)
	assert.Equal(t, "https://img.test/cat.png", opts.Attachment.URL)

	assert.True(t, render.raw)
	assert.True(t, render.suggestions)
	assert.Equal(t, "item.result.value", render.query)
}

func TestAskFlags_Defaults(t *testing.T) {
	opts, render, stream, err := askFlags(askCmd)
	require.NoError(t, err)
	assert.False(t, stream)
	assert.False(t, opts.NoSearch)
	assert.False(t, opts.Raw)
	assert.Nil(t, opts.Attachment)
	assert.Equal(t, renderOptions{}, render)
}

func TestStyleFlag(t *testing.T) {
	style, err := styleFlag(askCmd)
	require.NoError(t, err)
	assert.Equal(t, protocol.ConversationStyle(0), style)

	setFlags(t, askCmd, map[string]string{"style": "Creative"})
	style, err = styleFlag(askCmd)
	require.NoError(t, err)
	assert.Equal(t, protocol.StyleCreative, style)
}

func TestStyleFlag_Unknown(t *testing.T) {
	setFlags(t, askCmd, map[string]string{"style": "chaotic"})
	_, err := styleFlag(askCmd)
	var use *protocol.UnknownStyleError
	require.ErrorAs(t, err, &use)
}

func TestComposeFlags(t *testing.T) {
	setFlags(t, composeCmd, map[string]string{
		"tone":   "whimsical",
		"format": "blog post",
		"length": "long",
	})

	opts, err := composeFlags(composeCmd)
	require.NoError(t, err)
	assert.Equal(t, protocol.CustomTone("whimsical"), opts.Tone)
	assert.Equal(t, protocol.FormatBlogPost, opts.Format)
	assert.Equal(t, protocol.LengthLong, opts.Length)
}

func TestComposeFlags_Invalid(t *testing.T) {
	setFlags(t, composeCmd, map[string]string{"format": "sonnet"})
	_, err := composeFlags(composeCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--format")

	setFlags(t, composeCmd, map[string]string{"format": "email", "length": "epic"})
	_, err = composeFlags(composeCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--length")
}

func TestFlagLookupErrors(t *testing.T) {
	undefined := &cobra.Command{Use: "bare"}

	_, _, _, err := askFlags(undefined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get stream flag")

	_, err = composeFlags(undefined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get tone flag")

	_, err = styleFlag(undefined)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get style flag")

	mistyped := &cobra.Command{Use: "mistyped"}
	mistyped.Flags().Int("style", 0, "")
	_, err = styleFlag(mistyped)
	require.Error(t, err)
}

func TestFlagReader_KeepsFirstError(t *testing.T) {
	cmd := &cobra.Command{Use: "partial"}
	cmd.Flags().Int("parallel", 3, "")

	flags := readFlags(cmd)
	assert.Equal(t, 3, flags.Int("parallel"))
	assert.NoError(t, flags.Err())

	assert.False(t, flags.Bool("fail-fast"))
	assert.Empty(t, flags.String("style"))
	require.Error(t, flags.Err())
	assert.Contains(t, flags.Err().Error(), "fail-fast")
}
