package ingest

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTestMessage(t *testing.T, raw string) *mail.Message {
	t.Helper()
	msg, err := mail.ReadMessage(strings.NewReader(raw))
	require.NoError(t, err)
	return msg
}

func TestExtractTextPlainMessage(t *testing.T) {
	raw := "From: a@example.com\r\nSubject: hi\r\n\r\nplain body\r\n"

	text, err := ExtractText(parseTestMessage(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "plain body\r\n", text)
}

func TestExtractTextMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@example.com",
		"Content-Type: multipart/alternative; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"the text part",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>the html part</p>",
		"--BOUNDARY--",
		"",
	}, "\r\n")

	text, err := ExtractText(parseTestMessage(t, raw))
	require.NoError(t, err)
	assert.Contains(t, text, "the text part")
	assert.NotContains(t, text, "html part")
}

func TestExtractTextMultipartWithoutTextPart(t *testing.T) {
	raw := strings.Join([]string{
		"From: a@example.com",
		"Content-Type: multipart/mixed; boundary=BOUNDARY",
		"",
		"--BOUNDARY",
		"Content-Type: application/pdf",
		"",
		"binarybytes",
		"--BOUNDARY--",
		"",
	}, "\r\n")

	text, err := ExtractText(parseTestMessage(t, raw))
	require.NoError(t, err)
	assert.Equal(t, "[No text content found in multipart message]", text)
}
