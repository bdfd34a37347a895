package ingest

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"
)

// ExtractText extracts the text content from an email message.
// For multipart messages it collects the text/plain parts.
func ExtractText(msg *mail.Message) (string, error) {
	contentType := msg.Header.Get("Content-Type")

	if !strings.Contains(strings.ToLower(contentType), "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	boundary, ok := params["boundary"]
	if !ok {
		bodyBytes, err := io.ReadAll(msg.Body)
		if err != nil {
			return "", err
		}
		return string(bodyBytes), nil
	}

	mr := multipart.NewReader(msg.Body, boundary)

	var textContent bytes.Buffer
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			if textContent.Len() > 0 {
				return textContent.String(), nil
			}
			bodyBytes, err := io.ReadAll(msg.Body)
			if err != nil {
				return "", err
			}
			return string(bodyBytes), nil
		}

		partContentType := strings.ToLower(part.Header.Get("Content-Type"))
		if strings.Contains(partContentType, "text/plain") {
			partBytes, err := io.ReadAll(part)
			if err != nil {
				continue
			}
			textContent.Write(partBytes)
			textContent.WriteString("\n")
		}
		// Nested multiparts and attachments are skipped.
	}

	if textContent.Len() > 0 {
		return textContent.String(), nil
	}
	return "[No text content found in multipart message]", nil
}
