package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatFromURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expected  string
		expectErr bool
	}{
		{name: "https link", url: "https://t.me/mychannel", expected: "@mychannel"},
		{name: "http link", url: "http://t.me/mychannel", expected: "@mychannel"},
		{name: "bare link", url: "t.me/mychannel", expected: "@mychannel"},
		{name: "trailing slash", url: "https://t.me/mychannel/", expected: "@mychannel"},
		{name: "already a handle", url: "@mychannel", expected: "@mychannel"},
		{name: "invite link is not checkable", url: "https://t.me/+AbCdEf123", expectErr: true},
		{name: "nested path is not checkable", url: "https://t.me/mychannel/42", expectErr: true},
		{name: "empty name", url: "https://t.me/", expectErr: true},
		{name: "foreign url", url: "https://example.com/mychannel", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat, err := ChatFromURL(tt.url)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, chat)
		})
	}
}
