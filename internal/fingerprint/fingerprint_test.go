package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecksum(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "empty string",
			text: "",
			want: "47DEQpj8HBSa+/TImW+5JCeuQeRkm5NMpJWZG3hSuFU=",
		},
		{
			name: "simple text",
			text: "hello world",
			want: "uU0nuZNNPgilLlLX2n2r+sSE7+N6U4DukIj3rOLvzek=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Checksum(tt.text))
		})
	}
}

func TestChecksumStable(t *testing.T) {
	text := "# A\n\nhello\n\n# B\n\nworld"
	assert.Equal(t, Checksum(text), Checksum(text))
}

func TestChecksumDiffers(t *testing.T) {
	assert.NotEqual(t, Checksum("# A\n\nhello"), Checksum("# A\n\nhello "))
	assert.NotEqual(t, Checksum("a"), Checksum("b"))
}

func TestEqual(t *testing.T) {
	text := "some document"
	assert.True(t, Equal(Checksum(text), text))
	assert.False(t, Equal(Checksum(text), text+"!"))
	assert.False(t, Equal("", ""), "empty marker must never match")
}
