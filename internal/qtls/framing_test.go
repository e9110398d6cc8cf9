package qtls

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func handshakeMsg(body []byte) []byte {
	n := len(body)
	return append([]byte{tlsHandshakeTypeClientHello, byte(n >> 16), byte(n >> 8), byte(n)}, body...)
}

func TestCompleteMessagesLength(t *testing.T) {
	m1 := handshakeMsg([]byte("hello"))
	m2 := handshakeMsg([]byte("world!"))

	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, 0, CompleteMessagesLength(nil))
	})

	t.Run("one complete message", func(t *testing.T) {
		assert.Equal(t, len(m1), CompleteMessagesLength(m1))
	})

	t.Run("two complete messages", func(t *testing.T) {
		buf := append(append([]byte{}, m1...), m2...)
		assert.Equal(t, len(m1)+len(m2), CompleteMessagesLength(buf))
	})

	t.Run("trailing partial message", func(t *testing.T) {
		buf := append(append([]byte{}, m1...), m2[:len(m2)-2]...)
		assert.Equal(t, len(m1), CompleteMessagesLength(buf))
	})

	t.Run("partial header", func(t *testing.T) {
		buf := m1[:3]
		assert.Equal(t, 0, CompleteMessagesLength(buf))
	})
}
