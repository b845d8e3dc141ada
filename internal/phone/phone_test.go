package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/support-inbox/internal/apperr"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"+34600111222", "+34600111222"},
		{"34600111222", "+34600111222"},
		{"+34 600 111 222", "+34600111222"},
		{"(+34) 600-111-222", "+34600111222"},
		{"whatsapp:+34600111222", "+34600111222"},
		{"  +1 (415) 523-8886 ", "+14155238886"},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.expected, got, tt.input)
	}
}

func TestNormalizeRejectsShortNumbers(t *testing.T) {
	for _, input := range []string{"", "+", "12345", "abc", "whatsapp:"} {
		_, err := Normalize(input)
		require.Error(t, err, input)
		assert.Equal(t, apperr.KindInvalidPhone, apperr.KindOf(err), input)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"+34600111222",
		"34 600 111 222",
		"whatsapp:+5527997799027",
		"+1-415-523-8886",
		"00 44 20 7946 0958",
	}

	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice, in)

		again, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, once, again, "normalize must be deterministic")
	}
}

func TestNormalizerMinDigits(t *testing.T) {
	n := NewNormalizer(4)
	got, err := n.Normalize("12-34")
	require.NoError(t, err)
	assert.Equal(t, "+1234", got)

	n = NewNormalizer(12)
	_, err = n.Normalize("+34600111222")
	assert.True(t, apperr.Is(err, apperr.KindInvalidPhone))

	assert.Equal(t, DefaultMinDigits, NewNormalizer(0).MinDigits)
}

func TestChannelAddress(t *testing.T) {
	assert.Equal(t, "whatsapp:+34600111222", ChannelAddress("whatsapp", "+34600111222"))
	assert.Equal(t, "+34600111222", ChannelAddress("", "+34600111222"))
}
