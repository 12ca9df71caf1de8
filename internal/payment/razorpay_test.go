package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"event": "payment.captured",
		"payload": {"payment": {"entity": {
			"id": "pay_ABC123",
			"status": "captured",
			"notes": {"reservation_id": "42", "code": "R-07"}
		}}}
	}`)
	id, ref, ok := ParseWebhook(body)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, "pay_ABC123", ref)
}

func TestParseWebhookForeignPayload(t *testing.T) {
	_, _, ok := ParseWebhook([]byte(`{"event": "payment.captured", "payload": {"payment": {"entity": {"id": "pay_X", "notes": {}}}}}`))
	assert.False(t, ok, "payload without our reservation note is ignored")

	_, _, ok = ParseWebhook([]byte(`not json`))
	assert.False(t, ok)

	_, _, ok = ParseWebhook([]byte(`{"payload": {"payment": {"entity": {"notes": {"reservation_id": "abc"}}}}}`))
	assert.False(t, ok, "non-numeric reservation id is rejected")
}
