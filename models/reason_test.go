package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReasonMessages(t *testing.T) {
	assert.Equal(t, "No payment receipt was uploaded before the deadline.", OrderDeclineMessage(Known(DeclineReceiptTimeout)))
	assert.Equal(t, "Out of oat milk", OrderDeclineMessage(Other("  Out of oat milk ")))
	assert.Equal(t, "Your order was declined by the concession.", OrderDeclineMessage(Known("flooded")))
	assert.Equal(t, "Your order was declined by the concession.", OrderDeclineMessage(Other("")))

	assert.Equal(t, "My payment was delayed.", ReopeningRequestMessage(Known(ReopenPaymentDelay)))
	assert.Contains(t, ReceiptRejectionMessage(Known(RejectWrongAmount)), "does not match")
	assert.Contains(t, ReopeningDeclineMessage(Known("nope")), "declined by the concession")

	// the same code can mean different things per table
	assert.True(t, IsOrderDeclineReason(DeclineTechnicalIssue))
	assert.True(t, IsReopeningRequestReason(ReopenTechnicalIssue))
	assert.False(t, IsReceiptRejectionReason(DeclineTechnicalIssue))
	assert.True(t, IsReopeningDeclineReason(ReasonOther))
}

func TestReasonColumnsRoundTrip(t *testing.T) {
	code, text := Known(DeclineTooBusy).Columns()
	assert.Equal(t, "too_busy", code)
	assert.Nil(t, text)

	code, text = Other("Gas ran out").Columns()
	assert.Equal(t, "other", code)
	require.NotNil(t, text)
	assert.Equal(t, Other("Gas ran out"), ReasonFromColumns(code, text))
}

func TestOrderDeclineAccessors(t *testing.T) {
	o := &Order{}
	_, ok := o.DeclineReason()
	assert.False(t, ok)
	assert.Empty(t, o.DeclineMessage())

	code := string(DeclineStoreClosed)
	o.DeclineReasonCode = &code
	assert.Equal(t, "The concession is closed and cannot prepare your order.", o.DeclineMessage())

	o.ID, o.ConcessionID = 42, 3
	assert.Equal(t, "ORD-3-000042", o.Reference())
}

func TestReopeningDecisionMessage(t *testing.T) {
	r := &ReopeningRequest{Status: ReopeningPending}
	assert.Empty(t, r.DecisionMessage())

	r.Status = ReopeningApproved
	assert.Equal(t, ReopeningApprovalMessage, r.DecisionMessage())

	code, text := Other("Kitchen closed early").Columns()
	r.Status, r.DeclineReasonCode, r.DeclineReasonText = ReopeningDeclined, &code, text
	assert.Equal(t, "Kitchen closed early", r.DecisionMessage())
}
