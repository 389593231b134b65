package models

import "strings"

// ReasonCode is a machine code for declines, rejections and reopening appeals.
type ReasonCode string

const ReasonOther ReasonCode = "other"

// Order decline reasons
const (
	DeclineOutOfStock     ReasonCode = "out_of_stock"
	DeclineStoreClosed    ReasonCode = "store_closed"
	DeclineInvalidReceipt ReasonCode = "invalid_receipt"
	DeclineReceiptTimeout ReasonCode = "receipt_timeout"
	DeclineTechnicalIssue ReasonCode = "technical_issue"
	DeclineTooBusy        ReasonCode = "too_busy"
)

// Receipt rejection reasons
const (
	RejectBlurryImage     ReasonCode = "blurry_image"
	RejectWrongAmount     ReasonCode = "wrong_amount"
	RejectMissingRef      ReasonCode = "missing_reference"
	RejectNotAPaymentSlip ReasonCode = "not_a_payment"
)

// Reopening request reasons (customer side)
const (
	ReopenPaymentDelay     ReasonCode = "payment_delay"
	ReopenTechnicalIssue   ReasonCode = "technical_issue"
	ReopenWrongReceipt     ReasonCode = "wrong_receipt_uploaded"
	ReopenMisunderstanding ReasonCode = "misunderstanding"
)

// Reopening decline reasons (concessionaire side)
const (
	ReopenDeclineItemUnavailable ReasonCode = "item_unavailable"
	ReopenDeclineStoreClosed     ReasonCode = "store_closed"
	ReopenDeclineInvalidPayment  ReasonCode = "invalid_payment"
	ReopenDeclineTooLate         ReasonCode = "too_late"
)

// Reason is either a known code or Other carrying free text.
type Reason struct {
	Code ReasonCode
	Text string
}

func Known(code ReasonCode) Reason {
	return Reason{Code: code}
}

func Other(text string) Reason {
	return Reason{Code: ReasonOther, Text: strings.TrimSpace(text)}
}

func (r Reason) IsOther() bool {
	return r.Code == ReasonOther
}

// ReasonFromColumns rebuilds a Reason from its persisted code/text pair.
func ReasonFromColumns(code string, text *string) Reason {
	r := Reason{Code: ReasonCode(code)}
	if text != nil {
		r.Text = *text
	}
	return r
}

// Columns returns the values stored in the *_code / *_text columns.
func (r Reason) Columns() (string, *string) {
	if r.Text == "" {
		return string(r.Code), nil
	}
	text := r.Text
	return string(r.Code), &text
}

type reasonTable struct {
	messages map[ReasonCode]string
	fallback string
}

// message is total: unmapped codes fall back to the generic text, Other prefers its own text.
func (t reasonTable) message(r Reason) string {
	if r.IsOther() && r.Text != "" {
		return r.Text
	}
	if msg, ok := t.messages[r.Code]; ok {
		return msg
	}
	return t.fallback
}

func (t reasonTable) known(code ReasonCode) bool {
	if code == ReasonOther {
		return true
	}
	_, ok := t.messages[code]
	return ok
}

var orderDeclineReasons = reasonTable{
	messages: map[ReasonCode]string{
		DeclineOutOfStock:     "Some items in your order are out of stock.",
		DeclineStoreClosed:    "The concession is closed and cannot prepare your order.",
		DeclineInvalidReceipt: "Your payment receipt could not be verified.",
		DeclineReceiptTimeout: "No payment receipt was uploaded before the deadline.",
		DeclineTechnicalIssue: "The concession ran into a technical issue with your order.",
		DeclineTooBusy:        "The concession is too busy to take your order right now.",
	},
	fallback: "Your order was declined by the concession.",
}

var receiptRejectionReasons = reasonTable{
	messages: map[ReasonCode]string{
		RejectBlurryImage:     "The receipt image is blurry or unreadable. Please upload a clearer photo.",
		RejectWrongAmount:     "The amount on the receipt does not match your order total.",
		RejectMissingRef:      "The receipt does not show a reference number.",
		RejectNotAPaymentSlip: "The uploaded image is not a payment receipt.",
	},
	fallback: "Your payment receipt was rejected. Please upload a new one.",
}

var reopeningRequestReasons = reasonTable{
	messages: map[ReasonCode]string{
		ReopenPaymentDelay:     "My payment was delayed.",
		ReopenTechnicalIssue:   "I had a technical issue uploading my receipt.",
		ReopenWrongReceipt:     "I uploaded the wrong receipt.",
		ReopenMisunderstanding: "There was a misunderstanding about my order.",
	},
	fallback: "The customer asked to reopen the order.",
}

var reopeningDeclineReasons = reasonTable{
	messages: map[ReasonCode]string{
		ReopenDeclineItemUnavailable: "Your reopening request was declined because the items are no longer available.",
		ReopenDeclineStoreClosed:     "Your reopening request was declined because the concession is closed.",
		ReopenDeclineInvalidPayment:  "Your reopening request was declined because the payment could not be verified.",
		ReopenDeclineTooLate:         "Your reopening request was declined because it is too late to prepare the order.",
	},
	fallback: "Your reopening request was declined by the concession.",
}

func OrderDeclineMessage(r Reason) string { return orderDeclineReasons.message(r) }
func ReceiptRejectionMessage(r Reason) string { return receiptRejectionReasons.message(r) }
func ReopeningRequestMessage(r Reason) string { return reopeningRequestReasons.message(r) }
func ReopeningDeclineMessage(r Reason) string { return reopeningDeclineReasons.message(r) }
func IsOrderDeclineReason(c ReasonCode) bool { return orderDeclineReasons.known(c) }
func IsReceiptRejectionReason(c ReasonCode) bool { return receiptRejectionReasons.known(c) }
func IsReopeningRequestReason(c ReasonCode) bool { return reopeningRequestReasons.known(c) }
func IsReopeningDeclineReason(c ReasonCode) bool { return reopeningDeclineReasons.known(c) }

// ReopeningApprovalMessage is sent to the customer when the concession reinstates an order.
const ReopeningApprovalMessage = "Your reopening request was approved. Your order is active again."
