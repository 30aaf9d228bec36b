package enums

import "slices"

// FulfillmentStep names one side effect of the post-order saga. The order of
// FulfillmentSteps is the order the saga attempts them in.
type FulfillmentStep string

const (
	StepPurchaseOrderDocument FulfillmentStep = "purchase_order_document"
	StepVendorEmail           FulfillmentStep = "vendor_email"
	StepVendorSMS             FulfillmentStep = "vendor_sms"
	StepCustomerSMS           FulfillmentStep = "customer_sms"
	StepCustomerInApp         FulfillmentStep = "customer_in_app"
	StepVendorInApp           FulfillmentStep = "vendor_in_app"
	StepCustomerEmail         FulfillmentStep = "customer_email"
)

var FulfillmentSteps = []FulfillmentStep{
	StepPurchaseOrderDocument,
	StepVendorEmail,
	StepVendorSMS,
	StepCustomerSMS,
	StepCustomerInApp,
	StepVendorInApp,
	StepCustomerEmail,
}

func (s FulfillmentStep) String() string {
	return string(s)
}

func (s FulfillmentStep) IsValid() bool {
	return slices.Contains(FulfillmentSteps, s)
}

func ParseFulfillmentStep(value string) (FulfillmentStep, error) {
	return member(FulfillmentSteps, "fulfillment step", value, value)
}

// StepStatus is the outcome of one step attempt.
type StepStatus string

const (
	StepStatusSucceeded StepStatus = "succeeded"
	StepStatusFailed    StepStatus = "failed"
	StepStatusSkipped   StepStatus = "skipped"
)

// Failed reports whether the outcome counts against saga success.
func (s StepStatus) Failed() bool {
	return s == StepStatusFailed || s == StepStatusSkipped
}

// SagaStatus is the saga-level state machine: started then completed.
type SagaStatus string

const (
	SagaStatusStarted   SagaStatus = "started"
	SagaStatusCompleted SagaStatus = "completed"
)
