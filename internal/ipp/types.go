package ipp

// Operation names understood by the transport.
const (
	OperationGetPrinterAttributes = "Get-Printer-Attributes"
)

// StatusSuccessfulOK is the only status code treated as success.
const StatusSuccessfulOK = "successful-ok"

// Attribute names the engine reads.
const (
	AttrQueuedJobCount  = "queued-job-count"
	AttrMakeAndModel    = "printer-make-and-model"
	AttrIsAcceptingJobs = "printer-is-accepting-jobs"
	AttrPrinterState    = "printer-state"
	AttrPrinterUpTime   = "printer-up-time"
	AttrMarkerNames     = "marker-names"
	AttrMarkerLevels    = "marker-levels"
	StateProcessing     = "processing"
)

// BaselineAttributes are requested on every query for diagnostics.
var BaselineAttributes = []string{
	AttrQueuedJobCount,
	AttrMakeAndModel,
	AttrIsAcceptingJobs,
	AttrPrinterState,
	AttrPrinterUpTime,
}

// ConsumableAttributes are requested only when consumable tracking is enabled.
var ConsumableAttributes = []string{AttrMarkerNames, AttrMarkerLevels}

// AttributeBag is the printer-attributes group of a response.
// Single-valued attributes hold a scalar; multi-valued ones hold a []any.
type AttributeBag map[string]any

// OperationAttributes is the operation-attributes group of a request.
type OperationAttributes struct {
	RequestedAttributes []string `json:"requested-attributes"`
}

// Payload is the request body handed to a Transport.
type Payload struct {
	OperationAttributes OperationAttributes `json:"operation-attributes-tag"`
}

// Response is what a Transport returns for one operation.
type Response struct {
	StatusCode        string       `json:"statusCode"`
	PrinterAttributes AttributeBag `json:"printer-attributes-tag"`
}
