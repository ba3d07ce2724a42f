package wire

import (
	"encoding/json"
	"fmt"
)

// Envelope is the outer shape shared by every inbound federation message.
// Unknown fields are ignored; the payload stays raw until the subject is
// known and DecodeInto picks the concrete type.
type Envelope struct {
	NodeID string          `json:"nodeId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// TaskReceived reports a sighting of a task by one reporter. The hash is
// salted upstream, so equal hashes from different reporters denote the same
// logical task.
type TaskReceived struct {
	TaskIDHash string `json:"taskIdHash"`
	ChainID    string `json:"chainId,omitempty"`
	TaskType   string `json:"taskType,omitempty"`
}

// TaskCompleted reports the terminal state of a previously received task.
type TaskCompleted struct {
	TaskIDHash          string `json:"taskIdHash"`
	Success             *bool  `json:"success,omitempty"`
	ExecutionTimeBucket string `json:"executionTimeBucket,omitempty"`
	GasUsedBucket       string `json:"gasUsedBucket,omitempty"`
	Cached              *bool  `json:"cached,omitempty"`
}

// InvoiceCreated reports a sighting of an invoice.
type InvoiceCreated struct {
	InvoiceIDHash       string `json:"invoiceIdHash"`
	TaskIDHash          string `json:"taskIdHash,omitempty"`
	ChainID             string `json:"chainId,omitempty"`
	StepsComputedBucket string `json:"stepsComputedBucket,omitempty"`
	MemoryUsedBucket    string `json:"memoryUsedBucket,omitempty"`
	Operation           string `json:"operation,omitempty"`
}

// Heartbeat reports reporter liveness and coarse self-description. All
// fields are optional; an empty heartbeat still refreshes the node's
// last-seen time.
type Heartbeat struct {
	Status            string `json:"status,omitempty"`
	TotalTasksBucket  string `json:"totalTasksBucket,omitempty"`
	ActiveTasksBucket string `json:"activeTasksBucket,omitempty"`
	ContinentBucket   string `json:"continentBucket,omitempty"`
	LocationBucket    string `json:"locationBucket,omitempty"`
}

// DecodeEnvelope parses the outer envelope of an inbound message. A nodeId,
// when present, must already have the reporter identifier shape; everything
// else about the payload is checked later by DecodeInto.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed envelope: %w", err)
	}
	if env.NodeID != "" && !ValidNodeID(env.NodeID) {
		return nil, fmt.Errorf("invalid nodeId %.48q", env.NodeID)
	}
	return &env, nil
}

// DecodeInto unmarshals the envelope payload into msg and validates it. An
// absent payload decodes as the zero value, leaving required-field checks to
// the message's own Validate.
func (e *Envelope) DecodeInto(msg interface{ Validate() error }) error {
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, msg); err != nil {
			return fmt.Errorf("malformed data: %w", err)
		}
	}
	return msg.Validate()
}

// Validate checks the payload against the federation field rules.
func (m *TaskReceived) Validate() error {
	if !ValidHash(m.TaskIDHash) {
		return fmt.Errorf("invalid taskIdHash %.80q", m.TaskIDHash)
	}
	if !ValidLabel(m.ChainID) {
		return fmt.Errorf("chainId too long (%d chars)", len(m.ChainID))
	}
	if !ValidLabel(m.TaskType) {
		return fmt.Errorf("taskType too long (%d chars)", len(m.TaskType))
	}
	return nil
}

// Validate checks the payload against the federation field rules.
func (m *TaskCompleted) Validate() error {
	if !ValidHash(m.TaskIDHash) {
		return fmt.Errorf("invalid taskIdHash %.80q", m.TaskIDHash)
	}
	if m.ExecutionTimeBucket != "" && !ValidBucket(m.ExecutionTimeBucket) {
		return fmt.Errorf("invalid executionTimeBucket %.32q", m.ExecutionTimeBucket)
	}
	if m.GasUsedBucket != "" && !ValidBucket(m.GasUsedBucket) {
		return fmt.Errorf("invalid gasUsedBucket %.32q", m.GasUsedBucket)
	}
	return nil
}

// Validate checks the payload against the federation field rules.
func (m *InvoiceCreated) Validate() error {
	if !ValidHash(m.InvoiceIDHash) {
		return fmt.Errorf("invalid invoiceIdHash %.80q", m.InvoiceIDHash)
	}
	if m.TaskIDHash != "" && !ValidHash(m.TaskIDHash) {
		return fmt.Errorf("invalid taskIdHash %.80q", m.TaskIDHash)
	}
	if m.StepsComputedBucket != "" && !ValidBucket(m.StepsComputedBucket) {
		return fmt.Errorf("invalid stepsComputedBucket %.32q", m.StepsComputedBucket)
	}
	if m.MemoryUsedBucket != "" && !ValidBucket(m.MemoryUsedBucket) {
		return fmt.Errorf("invalid memoryUsedBucket %.32q", m.MemoryUsedBucket)
	}
	if !ValidLabel(m.ChainID) {
		return fmt.Errorf("chainId too long (%d chars)", len(m.ChainID))
	}
	if !ValidLabel(m.Operation) {
		return fmt.Errorf("operation too long (%d chars)", len(m.Operation))
	}
	return nil
}

// Validate checks the payload against the federation field rules.
func (m *Heartbeat) Validate() error {
	if m.TotalTasksBucket != "" && !ValidBucket(m.TotalTasksBucket) {
		return fmt.Errorf("invalid totalTasksBucket %.32q", m.TotalTasksBucket)
	}
	if m.ActiveTasksBucket != "" && !ValidBucket(m.ActiveTasksBucket) {
		return fmt.Errorf("invalid activeTasksBucket %.32q", m.ActiveTasksBucket)
	}
	if !ValidLabel(m.Status) {
		return fmt.Errorf("status too long (%d chars)", len(m.Status))
	}
	if !ValidLabel(m.ContinentBucket) {
		return fmt.Errorf("continentBucket too long (%d chars)", len(m.ContinentBucket))
	}
	if m.LocationBucket != "" && !ValidLocation(m.LocationBucket) {
		return fmt.Errorf("invalid locationBucket %.32q", m.LocationBucket)
	}
	return nil
}
