package api

import "encoding/json"

// ChatRequest is the payload sent to the agent chat endpoint.
type ChatRequest struct {
	Message         string `json:"message"`
	Debug           bool   `json:"debug,omitempty"`
	RequestGreeting bool   `json:"requestGreeting,omitempty"`
}

// ChatResponse is the agent's reply. ToolResult is the raw value handed to
// the directive parser; Plan is kept only for the debug view.
type ChatResponse struct {
	Reply      string          `json:"reply"`
	ToolResult json.RawMessage `json:"tool_result"`
	Plan       json.RawMessage `json:"plan"`
}

// ImportFile is one uploaded statement, base64-encoded whole.
type ImportFile struct {
	Filename      string `json:"filename"`
	ContentBase64 string `json:"content_base64"`
}

// ImportRequest is the payload for the statement import endpoint.
type ImportRequest struct {
	Files          []ImportFile `json:"files"`
	ImportMode     string       `json:"import_mode"`
	ModifiedAction string       `json:"modified_action"`
}

// DateRange is the detected statement period, as reported by the backend.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ImportOutcome is the statement import result. The backend discriminates the
// three outcomes by the ok/type fields, not by HTTP status: a missing or true
// ok means the import committed, ok=false splits into a clarification request
// and a hard error by type.
type ImportOutcome struct {
	OK      *bool  `json:"ok,omitempty"`
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`

	ImportedCount   int        `json:"imported_count"`
	DateRange       *DateRange `json:"date_range,omitempty"`
	BankAccountName string     `json:"bank_account_name,omitempty"`
}

// Success reports whether the import committed.
func (o *ImportOutcome) Success() bool {
	return o.OK == nil || *o.OK
}

// Clarification reports whether the backend needs a conversational follow-up
// (for example an ambiguous target bank account).
func (o *ImportOutcome) Clarification() bool {
	return !o.Success() && o.Type == "clarification"
}

// AliasResolveStats summarizes one merchant-alias resolution run.
type AliasResolveStats struct {
	Processed           int      `json:"processed"`
	Applied             int      `json:"applied"`
	Failed              int      `json:"failed"`
	CreatedEntities     int      `json:"created_entities"`
	LinkedAliases       int      `json:"linked_aliases"`
	UpdatedTransactions int      `json:"updated_transactions"`
	Warnings            []string `json:"warnings,omitempty"`
}

// AliasResolveResult is the response of the resolve-pending endpoint.
type AliasResolveResult struct {
	OK            bool              `json:"ok"`
	Type          string            `json:"type"`
	Batches       int               `json:"batches"`
	PendingBefore int               `json:"pending_before"`
	PendingAfter  int               `json:"pending_after"`
	Stats         AliasResolveStats `json:"stats"`
}
