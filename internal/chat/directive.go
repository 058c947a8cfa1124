package chat

import (
	"encoding/json"
	"strings"
)

// Directive is a structured UI instruction the agent embeds in a reply.
//
// The wire payload is an untyped JSON blob; ParseDirective classifies it into
// exactly one of the closed set of variants below, or nil when nothing
// matches. Directives are immutable once constructed and owned by the Message
// they are attached to.
type Directive interface {
	directive()
}

// ImportDirective asks the user to supply a bank statement file.
//
// It covers both the current `ui_action/open_import_panel` payload and the
// legacy `ui_request/import_file` payload: both carry the same fields and
// drive the same consumer behavior, so they share one internal representation
// with the origin kept on the Legacy flag.
type ImportDirective struct {
	BankAccountID   string
	BankAccountName string
	AcceptedTypes   []string
	Legacy          bool
}

// PDFDirective asks the client to open a generated PDF report.
type PDFDirective struct {
	URL string
}

// QuickReplyOption is one selectable quick-reply choice.
type QuickReplyOption struct {
	ID    string
	Label string
	Value string
}

// QuickRepliesDirective offers a closed set of one-tap replies.
type QuickRepliesDirective struct {
	Options []QuickReplyOption
}

// ProgressDirective renders an in-place progress indicator. It is never
// produced by the agent; the import flow attaches it to its placeholder
// message and updates it as the upload advances.
type ProgressDirective struct {
	Percent   int
	StepLabel string
	Steps     []string
}

func (*ImportDirective) directive()       {}
func (*PDFDirective) directive()          {}
func (*QuickRepliesDirective) directive() {}
func (*ProgressDirective) directive()     {}

// defaultAcceptedTypes is used when a payload omits or empties accepted_types.
var defaultAcceptedTypes = []string{"csv", "pdf"}

// ParseDirective classifies a raw tool_result payload. It is total: any
// malformed or unrecognized shape yields nil, never a panic.
func ParseDirective(raw json.RawMessage) Directive {
	if len(raw) == 0 {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	return ParseDirectiveValue(value)
}

// ParseDirectiveValue classifies an already-decoded JSON value.
func ParseDirectiveValue(value any) Directive {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil
	}

	typ, _ := obj["type"].(string)
	action, _ := obj["action"].(string)
	name, _ := obj["name"].(string)

	switch {
	case typ == "ui_action" && action == "open_import_panel":
		return parseImport(obj, false)
	case typ == "ui_request" && name == "import_file":
		return parseImport(obj, true)
	case typ == "ui_request" && name == "open_pdf_report":
		return parsePDF(obj)
	case typ == "ui_action" && action == "quick_replies":
		return parseQuickReplies(obj["options"])
	case action == "quick_reply_yes_no":
		return yesNoQuickReplies()
	}

	// Older payloads carry the option list under a bare quick_replies key
	// with no discriminator.
	if options, ok := obj["quick_replies"]; ok {
		return parseQuickReplies(options)
	}
	return nil
}

func parseImport(obj map[string]any, legacy bool) Directive {
	id, _ := obj["bank_account_id"].(string)
	name, _ := obj["bank_account_name"].(string)
	return &ImportDirective{
		BankAccountID:   strings.TrimSpace(id),
		BankAccountName: strings.TrimSpace(name),
		AcceptedTypes:   normalizeAcceptedTypes(obj["accepted_types"]),
		Legacy:          legacy,
	}
}

func parsePDF(obj map[string]any) Directive {
	url, _ := obj["url"].(string)
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return &PDFDirective{URL: url}
}

func parseQuickReplies(value any) Directive {
	list, ok := value.([]any)
	if !ok {
		return nil
	}
	var options []QuickReplyOption
	for _, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, idOK := entry["id"].(string)
		label, labelOK := entry["label"].(string)
		val, valueOK := entry["value"].(string)
		if !idOK || !labelOK || !valueOK {
			continue
		}
		options = append(options, QuickReplyOption{ID: id, Label: label, Value: val})
	}
	if len(options) == 0 {
		return nil
	}
	return &QuickRepliesDirective{Options: options}
}

// yesNoQuickReplies synthesizes the fixed option pair used by the legacy
// quick_reply_yes_no payload.
func yesNoQuickReplies() Directive {
	return &QuickRepliesDirective{Options: []QuickReplyOption{
		{ID: "yes", Label: "✅", Value: "oui"},
		{ID: "no", Label: "❌", Value: "non"},
	}}
}

// normalizeAcceptedTypes cleans the accepted_types list: trim, strip a
// leading dot, lowercase, drop empties. An empty result falls back to the
// default csv/pdf pair rather than rejecting the directive.
func normalizeAcceptedTypes(value any) []string {
	var out []string
	if list, ok := value.([]any); ok {
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				continue
			}
			s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
			if s == "" {
				continue
			}
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = append([]string(nil), defaultAcceptedTypes...)
	}
	return out
}
