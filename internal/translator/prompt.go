package translator

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"loginsight-backend/internal/llm"
	"loginsight-backend/internal/model"
)

// feedback carries a rejected attempt into the next prompt.
type feedback struct {
	output string
	reason string
}

const systemInstruction = `You translate questions about application logs into a JSON search request.
Respond ONLY with one JSON object, without markdown or commentary, in this format:
{
  "index": string,                       // one of the indices listed below
  "time_range": {"field": string, "start": string, "end": string},
                                         // ISO 8601 (YYYY-MM-DDTHH:mm:ssZ) or relative ("now", "now-1h", "now-7d")
  "filters": [{"field": string, "operator": "=" | "!=" | "IN" | "NOT IN" | "CONTAINS" | ">" | ">=" | "<" | "<=" | "EXISTS", "value": any}],
  "text": string,                        // optional free-text search
  "aggregation": {                       // omit to list matching documents
    "type": "date_histogram" | "terms" | "metric",
    "name": string,                      // column name for the bucket keys, e.g. "hour" or "service"
    "field": string,
    "interval": string,                  // date_histogram only: "1m", "5m", "1h", "1d", "week", "month"
    "size": number,                      // terms only: number of buckets
    "metric": {"type": "count" | "sum" | "avg" | "min" | "max", "field": string},
    "sub_aggregation": { ...same shape, one extra level at most... }
  },
  "fields": [string],                    // documents only: columns to show first
  "size": number,                        // documents only
  "sort": {"field": string, "order": "asc" | "desc"}
}
Rules:
- Use only the indices and fields listed in the schema.
- Always give a time_range; default to the last 24 hours when the user does not say.
- IN and NOT IN take an array value. EXISTS takes no value.
- Use CONTAINS for text fields; use =, IN for keyword fields.
- "by hour", "per day", "over time" mean a date_histogram on the timestamp field.
- "top N", "per service", "by level" mean a terms aggregation.
- Follow-up questions refine the previous request: keep what the user does not change.`

func renderSchema(schema *model.Schema) string {
	var b strings.Builder
	for _, idx := range schema.Indices {
		fmt.Fprintf(&b, "Index %q", idx.Pattern)
		if idx.Description != "" {
			fmt.Fprintf(&b, ": %s", idx.Description)
		}
		b.WriteString("\n")
		if idx.TimestampField != "" {
			fmt.Fprintf(&b, "  timestamp field: %s\n", idx.TimestampField)
		}
		b.WriteString("  fields:\n")
		for _, f := range idx.Fields {
			fmt.Fprintf(&b, "  - %s (%s)", f.Name, f.Type)
			if f.Description != "" {
				fmt.Fprintf(&b, ": %s", f.Description)
			}
			if len(f.Values) > 0 {
				fmt.Fprintf(&b, " [values: %s]", strings.Join(f.Values, ", "))
			}
			b.WriteString("\n")
		}
		if len(idx.Samples) > 0 {
			b.WriteString("  example questions:\n")
			for _, s := range idx.Samples {
				fmt.Fprintf(&b, "  - %s\n", s)
			}
		}
	}
	return b.String()
}

// buildPrompt is a pure function of its inputs. reference may be nil.
func buildPrompt(schema *model.Schema, history []model.Turn, text string, now time.Time, reference *model.SavedQuery, fb *feedback) llm.Prompt {
	prompt := llm.Prompt{
		System: systemInstruction + "\n\nData schema:\n" + renderSchema(schema),
	}
	if reference != nil {
		prompt.System += fmt.Sprintf(
			"\nReference request for a similar question (%q). Adapt it; do not copy values the user did not ask for:\n%s\n",
			reference.Description, string(reference.Query))
	}

	for _, turn := range history {
		prompt.Messages = append(prompt.Messages, llm.Message{Role: "user", Text: turn.UserMessage})
		reply := "(no valid request was produced for this question)"
		if turn.Query != nil {
			if data, err := json.Marshal(toWire(turn.Query)); err == nil {
				reply = string(data)
			}
		}
		if turn.Status == model.TurnFailed && turn.Error != nil {
			reply += fmt.Sprintf("\n(this request failed: %s)", turn.Error.Message)
		}
		prompt.Messages = append(prompt.Messages, llm.Message{Role: "model", Text: reply})
	}

	prompt.Messages = append(prompt.Messages, llm.Message{
		Role: "user",
		Text: fmt.Sprintf("Current time: %s\nQuestion: %q\n\nJSON Output:", now.UTC().Format(time.RFC3339), text),
	})

	if fb != nil {
		prompt.Messages = append(prompt.Messages,
			llm.Message{Role: "model", Text: fb.output},
			llm.Message{Role: "user", Text: fmt.Sprintf(
				"That request was rejected: %s\nReturn the complete corrected JSON object only.", fb.reason)},
		)
	}
	return prompt
}
