package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// MaxTitles bounds the number of candidate titles taken from a reply.
const MaxTitles = 16

const refusalPrefix = "Sorry"

const promptTemplate = `Return a JSON array of movie titles that best match this search term,
ordered from most to least relevant. Generate up to %d titles.
If you cannot answer, reply with a single line starting with the word "Sorry".

Example:
prompt: "movies with brando"

response: ["The Godfather", "The Godfather: Part II", "Apocalypse Now", "The Wild One"]

prompt: %s
response:
`

// BuildPrompt embeds query verbatim in the fixed instruction template.
func BuildPrompt(query string) string {
	return fmt.Sprintf(promptTemplate, MaxTitles, query)
}

type TitleExpander struct {
	client CompletionClient
}

func NewTitleExpander(client CompletionClient) *TitleExpander {
	return &TitleExpander{client: client}
}

// Expand asks the completion service for candidate titles. A refusal is not
// an error; it comes back as Expansion.Refusal.
func (e *TitleExpander) Expand(ctx context.Context, query string) (Expansion, error) {
	reply, err := e.client.Complete(ctx, BuildPrompt(query))
	if err != nil {
		return Expansion{}, fmt.Errorf("requesting titles: %w", err)
	}

	expansion, err := ParseTitles(reply)
	if err != nil {
		log.Printf("[EXPAND] Unusable reply for %q: %v", query, err)
		return Expansion{}, err
	}

	if expansion.Refused() {
		log.Printf("[EXPAND] Model declined %q: %s", query, expansion.Refusal)
	} else {
		log.Printf("[EXPAND] %d candidate titles for %q", len(expansion.Titles), query)
	}

	return expansion, nil
}

// ParseTitles converts untrusted reply text into an Expansion.
func ParseTitles(reply string) (Expansion, error) {
	lines := nonEmptyLines(reply)
	if len(lines) == 0 {
		return Expansion{}, fmt.Errorf("%w: empty reply", ErrMalformedReply)
	}

	if len(lines) == 1 && strings.HasPrefix(lines[0], refusalPrefix) {
		return Expansion{Titles: []string{}, Refusal: lines[0]}, nil
	}

	payload := strings.Join(stripCodeFences(lines), "\n")

	var raw []string
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return Expansion{}, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	titles := make([]string, 0, len(raw))
	for _, title := range raw {
		title = strings.TrimSpace(norm.NFC.String(title))
		if title == "" {
			continue
		}
		titles = append(titles, title)
		if len(titles) == MaxTitles {
			break
		}
	}

	return Expansion{Titles: titles}, nil
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func stripCodeFences(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			continue
		}
		out = append(out, line)
	}
	return out
}
