package llm

import (
	"context"
	"fmt"
	"strings"

	"declutter/internal/categorize"
	"declutter/internal/services"
)

// Request describes one file to categorize.
type Request struct {
	Name       string
	Categories []string
	// Sample holds the leading characters of a text file when deep
	// inspection is enabled.
	Sample string
}

type categorizationPayload struct {
	Category  string `json:"category"`
	Subfolder string `json:"subfolder"`
}

const categorizationSystemPrompt = `You sort files from a user's Downloads folder into folders.
Answer with a single JSON object and nothing else: {"category": "<folder>", "subfolder": "<optional sub-folder>"}.
The category must be exactly one of the allowed folders given by the user.
Only propose a subfolder when file content is provided; it must be a single short folder name such as "Invoices", "Notes" or "Config". Otherwise use an empty string.`

// Categorize asks the service for the destination folder of one file.
//
// An answer naming an allowed category yields KindSuccess. An empty or
// unknown category yields KindDegraded carrying the extension or Misc
// fallback. Transport and retry failures are returned as errors wrapped
// with services.ErrTransient or services.ErrExternalTool.
func (c *Client) Categorize(ctx context.Context, req Request) (categorize.Result, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return categorize.Result{}, services.Wrap(services.ErrValidation, "llm", "categorize", "file name required", nil)
	}
	if len(req.Categories) == 0 {
		return categorize.Result{}, services.Wrap(services.ErrValidation, "llm", "categorize", "category list required", nil)
	}

	var parsed categorizationPayload
	_, err := c.completeJSON(ctx, "llm categorize", categorizationSystemPrompt, buildPrompt(req), func(content string) error {
		parsed = categorizationPayload{}
		return decodeObject(content, &parsed)
	})
	if err != nil {
		return categorize.Result{}, err
	}

	if strings.TrimSpace(parsed.Category) == "" {
		return categorize.Fallback(name, req.Categories, "service returned no category", nil), nil
	}
	category, ok := categorize.Match(parsed.Category, req.Categories)
	if !ok {
		reason := fmt.Sprintf("service proposed unknown category %q", strings.TrimSpace(parsed.Category))
		return categorize.Fallback(name, req.Categories, reason, nil), nil
	}
	return categorize.Success(categorize.Categorization{
		Category:  category,
		Subfolder: cleanSubfolder(parsed.Subfolder, category, req.Sample != ""),
	}, categorize.SourceService), nil
}

// buildPrompt renders the user prompt for req.
func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File name: %s\n", strings.TrimSpace(req.Name))
	fmt.Fprintf(&b, "Allowed folders: %s\n", strings.Join(req.Categories, ", "))
	if sample := strings.TrimSpace(req.Sample); sample != "" {
		fmt.Fprintf(&b, "First %d characters of content:\n---\n%s\n---\n", categorize.SampleChars, sample)
		b.WriteString("Pick the folder and suggest a short sub-folder name based on the content.")
	} else {
		b.WriteString("Pick the folder. Leave subfolder empty.")
	}
	return b.String()
}

func cleanSubfolder(value, category string, inspected bool) string {
	if !inspected {
		return ""
	}
	value = strings.Trim(strings.TrimSpace(value), `"'`)
	switch strings.ToLower(value) {
	case "", "none", "null", "n/a":
		return ""
	}
	if strings.EqualFold(value, category) {
		return ""
	}
	return value
}
