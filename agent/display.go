package agent

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

const (
	displayLimit        = 500
	paperSummaryLimit   = 200
	arxivSearchToolName = "search_arxiv"
)

// DisplayOutput shortens a tool result for the step view. History and storage
// always keep the full text. search_arxiv results that are a JSON array of
// papers are reduced to id, title, published date and a clipped summary.
func DisplayOutput(toolName, content string) string {
	if toolName == arxivSearchToolName {
		if simplified, ok := simplifyPapers(content); ok {
			return simplified
		}
	}
	return truncate(content, displayLimit)
}

type paperDigest struct {
	ID        any    `json:"id"`
	Title     any    `json:"title"`
	Published any    `json:"published"`
	Summary   string `json:"summary"`
}

func simplifyPapers(content string) (string, bool) {
	if !gjson.Valid(content) {
		return "", false
	}
	parsed := gjson.Parse(content)
	if !parsed.IsArray() {
		return "", false
	}

	papers := make([]paperDigest, 0)
	ok := true
	parsed.ForEach(func(_, paper gjson.Result) bool {
		if !paper.IsObject() {
			ok = false
			return false
		}
		papers = append(papers, paperDigest{
			ID:        paper.Get("id").Value(),
			Title:     paper.Get("title").Value(),
			Published: paper.Get("published").Value(),
			Summary:   clip(paper.Get("summary").String(), paperSummaryLimit) + "...",
		})
		return true
	})
	if !ok {
		return "", false
	}

	data, err := json.MarshalIndent(papers, "", "  ")
	if err != nil {
		return "", false
	}
	return string(data), true
}

// truncate appends "..." only when text exceeds limit runes.
func truncate(text string, limit int) string {
	clipped := clip(text, limit)
	if len(clipped) == len(text) {
		return text
	}
	return clipped + "..."
}

func clip(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
