package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ainotes/secondbrain/internal/domain"
	"github.com/ainotes/secondbrain/internal/telemetry"
	openai "github.com/sashabaranov/go-openai"
)

// Tool names exposed to the model.
const (
	ToolProvideHelp     = "provide_help"
	ToolAddRecall       = "add_recall"
	ToolAddDocument     = "add_document"
	ToolQueryRecall     = "query_recall"
	ToolDeleteRecall    = "delete_recall"
	ToolGetTags         = "get_tags"
	ToolGetAllKnowledge = "get_all_knowledge"
	ToolGetItemsByTag   = "get_items_by_tag"
)

// NoResultsMessage is returned verbatim when a recall query finds nothing.
// The frontend matches on this text; do not reword it.
const NoResultsMessage = "I don't have that information right now, maybe you can elaborate more about that with me."

const noDeleteMatchMessage = "No matching information found to delete."

// BlobFetcher reads previously uploaded document bytes back for ingestion.
type BlobFetcher interface {
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
}

// Toolset executes the agent's callable operations. Every call is scoped to
// the invoking owner; no tool can touch another owner's data.
type Toolset struct {
	memories *MemoryService
	ingestor *Ingestor
	blobs    BlobFetcher
}

// NewToolset creates a Toolset. ingestor and blobs may be nil when document
// ingestion is not configured; add_document then reports it is unavailable.
func NewToolset(memories *MemoryService, ingestor *Ingestor, blobs BlobFetcher) *Toolset {
	return &Toolset{memories: memories, ingestor: ingestor, blobs: blobs}
}

// Definitions returns the schema for every tool, in the shape the chat
// completions API expects.
func (t *Toolset) Definitions() []openai.Tool {
	return []openai.Tool{
		toolDef(ToolProvideHelp,
			"Explain what the assistant can do. Use when the user greets, asks for help, or seems lost.",
			map[string]any{}),
		toolDef(ToolAddRecall,
			"Store new information, facts, notes, or memories into the second brain. Use this when the user makes a statement, shares a fact, or asks to save something.",
			map[string]any{
				"content": prop("string", "The information to store, as stated by the user."),
			}, "content"),
		toolDef(ToolAddDocument,
			"Index a previously uploaded document into the second brain. Use when the user refers to an uploaded file by its storage path.",
			map[string]any{
				"path": prop("string", "Storage path of the uploaded document."),
			}, "path"),
		toolDef(ToolQueryRecall,
			"Retrieve information from the second brain. Use this when the user asks a personal question or tries to recall a fact.",
			map[string]any{
				"query":      prop("string", "What to look for."),
				"tag_filter": prop("string", "Optional tag to restrict the search to."),
			}, "query"),
		toolDef(ToolDeleteRecall,
			"Delete information from the second brain by describing what to remove. Use this when the user wants to delete, remove, or forget previously stored information.",
			map[string]any{
				"description": prop("string", "Description of the information to remove."),
			}, "description"),
		toolDef(ToolGetTags,
			"List every tag the user has, with how many items carry each tag.",
			map[string]any{}),
		toolDef(ToolGetAllKnowledge,
			"List everything stored in the second brain, grouped by where it came from.",
			map[string]any{}),
		toolDef(ToolGetItemsByTag,
			"List all stored items carrying a specific tag.",
			map[string]any{
				"tag": prop("string", "The tag to filter by."),
			}, "tag"),
	}
}

// Execute dispatches one tool call and returns its result text. Tool
// failures surface as text the model can relay, except store outages,
// which propagate as errors.
func (t *Toolset) Execute(ctx context.Context, ownerID string, call openai.ToolCall) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Toolset.Execute", telemetry.SpanAttributes{
		UserID:    ownerID,
		Tool:      call.Function.Name,
		Operation: "tool",
	})
	defer span.End()

	var args struct {
		Content     string `json:"content"`
		Path        string `json:"path"`
		Query       string `json:"query"`
		TagFilter   string `json:"tag_filter"`
		Description string `json:"description"`
		Tag         string `json:"tag"`
	}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return fmt.Sprintf("invalid arguments for %s", call.Function.Name), nil
		}
	}

	switch call.Function.Name {
	case ToolProvideHelp:
		return t.provideHelp(ctx, ownerID)
	case ToolAddRecall:
		return t.addRecall(ctx, ownerID, args.Content)
	case ToolAddDocument:
		return t.addDocument(ctx, ownerID, args.Path)
	case ToolQueryRecall:
		return t.queryRecall(ctx, ownerID, args.Query, args.TagFilter)
	case ToolDeleteRecall:
		return t.deleteRecall(ctx, ownerID, args.Description)
	case ToolGetTags:
		return t.getTags(ctx, ownerID)
	case ToolGetAllKnowledge:
		return t.getAllKnowledge(ctx, ownerID)
	case ToolGetItemsByTag:
		return t.getItemsByTag(ctx, ownerID, args.Tag)
	default:
		return fmt.Sprintf("unknown tool: %s", call.Function.Name), nil
	}
}

func (t *Toolset) provideHelp(ctx context.Context, ownerID string) (string, error) {
	n, err := t.memories.CountByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "I am your second brain. Tell me anything you want to remember and I will store it for you. " +
			"You can also upload PDF documents, and later ask me questions to recall what you saved. " +
			"Try starting with something like \"My passport expires in March 2027\".", nil
	}
	return "I am your second brain. I can store new information, answer questions from what you have saved, " +
		"delete things you no longer need, and list your items by tag. " +
		"Ask me something you stored, or tell me something new to remember.", nil
}

func (t *Toolset) addRecall(ctx context.Context, ownerID, content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "There is nothing to store.", nil
	}
	m, err := t.memories.AddChat(ctx, ownerID, content)
	if err != nil {
		return "", err
	}
	// The "with tags:" suffix is parsed by the frontend and by the agent
	// loop; keep the exact format.
	return fmt.Sprintf("Information stored successfully with tags: %s", strings.Join(m.Tags, ", ")), nil
}

func (t *Toolset) addDocument(ctx context.Context, ownerID, path string) (string, error) {
	if t.ingestor == nil || t.blobs == nil {
		return "Document ingestion is not available right now.", nil
	}
	if path == "" {
		return "No document path given.", nil
	}
	// The path comes from model arguments; only the caller's own prefix
	// is ever fetched, same rule as the download endpoint.
	if !strings.HasPrefix(path, "documents/"+ownerID+"/") || strings.Contains(path, "..") {
		return "I could not find that document.", nil
	}

	body, err := t.blobs.GetObject(ctx, path)
	if err != nil {
		return "I could not find that document.", nil
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "I could not read that document.", nil
	}

	result, err := t.ingestor.IngestPDF(ctx, ownerID, filepath.Base(path), data)
	if err != nil {
		var derr *domain.DomainError
		if errors.As(err, &derr) && derr.Code == domain.ErrCodeValidation {
			return derr.Message, nil
		}
		return "", err
	}
	return fmt.Sprintf("Indexed %s: %d pages, %d chunks, tags: %s",
		result.Filename, result.Pages, result.Chunks, strings.Join(result.Tags, ", ")), nil
}

func (t *Toolset) queryRecall(ctx context.Context, ownerID, query, tagFilter string) (string, error) {
	results, err := t.memories.Search(ctx, ownerID, query, tagFilter)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoResultsMessage, nil
	}
	return FormatRecallResults(results), nil
}

func (t *Toolset) deleteRecall(ctx context.Context, ownerID, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return noDeleteMatchMessage, nil
	}
	deleted, err := t.memories.DeleteMatching(ctx, ownerID, description)
	if err != nil {
		return "", err
	}
	if deleted == nil {
		return noDeleteMatchMessage, nil
	}
	return fmt.Sprintf("Deleted 1 item: %s", preview(deleted.Content, 100)), nil
}

func (t *Toolset) getTags(ctx context.Context, ownerID string) (string, error) {
	counts, err := t.memories.TagCounts(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(counts) == 0 {
		return "You have no tags yet.", nil
	}
	parts := make([]string, 0, len(counts))
	for _, tc := range counts {
		parts = append(parts, fmt.Sprintf("%s (%d)", tc.Tag, tc.Count))
	}
	return "Your tags: " + strings.Join(parts, ", "), nil
}

func (t *Toolset) getAllKnowledge(ctx context.Context, ownerID string) (string, error) {
	items, err := t.memories.ListByOwner(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "You have not stored anything yet.", nil
	}

	var notes, docs []string
	for _, m := range items {
		switch m.SourceType {
		case domain.SourceTypeDocument:
			docs = append(docs, fmt.Sprintf("- %s (%s, page %d)", preview(m.Content, 100), m.SourceLabel, m.PageNumber))
		default:
			notes = append(notes, "- "+preview(m.Content, 100))
		}
	}

	var b strings.Builder
	if len(notes) > 0 {
		b.WriteString("From your notes:\n")
		b.WriteString(strings.Join(notes, "\n"))
	}
	if len(docs) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("From your documents:\n")
		b.WriteString(strings.Join(docs, "\n"))
	}
	return b.String(), nil
}

func (t *Toolset) getItemsByTag(ctx context.Context, ownerID, tag string) (string, error) {
	items, err := t.memories.ItemsByTag(ctx, ownerID, tag)
	if err != nil {
		var derr *domain.DomainError
		if errors.As(err, &derr) && derr.Code == domain.ErrCodeValidation {
			return derr.Message, nil
		}
		return "", err
	}
	if len(items) == 0 {
		return fmt.Sprintf("No items tagged %q.", strings.ToLower(strings.TrimSpace(tag))), nil
	}
	lines := make([]string, 0, len(items))
	for _, m := range items {
		lines = append(lines, "- "+m.Content)
	}
	return strings.Join(lines, "\n"), nil
}

// FormatRecallResults joins result contents with blank lines and embeds a
// citation marker of the form [Source: <filename>, Page <n>] for
// document-sourced results, exactly once per distinct (filename, page)
// pair. The bracketed form is a wire contract with the frontend.
func FormatRecallResults(results []*domain.ScoredMemory) string {
	seen := make(map[string]struct{})
	parts := make([]string, 0, len(results))
	for _, r := range results {
		m := r.Memory
		text := m.Content
		if m.SourceType == domain.SourceTypeDocument {
			key := fmt.Sprintf("%s|%d", m.SourceLabel, m.PageNumber)
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				text = fmt.Sprintf("%s [Source: %s, Page %d]", text, m.SourceLabel, m.PageNumber)
			}
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n")
}

func toolDef(name, description string, properties map[string]any, required ...string) openai.Tool {
	if required == nil {
		required = []string{}
	}
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters: map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

func prop(typ, description string) map[string]any {
	return map[string]any{"type": typ, "description": description}
}

func preview(content string, max int) string {
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "..."
}
