package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"wellmind-go/internal/repository"
	"wellmind-go/pkg/llm"
)

// UpsertNoteTool 按标题创建或覆盖一条用户笔记。
type UpsertNoteTool struct {
	noteRepo repository.NoteRepository
}

// NewUpsertNoteTool 创建 upsert_note 工具。
func NewUpsertNoteTool(noteRepo repository.NoteRepository) *UpsertNoteTool {
	return &UpsertNoteTool{noteRepo: noteRepo}
}

type upsertNoteArgs struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (t *UpsertNoteTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "upsert_note",
			Description: "Create or overwrite a note about the user, keyed by title.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Note title, unique per user"},
					"content": {"type": "string", "description": "Note body"}
				},
				"required": ["title", "content"]
			}`),
		},
	}
}

func (t *UpsertNoteTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "upsert_note"
}

func (t *UpsertNoteTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args upsertNoteArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Title == "" {
		return "", fmt.Errorf("title is required")
	}

	if _, err := t.noteRepo.Upsert(db, userID, args.Title, args.Content); err != nil {
		return "", fmt.Errorf("failed to save note: %w", err)
	}
	return fmt.Sprintf("Note %q saved.", args.Title), nil
}

// DeleteNoteTool 按标题删除一条用户笔记。
type DeleteNoteTool struct {
	noteRepo repository.NoteRepository
}

// NewDeleteNoteTool 创建 delete_note 工具。
func NewDeleteNoteTool(noteRepo repository.NoteRepository) *DeleteNoteTool {
	return &DeleteNoteTool{noteRepo: noteRepo}
}

type deleteNoteArgs struct {
	Title string `json:"title"`
}

func (t *DeleteNoteTool) Definition() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name:        "delete_note",
			Description: "Delete a note about the user by its title.",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"title": {"type": "string", "description": "Title of the note to delete"}
				},
				"required": ["title"]
			}`),
		},
	}
}

func (t *DeleteNoteTool) CanExecute(call llm.ToolCall) bool {
	return call.Function.Name == "delete_note"
}

func (t *DeleteNoteTool) Execute(ctx context.Context, db *gorm.DB, userID uint, chatID string, call llm.ToolCall) (string, error) {
	var args deleteNoteArgs
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Title == "" {
		return "", fmt.Errorf("title is required")
	}

	affected, err := t.noteRepo.DeleteByTitle(db, userID, args.Title)
	if err != nil {
		return "", fmt.Errorf("failed to delete note: %w", err)
	}
	if affected == 0 {
		return fmt.Sprintf("No note titled %q.", args.Title), nil
	}
	return fmt.Sprintf("Note %q deleted.", args.Title), nil
}
