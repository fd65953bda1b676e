package model

// FocusItemRequest switches the item being worked on.
type FocusItemRequest struct {
	ItemID int64 `json:"item_id" binding:"required,gt=0"`
}

// AddFileRequest creates an editor buffer. Both fields are optional.
type AddFileRequest struct {
	FileName  string `json:"file_name" binding:"omitempty,max=64,filename"`
	Extension string `json:"extension" binding:"omitempty,max=16,filename"`
}

// RenameFileRequest changes a buffer's name or extension.
type RenameFileRequest struct {
	FileName  string `json:"file_name" binding:"omitempty,max=64,filename"`
	Extension string `json:"extension" binding:"omitempty,max=16,filename"`
}

// EditFileRequest replaces the content of the active buffer.
type EditFileRequest struct {
	Content string `json:"content" binding:"max=1048576"`
}

// SelectLanguageRequest switches the programming language.
type SelectLanguageRequest struct {
	Language string `json:"language" binding:"required,max=32"`
}

// RunCodeRequest runs the active buffer with the given stdin.
type RunCodeRequest struct {
	Input string `json:"input" binding:"max=65536"`
}
