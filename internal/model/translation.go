package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TranslateRequest asks for a statement to be rewritten into another
// dialect.
type TranslateRequest struct {
	SQL    string `json:"sql" validate:"required"`
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
	// DataSourceID names the target database statements are verified
	// against. Leave empty to verify by parsing only.
	DataSourceID string `json:"dataSourceId,omitempty" validate:"omitempty,uuid4"`
	// Timeout in seconds overrides the configured session timeout.
	Timeout int `json:"timeout,omitempty" validate:"omitempty,min=1,max=600"`
}

// SignatureRequest asks for the signature of targets under rule.
type SignatureRequest struct {
	Dialect string   `json:"dialect" validate:"required"`
	Rule    string   `json:"rule" validate:"required"`
	Targets []string `json:"targets" validate:"required,min=1,dive,required"`
}

// SignatureResponse carries a signature in its text form.
type SignatureResponse struct {
	Dialect   string `json:"dialect"`
	Rule      string `json:"rule"`
	Signature string `json:"signature"`
	Size      int    `json:"size"`
}

// PiecesRequest asks which catalogued constructs a statement uses.
type PiecesRequest struct {
	SQL     string `json:"sql" validate:"required"`
	Dialect string `json:"dialect" validate:"required"`
	// Target, when set, flags the pieces that already conform to it.
	Target string `json:"target,omitempty"`
}

// PieceInfo describes one matched piece.
type PieceInfo struct {
	ID          int      `json:"id"`
	Keyword     string   `json:"keyword"`
	Kind        string   `json:"kind"`
	Text        string   `json:"text"`
	Depth       int      `json:"depth"`
	Father      int      `json:"father"`
	SubPieces   []int    `json:"subPieces,omitempty"`
	Candidates  []string `json:"candidates,omitempty"`
	Description string   `json:"description,omitempty"`
	Compatible  bool     `json:"compatible"`
}

// TranslationRecord is the stored outcome of a translation.
type TranslationRecord struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	Session      string    `gorm:"type:char(36);index" json:"session"`
	Source       string    `gorm:"size:32;not null" json:"source"`
	Target       string    `gorm:"size:32;not null" json:"target"`
	Input        string    `gorm:"type:text;not null" json:"input"`
	Output       string    `gorm:"type:text" json:"output"`
	Succeeded    bool      `gorm:"index" json:"succeeded"`
	Reason       string    `gorm:"size:1024" json:"reason,omitempty"`
	Iterations   int       `json:"iterations"`
	Lifts        int       `json:"lifts"`
	DataSourceID string    `gorm:"type:char(36)" json:"dataSourceId,omitempty"`
	ElapsedMs    int64     `json:"elapsedMs"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// TableName returns the table name for the TranslationRecord model
func (TranslationRecord) TableName() string {
	return "translations"
}

// BeforeCreate generates a new UUID if ID is empty
func (r *TranslationRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// TranslationStats summarizes stored translations.
type TranslationStats struct {
	Total     int64            `json:"total"`
	Succeeded int64            `json:"succeeded"`
	Failed    int64            `json:"failed"`
	ByPair    map[string]int64 `json:"byPair"`
}
