// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type (
	Status          string
	WatermarkKind   string
	Anchor          string
	BackgroundStyle string
)

const (
	StatusCreated    Status = "created"
	StatusInProgress Status = "in_progress"
	StatusFailed     Status = "failed"
	StatusDone       Status = "done"
)

var StatusMap = map[Status]bool{
	StatusCreated:    true,
	StatusInProgress: true,
	StatusFailed:     true,
	StatusDone:       true,
}

const (
	KindText  WatermarkKind = "text"
	KindImage WatermarkKind = "image"
)

const (
	TopLeft     Anchor = "top-left"
	TopRight    Anchor = "top-right"
	BottomLeft  Anchor = "bottom-left"
	BottomRight Anchor = "bottom-right"
)

const (
	StyleNone    BackgroundStyle = "none"
	StyleSolid   BackgroundStyle = "solid"
	StyleOutline BackgroundStyle = "outline"
)

//---------------------

// WatermarkConfig - запрос на один водяной знак. Незаданные числовые поля остаются nil,
// дефолты проставляет watermark.Resolve.
type WatermarkConfig struct {
	Kind WatermarkKind `json:"type" validate:"required,oneof=text image"`

	Text        string   `json:"text,omitempty" validate:"max=50"`
	FontFamily  string   `json:"font,omitempty" validate:"max=64"`
	FontSize    *float64 `json:"fontSize,omitempty" validate:"omitempty,min=8,max=120"`
	TextColor   string   `json:"color,omitempty" validate:"omitempty,hexcolor"`
	TextOpacity *float64 `json:"textOpacity,omitempty" validate:"omitempty,min=0,max=100"`

	BorderStyle       BackgroundStyle `json:"borderStyle,omitempty" validate:"omitempty,oneof=none solid outline"`
	BackgroundColor   string          `json:"backgroundColor,omitempty" validate:"omitempty,hexcolor"`
	BackgroundOpacity *float64        `json:"backgroundOpacity,omitempty" validate:"omitempty,min=0,max=100"`
	BorderColor       string          `json:"borderColor,omitempty" validate:"omitempty,hexcolor"`
	BorderWidth       *float64        `json:"borderWidth,omitempty" validate:"omitempty,min=0,max=20"`
	BorderOpacity     *float64        `json:"borderOpacity,omitempty" validate:"omitempty,min=0,max=100"`

	SelectedWatermarkIndex *int     `json:"selectedWatermarkIndex,omitempty" validate:"omitempty,min=0,max=2"`
	WatermarkSize          *float64 `json:"watermarkSize,omitempty" validate:"omitempty,min=0.3,max=2"`
	ImageOpacity           *float64 `json:"imageOpacity,omitempty" validate:"omitempty,min=0,max=100"`

	Position Anchor   `json:"position,omitempty" validate:"omitempty,oneof=top-left top-right bottom-left bottom-right"`
	Margin   *float64 `json:"margin,omitempty" validate:"omitempty,min=0,max=100"`
}

func (c *WatermarkConfig) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for WatermarkConfig")
	}
	if err := json.Unmarshal(b, c); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to WatermarkConfig: %w", err)
	}
	return nil
}

func (c WatermarkConfig) Value() (driver.Value, error) {
	res, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal WatermarkConfig to JSONB: %w", err)
	}
	return res, nil
}

// ResizeDirective - явный размер результата; одна из осей может быть нулевой
type ResizeDirective struct {
	Width               int  `json:"width,omitempty" validate:"min=0,max=20000"`
	Height              int  `json:"height,omitempty" validate:"min=0,max=20000"`
	MaintainAspectRatio bool `json:"maintainAspectRatio"`
}

type OutputConfig struct {
	Quality *float64         `json:"quality,omitempty" validate:"omitempty,min=0,max=1"`
	Scale   *float64         `json:"scale,omitempty" validate:"omitempty,min=0.1,max=2"`
	Resize  *ResizeDirective `json:"resize,omitempty"`
}

// Settings - полный набор настроек одной обработки: водяной знак и параметры вывода
type Settings struct {
	Watermark WatermarkConfig `json:"watermark"`
	Output    OutputConfig    `json:"output"`
}

func (s *Settings) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for Settings")
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to Settings: %w", err)
	}
	return nil
}

func (s Settings) Value() (driver.Value, error) {
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Settings to JSONB: %w", err)
	}
	return res, nil
}

//---------------------

// SourceFile - загруженный пользователем файл как есть
type SourceFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Composite - закодированный результат наложения
type Composite struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
}

type Size struct {
	Width  int `json:"width" validate:"min=0"`
	Height int `json:"height" validate:"min=0"`
}

type WatermarkRequest struct {
	Settings   Settings
	Images     []SourceFile
	Watermarks []SourceFile
}

//---------------------

type Job struct {
	UID        uuid.UUID   `json:"uid"`
	Status     Status      `json:"status"`
	Files      StringSlice `json:"files"`
	SourceKeys StringSlice `json:"-"`
	AssetKeys  StringSlice `json:"-"`
	Settings   Settings    `json:"settings"`
	ResultKey  string      `json:"-"`
	ErrMsg     StringSlice `json:"error,omitempty"`
	CreatedAt  *time.Time  `json:"created_at,omitempty"`
	UpdatedAt  *time.Time  `json:"updated_at,omitempty"`
}

type Preset struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name" validate:"required,max=64"`
	Config    WatermarkConfig `json:"config"`
	CreatedAt *time.Time      `json:"created_at,omitempty"`
}

type RecentConfig struct {
	Config  WatermarkConfig `json:"config"`
	SavedAt time.Time       `json:"saved_at"`
}

//---------------------

// FileError привязывает ошибку обработки к конкретному файлу пачки
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

var (
	ErrInvalidInput      error = errors.New("empty or unsupported source image")        // 400
	ErrDecode            error = errors.New("failed to decode image")                   // 422
	ErrInvalidOutputSize error = errors.New("computed output size is invalid")          // 400
	ErrEncode            error = errors.New("encoder produced no data")                 // 500
	ErrWatermarkAsset    error = errors.New("failed to load watermark image")           // 422
	ErrIncorrectConfig   error = errors.New("incorrect watermark configuration")        // 400
	ErrTooManyFiles      error = errors.New("too many files in one batch")              // 400
	ErrFileTooLarge      error = errors.New("file exceeds maximum allowed size")        // 413
	ErrEmptySource       error = errors.New("no source images provided")                // 400
	ErrCommon500         error = errors.New("something went wrong. Try again later")    // 500
	ErrIncorrectID       error = errors.New("incorrect UUID")                           // 400
	ErrJobNotFound       error = errors.New("specified job UUID doesn't exist")         // 404
	ErrResultNotReady    error = errors.New("requested archive is not processed yet")   // 404
	ErrPresetNotFound    error = errors.New("specified preset doesn't exist")           // 404
	ErrMissingClientID   error = errors.New("X-Client-Id header is required")           // 400
	ErrIncorrectStatus   error = errors.New("incorrect status provided")                // 400
	ErrIncorrectDisplay  error = errors.New("incorrect preview display parameters")     // 400
	ErrDuplicatePreset   error = errors.New("preset with the same name already exists") // 409
)

//--------------------

const (
	JPEG = "image/jpeg"
	JPG  = "image/jpg"
	PNG  = "image/png"
	WEBP = "image/webp"
	BMP  = "image/bmp"
	ZIP  = "application/zip"
)

// AcceptedTypes - белый список MIME для исходников и ватермарков
var AcceptedTypes = map[string]bool{
	JPEG: true,
	JPG:  true,
	PNG:  true,
	WEBP: true,
	BMP:  true,
}

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	JPG:  ".jpg",
	PNG:  ".png",
	WEBP: ".webp",
	BMP:  ".bmp",
}

const (
	MaxFileSize      = 20 << 20
	MaxFilesCount    = 50
	MaxWatermarks    = 3
	ArchiveName      = "watermarked_images.zip"
	WatermarkedLabel = "_watermarked"
	RecentLimit      = 5
	RecentTTL        = 7 * 24 * time.Hour
	OrphanTimeout    = 10 * time.Minute // после этого created/in_progress задача считается брошенной
)

// BuiltinTexts - готовые подписи, которые предлагаются в интерфейсе
var BuiltinTexts = []string{"AI生成", "人工智能生成", "AI合成"}

//--------------------

type StringSlice []string

func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = []string{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for StringSlice")
	}

	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to []StringSlice: %w", err)
	}
	return nil
}

func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 || s == nil {
		return []byte(`[]`), nil
	}
	res, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal []StringSlice to JSONB: %w", err)
	}

	return res, nil
}
