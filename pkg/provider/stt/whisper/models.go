package whisper

import "fmt"

// ModelSize enumerates the published whisper model sizes.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// IsValid reports whether s names a published model size.
func (s ModelSize) IsValid() bool {
	switch s {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge:
		return true
	}
	return false
}

// ModelInfo describes the resource/quality trade-off of a whisper model size.
// Speed is relative to the large model (higher is faster).
type ModelInfo struct {
	Size          ModelSize
	Parameters    string
	DiskSize      string
	RelativeSpeed string
	Accuracy      string
}

// catalogue mirrors the published whisper model table. Used for config
// validation and operator-facing diagnostics when choosing a model.
var catalogue = map[ModelSize]ModelInfo{
	ModelTiny:   {ModelTiny, "39M", "~75 MB", "~32x", "lowest"},
	ModelBase:   {ModelBase, "74M", "~142 MB", "~16x", "low"},
	ModelSmall:  {ModelSmall, "244M", "~466 MB", "~6x", "good"},
	ModelMedium: {ModelMedium, "769M", "~1.5 GB", "~2x", "high"},
	ModelLarge:  {ModelLarge, "1550M", "~2.9 GB", "1x", "highest"},
}

// Info returns the catalogue entry for the given model size.
func Info(size ModelSize) (ModelInfo, error) {
	info, ok := catalogue[size]
	if !ok {
		return ModelInfo{}, fmt.Errorf("whisper: unknown model size %q", size)
	}
	return info, nil
}

// Sizes returns all published model sizes in ascending resource order.
func Sizes() []ModelSize {
	return []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge}
}
