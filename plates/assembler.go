package plates

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Assembler turns plate regions and glyphs found in a frame into plate numbers.
type Assembler struct {
	plates     Detector
	characters Detector
	logger     zerolog.Logger
}

func NewAssembler(plates, characters Detector, logger zerolog.Logger) *Assembler {
	return &Assembler{
		plates:     plates,
		characters: characters,
		logger:     logger,
	}
}

// glyph is a recognized character and its left edge in pixels
type glyph struct {
	class int
	x1    int
}

// Assemble returns every grammar-valid plate number found in frame.
// Several regions may read the same text; such duplicates are kept.
// Detector errors are returned as is and invalidate the whole frame.
func (a *Assembler) Assemble(ctx context.Context, frame Frame, cfg Config) ([]string, error) {
	confidence := cfg.AdjustedConfidence()
	regions, err := a.plates.Detect(ctx, frame, confidence, cfg.IOU)
	if err != nil {
		return nil, errors.Wrap(err, "plate region detection")
	}
	if len(regions) == 0 {
		return nil, nil
	}
	a.logger.Debug().Int("regions", len(regions)).Float64("confidence", confidence).Msg("plate regions found")

	// All regions are processed regardless of their confidence: several vehicles may share a frame
	found := make([]string, 0, len(regions))
	for i, region := range regions {
		text, ok, err := a.readRegion(ctx, frame, region, cfg, confidence)
		if err != nil {
			return nil, errors.Wrapf(err, "region %d", i)
		}
		if !ok {
			continue
		}
		if format := PlateFormat(text); format != FormatNone {
			a.logger.Info().Str("plate", text).Str("format", string(format)).Float64("region_confidence", region.Confidence).Msg("valid plate")
			found = append(found, text)
			continue
		}
		if text != "" {
			a.logger.Warn().Str("plate", text).Msg("plate rejected, does not match any format")
		}
	}
	return found, nil
}

// readRegion crops region and reads its characters left to right
func (a *Assembler) readRegion(ctx context.Context, frame Frame, region BoundingBox, cfg Config, confidence float64) (string, bool, error) {
	rect := region.ClampTo(frame.Bounds())
	if rect.Empty() {
		a.logger.Debug().Str("rect", region.Rect().String()).Msg("plate region outside of frame")
		return "", false, nil
	}
	crop, err := frame.Crop(rect)
	if err != nil {
		return "", false, errors.Wrap(err, "can't crop plate region")
	}
	defer crop.Close()

	boxes, err := a.characters.Detect(ctx, crop, confidence, cfg.IOU)
	if err != nil {
		return "", false, errors.Wrap(err, "character detection")
	}
	glyphs := make([]glyph, len(boxes))
	for i, box := range boxes {
		glyphs[i] = glyph{class: box.ClassID, x1: int(box.X1)}
	}
	text, err := composeText(glyphs)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// composeText orders glyphs by their left edge and maps classes through Alphabet.
// Detector output order is not reading order. Glyphs sharing x1 keep detector order.
func composeText(glyphs []glyph) (string, error) {
	sort.SliceStable(glyphs, func(i, j int) bool {
		return glyphs[i].x1 < glyphs[j].x1
	})
	var sb strings.Builder
	sb.Grow(len(glyphs))
	for _, g := range glyphs {
		if g.class < 0 || g.class >= len(Alphabet) {
			return "", errors.Errorf("character class %d is out of alphabet", g.class)
		}
		sb.WriteByte(Alphabet[g.class])
	}
	return sb.String(), nil
}
