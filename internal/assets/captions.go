package assets

import (
	"path/filepath"
	"regexp"
	"strings"

	"postline/internal/types"
)

// promoHashtags closes every promotional caption. Kept short; platforms
// penalize hashtag walls.
var promoHashtags = "#reels #daily #" // profile key is appended

var separators = regexp.MustCompile(`[_\-]+`)

// BuildCaption produces the caption for one slot according to the
// profile's family.
//
//   - promo: slot title as hook plus a call to action and hashtags.
//   - filename: the asset's file name, cleaned up, becomes the caption;
//     used for profiles whose intake files are named by a human.
func BuildCaption(profile types.Profile, slot types.Slot, assetPath string) string {
	switch profile.CaptionFamily {
	case types.CaptionFilename:
		return CaptionFromFilename(assetPath)
	default:
		return promoCaption(profile, slot)
	}
}

func promoCaption(profile types.Profile, slot types.Slot) string {
	var b strings.Builder
	if slot.Title != "" {
		b.WriteString(slot.Title)
		b.WriteString("\n\n")
	}
	b.WriteString("Follow for more.\n")
	b.WriteString(promoHashtags)
	b.WriteString(strings.ToLower(profile.Key))
	return b.String()
}

// CaptionFromFilename derives a caption from a media file name: extension
// stripped, separators turned into spaces.
func CaptionFromFilename(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSpace(separators.ReplaceAllString(name, " "))
}
